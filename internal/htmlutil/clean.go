package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// OneLine converts HTML to text on a single line with runs of whitespace
// collapsed, for log lines and error messages.
func OneLine(s string) string {
	return strings.Join(strings.Fields(ToText(s)), " ")
}
