// Package config holds the command line and environment configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ConfigFile kong.ConfigFlag `name:"config" help:"Path to a YAML config file." env:"FIRECAST_CONFIG"`

	Listen   string `help:"HTTP listen address." default:":8080" env:"FIRECAST_LISTEN"`
	DBPath   string `name:"db" help:"Path to SQLite database." default:"data/firecast.db" env:"FIRECAST_DB"`
	Timezone string `help:"Time zone that defines forecast days." default:"America/Vancouver" env:"FIRECAST_TIMEZONE"`

	APIURL          string        `name:"api-url" help:"Base URL of the fire weather API." required:"" env:"FIRECAST_API_URL"`
	APIToken        string        `name:"api-token" help:"Bearer token forwarded to the API." env:"FIRECAST_API_TOKEN"`
	APITimeout      time.Duration `name:"api-timeout" help:"Per request timeout." default:"30s" env:"FIRECAST_API_TIMEOUT"`
	APIMaxRetry     time.Duration `name:"api-max-retry" help:"Give up retrying an API call after this long." default:"2m" env:"FIRECAST_API_MAX_RETRY"`
	ArchivePayloads bool          `name:"archive-payloads" help:"Keep compressed copies of API responses." env:"FIRECAST_ARCHIVE_PAYLOADS"`
	PayloadDays     int           `name:"payload-retention-days" help:"Days to keep archived API responses." default:"14" env:"FIRECAST_PAYLOAD_RETENTION_DAYS"`

	IncludeBias bool `name:"include-bias" help:"Show bias adjusted model columns." default:"true" negatable:"" env:"FIRECAST_INCLUDE_BIAS"`
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// New builds a parser for cfg that also reads the given .env files and the
// YAML file named by --config.
func New(cfg *Config, envFiles []string, options ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("firecast"),
		kong.Description("Fire weather forecast and HFI dashboard."),
		kong.Configuration(kongdotenv.ENVFileReader, envFiles...),
		// Registered last so --config is read as YAML.
		kong.Configuration(YAMLLoader),
	}
	return kong.New(cfg, append(opts, options...)...)
}

// Load parses args into a Config.
func Load(args []string, envFiles ...string) (*Config, error) {
	var cfg Config
	parser, err := New(&cfg, envFiles)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// YAMLLoader is a kong.ConfigurationLoader for flat YAML files keyed by flag
// name. Keys may use dashes or underscores.
func YAMLLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml config: %w", err)
	}

	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			v, ok := values[key]
			if !ok || v == nil {
				continue
			}
			return fmt.Sprint(v), nil
		}
		return nil, nil
	}), nil
}
