package morecast

import (
	"strconv"
	"strings"

	"github.com/lox/firecast/internal/models"
)

// Column is one grid column: a parameter under a given determinate.
type Column struct {
	Parameter   Parameter
	Determinate models.Determinate
}

// Key is the column's stable name for persistence, e.g. "temp.HRDPS".
func (c Column) Key() string {
	return c.Parameter.String() + "." + c.Determinate.String()
}

// Header is a human readable column title.
func (c Column) Header() string {
	return headers[c.Parameter] + " " + c.Determinate.String()
}

var headers = [NumParameters]string{
	ParamTemp:          "Temp",
	ParamRH:            "RH",
	ParamPrecip:        "Precip",
	ParamWindDirection: "Wind Dir",
	ParamWindSpeed:     "Wind Speed",
	ParamFFMC:          "FFMC",
	ParamDMC:           "DMC",
	ParamDC:            "DC",
	ParamISI:           "ISI",
	ParamBUI:           "BUI",
	ParamFWI:           "FWI",
	ParamDGR:           "DGR",
	ParamGrassCuring:   "GC",
}

// ParseColumnKey is the inverse of Column.Key.
func ParseColumnKey(key string) (Column, bool) {
	param, det, ok := strings.Cut(key, ".")
	if !ok {
		return Column{}, false
	}
	p, ok := ParseParameter(param)
	if !ok {
		return Column{}, false
	}
	d, ok := models.ParseDeterminate(det)
	if !ok {
		return Column{}, false
	}
	return Column{Parameter: p, Determinate: d}, true
}

// GridColumns lists the weather columns in display order: for each weather
// parameter the forecast, the actual and then every model, followed by the
// grass curing forecast and observed value.
func GridColumns(includeBias bool) []Column {
	var cols []Column
	for _, p := range weatherParameters {
		cols = append(cols, Column{p, models.DeterminateForecast}, Column{p, models.DeterminateActual})
		for _, d := range models.ModelDeterminates() {
			if d.IsBias() && !includeBias {
				continue
			}
			cols = append(cols, Column{p, d})
		}
	}
	return append(cols,
		Column{ParamGrassCuring, models.DeterminateForecast},
		Column{ParamGrassCuring, models.DeterminateActual},
	)
}

// SummaryColumns lists the forecast columns shown in the summary view.
func SummaryColumns() []Column {
	var cols []Column
	for _, p := range weatherParameters {
		cols = append(cols, Column{p, models.DeterminateForecast})
	}
	cols = append(cols, Column{ParamGrassCuring, models.DeterminateForecast})
	for _, p := range indexParameters {
		cols = append(cols, Column{p, models.DeterminateForecast})
	}
	return cols
}

// ColumnVis is a visibility toggle from the show/hide menu. Name is either a
// parameter name (grouped toggle) or a column key.
type ColumnVis struct {
	Name    string `json:"columnName"`
	Visible bool   `json:"visible"`
}

// InitColumnVisibility shows the temperature columns and hides everything else.
func InitColumnVisibility() map[string]bool {
	model := make(map[string]bool)
	for _, c := range GridColumns(true) {
		model[c.Key()] = c.Parameter == ParamTemp
	}
	return model
}

// UpdateVisibilityByParameter toggles every column of the named parameters.
func UpdateVisibilityByParameter(params []ColumnVis, model map[string]bool) map[string]bool {
	next := cloneVisibility(model)
	for key := range model {
		for _, p := range params {
			if strings.HasPrefix(key, p.Name+".") {
				next[key] = p.Visible
			}
		}
	}
	return next
}

// UpdateVisibility toggles individual columns by key.
func UpdateVisibility(cols []ColumnVis, model map[string]bool) map[string]bool {
	next := cloneVisibility(model)
	for _, c := range cols {
		next[c.Name] = c.Visible
	}
	return next
}

func cloneVisibility(model map[string]bool) map[string]bool {
	next := make(map[string]bool, len(model))
	for k, v := range model {
		next[k] = v
	}
	return next
}

// FormatValue renders v with the given number of decimals; unknown values render blank.
func FormatValue(v models.NullFloat, precision int) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', precision, 64)
}

// CellValue returns the value a column shows for a row.
func CellValue(r Row, c Column) models.NullFloat {
	if c.Determinate == models.DeterminateForecast {
		return r.Cells[c.Parameter].Forecast.Value
	}
	return r.Cells[c.Parameter].Values[c.Determinate]
}
