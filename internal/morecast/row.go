// Package morecast builds and edits the forecast grid: one row per station per
// day, combining observed actuals, model predictions and the forecaster's values.
package morecast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/firecast/internal/models"
)

// Parameter is a column group in the forecast grid.
type Parameter int

const (
	ParamTemp Parameter = iota
	ParamRH
	ParamPrecip
	ParamWindDirection
	ParamWindSpeed
	ParamFFMC
	ParamDMC
	ParamDC
	ParamISI
	ParamBUI
	ParamFWI
	ParamDGR
	ParamGrassCuring

	NumParameters = int(ParamGrassCuring) + 1
)

var parameterNames = [NumParameters]string{
	ParamTemp:          "temp",
	ParamRH:            "rh",
	ParamPrecip:        "precip",
	ParamWindDirection: "windDirection",
	ParamWindSpeed:     "windSpeed",
	ParamFFMC:          "ffmc",
	ParamDMC:           "dmc",
	ParamDC:            "dc",
	ParamISI:           "isi",
	ParamBUI:           "bui",
	ParamFWI:           "fwi",
	ParamDGR:           "dgr",
	ParamGrassCuring:   "grassCuring",
}

var parameterPrecision = [NumParameters]int{
	ParamTemp:          1,
	ParamRH:            0,
	ParamPrecip:        1,
	ParamWindDirection: 0,
	ParamWindSpeed:     1,
	ParamFFMC:          1,
	ParamDMC:           1,
	ParamDC:            1,
	ParamISI:           1,
	ParamBUI:           1,
	ParamFWI:           1,
	ParamDGR:           0,
	ParamGrassCuring:   0,
}

// weatherParameters are the values numerical models predict.
var weatherParameters = []Parameter{ParamTemp, ParamRH, ParamPrecip, ParamWindDirection, ParamWindSpeed}

// indexParameters are derived from the weather by the indices simulation.
var indexParameters = []Parameter{ParamFFMC, ParamDMC, ParamDC, ParamISI, ParamBUI, ParamFWI, ParamDGR}

func (p Parameter) String() string {
	if p < 0 || int(p) >= NumParameters {
		return fmt.Sprintf("Parameter(%d)", int(p))
	}
	return parameterNames[p]
}

// Precision is the number of decimals the grid displays for p.
func (p Parameter) Precision() int {
	if p < 0 || int(p) >= NumParameters {
		return 0
	}
	return parameterPrecision[p]
}

// ParseParameter maps a column-group name back to its Parameter.
func ParseParameter(s string) (Parameter, bool) {
	for i, name := range parameterNames {
		if name == s {
			return Parameter(i), true
		}
	}
	return 0, false
}

// valueOf reads the field of wi that backs parameter p.
func valueOf(wi models.WeatherIndeterminate, p Parameter) models.NullFloat {
	switch p {
	case ParamTemp:
		return wi.Temperature
	case ParamRH:
		return wi.RelativeHumidity
	case ParamPrecip:
		return wi.Precipitation
	case ParamWindDirection:
		return wi.WindDirection
	case ParamWindSpeed:
		return wi.WindSpeed
	case ParamFFMC:
		return wi.FineFuelMoistureCode
	case ParamDMC:
		return wi.DuffMoistureCode
	case ParamDC:
		return wi.DroughtCode
	case ParamISI:
		return wi.InitialSpreadIndex
	case ParamBUI:
		return wi.BuildUpIndex
	case ParamFWI:
		return wi.FireWeatherIndex
	case ParamDGR:
		return wi.DangerRating
	case ParamGrassCuring:
		return wi.GrassCuring
	}
	return models.NullFloat{}
}

func setValue(wi *models.WeatherIndeterminate, p Parameter, v models.NullFloat) {
	switch p {
	case ParamTemp:
		wi.Temperature = v
	case ParamRH:
		wi.RelativeHumidity = v
	case ParamPrecip:
		wi.Precipitation = v
	case ParamWindDirection:
		wi.WindDirection = v
	case ParamWindSpeed:
		wi.WindSpeed = v
	case ParamFFMC:
		wi.FineFuelMoistureCode = v
	case ParamDMC:
		wi.DuffMoistureCode = v
	case ParamDC:
		wi.DroughtCode = v
	case ParamISI:
		wi.InitialSpreadIndex = v
	case ParamBUI:
		wi.BuildUpIndex = v
	case ParamFWI:
		wi.FireWeatherIndex = v
	case ParamDGR:
		wi.DangerRating = v
	case ParamGrassCuring:
		wi.GrassCuring = v
	}
}

// ForecastValue is the editable forecast for one parameter and where it came from.
type ForecastValue struct {
	Choice models.Determinate `json:"choice"`
	Value  models.NullFloat   `json:"value"`
}

// Equal compares two forecast values, treating unknown values as equal.
func (f ForecastValue) Equal(o ForecastValue) bool {
	if f.Choice != o.Choice || f.Value.Valid != o.Value.Valid {
		return false
	}
	return !f.Value.Valid || f.Value.Float64 == o.Value.Float64
}

// Cell holds every known value of one parameter for a row.
type Cell struct {
	Values   [models.NumDeterminates]models.NullFloat
	Forecast ForecastValue
}

// Row is one station on one calendar day.
type Row struct {
	ID          string
	StationCode int
	StationName string
	ForDate     time.Time
	Latitude    float64
	Longitude   float64
	Cells       [NumParameters]Cell
}

// Value returns the value p has under determinate d.
func (r Row) Value(p Parameter, d models.Determinate) models.NullFloat {
	return r.Cells[p].Values[d]
}

// Forecast returns the forecast value of p.
func (r Row) Forecast(p Parameter) ForecastValue {
	return r.Cells[p].Forecast
}

type cellJSON struct {
	Values   map[models.Determinate]models.NullFloat `json:"values,omitempty"`
	Forecast ForecastValue                           `json:"forecast"`
}

type rowJSON struct {
	ID          string              `json:"id"`
	StationCode int                 `json:"stationCode"`
	StationName string              `json:"stationName"`
	ForDate     string              `json:"forDate"`
	Latitude    float64             `json:"latitude"`
	Longitude   float64             `json:"longitude"`
	Parameters  map[string]cellJSON `json:"parameters"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := rowJSON{
		ID:          r.ID,
		StationCode: r.StationCode,
		StationName: r.StationName,
		ForDate:     r.ForDate.Format("2006-01-02"),
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Parameters:  make(map[string]cellJSON, NumParameters),
	}
	for p := Parameter(0); int(p) < NumParameters; p++ {
		cell := r.Cells[p]
		cj := cellJSON{Forecast: cell.Forecast}
		for d, v := range cell.Values {
			if !v.Valid {
				continue
			}
			if cj.Values == nil {
				cj.Values = make(map[models.Determinate]models.NullFloat)
			}
			cj.Values[models.Determinate(d)] = v
		}
		out.Parameters[p.String()] = cj
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a row. Every parameter must be present so a partial
// row cannot clear forecasts it did not mention.
func (r *Row) UnmarshalJSON(b []byte) error {
	var in rowJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Row{
		ID:          in.ID,
		StationCode: in.StationCode,
		StationName: in.StationName,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
	}
	if in.ForDate != "" {
		day, err := time.Parse("2006-01-02", in.ForDate)
		if err != nil {
			return fmt.Errorf("parse forDate: %w", err)
		}
		r.ForDate = day
	}
	for p := Parameter(0); int(p) < NumParameters; p++ {
		cj, ok := in.Parameters[p.String()]
		if !ok {
			return fmt.Errorf("missing parameter %q", p.String())
		}
		r.Cells[p].Forecast = cj.Forecast
		for d, v := range cj.Values {
			r.Cells[p].Values[d] = v
		}
	}
	return nil
}

// Day truncates t to the start of its calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

type rowBuilder struct {
	loc   *time.Location
	rows  []Row
	index map[string]int
}

func (b *rowBuilder) row(wi models.WeatherIndeterminate) *Row {
	day := Day(wi.UTCTimestamp, b.loc)
	id := models.RowID(wi.StationCode, day)
	i, ok := b.index[id]
	if !ok {
		i = len(b.rows)
		b.index[id] = i
		b.rows = append(b.rows, Row{ID: id, StationCode: wi.StationCode, ForDate: day})
	}
	r := &b.rows[i]
	if wi.StationName != "" {
		r.StationName = wi.StationName
	}
	if wi.Latitude != 0 || wi.Longitude != 0 {
		r.Latitude = wi.Latitude
		r.Longitude = wi.Longitude
	}
	return r
}

// BuildRows merges actuals, forecasts and predictions into one row per station
// and calendar day in loc. Rows come out in the order their keys are first seen.
func BuildRows(actuals, forecasts, predictions []models.WeatherIndeterminate, loc *time.Location) []Row {
	b := &rowBuilder{loc: loc, index: make(map[string]int)}

	for _, a := range actuals {
		r := b.row(a)
		for p := Parameter(0); int(p) < NumParameters; p++ {
			r.Cells[p].Values[models.DeterminateActual] = valueOf(a, p)
		}
	}

	for _, pr := range predictions {
		if !pr.Determinate.IsModel() {
			continue
		}
		r := b.row(pr)
		for _, p := range weatherParameters {
			r.Cells[p].Values[pr.Determinate] = valueOf(pr, p)
		}
	}

	forecasted := make(map[string]bool)
	for _, f := range forecasts {
		r := b.row(f)
		forecasted[r.ID] = true
		for p := Parameter(0); int(p) < NumParameters; p++ {
			r.Cells[p].Forecast = ForecastValue{Choice: f.Determinate, Value: valueOf(f, p)}
		}
	}

	// A day with no observed precipitation starts the forecast at zero; the
	// choice is left alone so a filled default stays distinguishable from a real zero.
	for i := range b.rows {
		r := &b.rows[i]
		if !forecasted[r.ID] {
			continue
		}
		precip := &r.Cells[ParamPrecip]
		if !precip.Values[models.DeterminateActual].Valid && !precip.Forecast.Value.Valid {
			precip.Forecast.Value = models.Float(0)
		}
	}

	return b.rows
}

// ForecastIndeterminates converts rows back into forecast records, one per row,
// carrying each parameter's current forecast value.
func ForecastIndeterminates(rows []Row) []models.WeatherIndeterminate {
	out := make([]models.WeatherIndeterminate, 0, len(rows))
	for _, r := range rows {
		wi := models.WeatherIndeterminate{
			ID:           r.ID,
			StationCode:  r.StationCode,
			StationName:  r.StationName,
			Determinate:  models.DeterminateForecast,
			UTCTimestamp: r.ForDate.UTC(),
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
		}
		for p := Parameter(0); int(p) < NumParameters; p++ {
			setValue(&wi, p, r.Cells[p].Forecast.Value)
		}
		out = append(out, wi)
	}
	return out
}
