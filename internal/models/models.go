package models

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// NullFloat is a numeric reading that may be unknown. NaN is stored as unknown.
type NullFloat struct {
	sql.NullFloat64
}

// Float returns a known value, or an unknown one when v is NaN.
func Float(v float64) NullFloat {
	if math.IsNaN(v) {
		return NullFloat{}
	}
	return NullFloat{sql.NullFloat64{Float64: v, Valid: true}}
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Float64) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		// Malformed numbers are treated as unknown rather than failing the payload.
		*n = NullFloat{}
		return nil
	}
	*n = Float(v)
	return nil
}

// Determinate classifies where a weather value came from.
type Determinate int

const (
	DeterminateNull Determinate = iota
	DeterminateActual
	DeterminateForecast
	DeterminateManual // provenance only: typed in by a forecaster
	DeterminateHRDPS
	DeterminateHRDPSBias
	DeterminateRDPS
	DeterminateRDPSBias
	DeterminateGDPS
	DeterminateGDPSBias
	DeterminateNAM
	DeterminateNAMBias
	DeterminateGFS
	DeterminateGFSBias

	NumDeterminates = int(DeterminateGFSBias) + 1
)

var determinateNames = [NumDeterminates]string{
	DeterminateNull:      "NULL",
	DeterminateActual:    "ACTUAL",
	DeterminateForecast:  "FORECAST",
	DeterminateManual:    "MANUAL",
	DeterminateHRDPS:     "HRDPS",
	DeterminateHRDPSBias: "HRDPS_BIAS",
	DeterminateRDPS:      "RDPS",
	DeterminateRDPSBias:  "RDPS_BIAS",
	DeterminateGDPS:      "GDPS",
	DeterminateGDPSBias:  "GDPS_BIAS",
	DeterminateNAM:       "NAM",
	DeterminateNAMBias:   "NAM_BIAS",
	DeterminateGFS:       "GFS",
	DeterminateGFSBias:   "GFS_BIAS",
}

// modelDeterminates is the grid column order for weather models.
var modelDeterminates = []Determinate{
	DeterminateHRDPS,
	DeterminateHRDPSBias,
	DeterminateRDPS,
	DeterminateRDPSBias,
	DeterminateGDPS,
	DeterminateGDPSBias,
	DeterminateNAM,
	DeterminateNAMBias,
	DeterminateGFS,
	DeterminateGFSBias,
}

// ModelDeterminates returns the numerical weather model kinds in display order.
func ModelDeterminates() []Determinate {
	out := make([]Determinate, len(modelDeterminates))
	copy(out, modelDeterminates)
	return out
}

func (d Determinate) String() string {
	if d < 0 || int(d) >= NumDeterminates {
		return fmt.Sprintf("Determinate(%d)", int(d))
	}
	return determinateNames[d]
}

// IsModel reports whether d is a numerical weather model (raw or bias adjusted).
func (d Determinate) IsModel() bool {
	return d >= DeterminateHRDPS && int(d) < NumDeterminates
}

// IsBias reports whether d is a bias-corrected model.
func (d Determinate) IsBias() bool {
	switch d {
	case DeterminateHRDPSBias, DeterminateRDPSBias, DeterminateGDPSBias, DeterminateNAMBias, DeterminateGFSBias:
		return true
	}
	return false
}

// ParseDeterminate maps a name to a Determinate. Empty or unknown names map to NULL.
func ParseDeterminate(s string) (Determinate, bool) {
	for i, name := range determinateNames {
		if name == s {
			return Determinate(i), true
		}
	}
	return DeterminateNull, false
}

func (d Determinate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Determinate) UnmarshalText(b []byte) error {
	*d, _ = ParseDeterminate(string(b))
	return nil
}

// RowID is the stable identity of a station's calendar day.
func RowID(stationCode int, day time.Time) string {
	return fmt.Sprintf("%d-%s", stationCode, day.Format("2006-01-02"))
}

// WeatherIndeterminate is one actual, forecast or model value set for a station at a time.
type WeatherIndeterminate struct {
	ID                   string      `json:"id"`
	StationCode          int         `json:"station_code"`
	StationName          string      `json:"station_name"`
	Determinate          Determinate `json:"determinate"`
	UTCTimestamp         time.Time   `json:"utc_timestamp"`
	Latitude             float64     `json:"latitude"`
	Longitude            float64     `json:"longitude"`
	Temperature          NullFloat   `json:"temperature"`
	RelativeHumidity     NullFloat   `json:"relative_humidity"`
	Precipitation        NullFloat   `json:"precipitation"`
	WindDirection        NullFloat   `json:"wind_direction"`
	WindSpeed            NullFloat   `json:"wind_speed"`
	FineFuelMoistureCode NullFloat   `json:"fine_fuel_moisture_code"`
	DuffMoistureCode     NullFloat   `json:"duff_moisture_code"`
	DroughtCode          NullFloat   `json:"drought_code"`
	InitialSpreadIndex   NullFloat   `json:"initial_spread_index"`
	BuildUpIndex         NullFloat   `json:"build_up_index"`
	FireWeatherIndex     NullFloat   `json:"fire_weather_index"`
	DangerRating         NullFloat   `json:"danger_rating"`
	GrassCuring          NullFloat   `json:"grass_curing"`
}

// WeatherIndeterminates is the upstream payload of actuals, forecasts and model predictions.
type WeatherIndeterminates struct {
	Actuals     []WeatherIndeterminate `json:"actuals"`
	Forecasts   []WeatherIndeterminate `json:"forecasts"`
	Predictions []WeatherIndeterminate `json:"predictions"`
}

type Station struct {
	Code      int       `json:"code"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"long"`
	Elevation NullFloat `json:"elevation"`
	FireZone  string    `json:"zone_code,omitempty"`
}

type WeatherStationProperties struct {
	Name      string    `json:"name"`
	Elevation NullFloat `json:"elevation"`
	UUID      string    `json:"uuid"`
}

type WeatherStation struct {
	Code                int                      `json:"code"`
	Props               WeatherStationProperties `json:"station_props"`
	OrderInPlanningArea int                      `json:"order_of_appearance_in_planning_area_list,omitempty"`
}

type PlanningArea struct {
	ID                int              `json:"id"`
	Name              string           `json:"name"`
	OrderOfAppearance int              `json:"order_of_appearance_in_list"`
	Stations          []WeatherStation `json:"stations"`
}

type FireCentre struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	PlanningAreas []PlanningArea `json:"planning_areas"`
}

// StationCodes returns every station code across the centre's planning areas.
func (c FireCentre) StationCodes() []int {
	var codes []int
	seen := make(map[int]bool)
	for _, area := range c.PlanningAreas {
		for _, st := range area.Stations {
			if !seen[st.Code] {
				seen[st.Code] = true
				codes = append(codes, st.Code)
			}
		}
	}
	return codes
}

type FuelType struct {
	ID                int     `json:"id"`
	Abbrev            string  `json:"abbrev"`
	Description       string  `json:"description"`
	FuelTypeCode      string  `json:"fuel_type_code"`
	PercentageConifer float64 `json:"percentage_conifer"`
	PercentageDeadFir float64 `json:"percentage_dead_fir"`
}

// StationDaily is the computed fire behaviour for one station on one day.
type StationDaily struct {
	Code                    int       `json:"code"`
	Status                  string    `json:"status"`
	Temperature             NullFloat `json:"temperature"`
	RelativeHumidity        NullFloat `json:"relative_humidity"`
	WindSpeed               NullFloat `json:"wind_speed"`
	WindDirection           NullFloat `json:"wind_direction"`
	GrassCurePercentage     NullFloat `json:"grass_cure_percentage"`
	Precipitation           NullFloat `json:"precipitation"`
	FFMC                    NullFloat `json:"ffmc"`
	DMC                     NullFloat `json:"dmc"`
	DC                      NullFloat `json:"dc"`
	ISI                     NullFloat `json:"isi"`
	BUI                     NullFloat `json:"bui"`
	FWI                     NullFloat `json:"fwi"`
	DangerClass             int       `json:"danger_class"`
	RateOfSpread            NullFloat `json:"rate_of_spread"`
	HFI                     NullFloat `json:"hfi"`
	ObservationValid        bool      `json:"observation_valid"`
	ObservationValidComment string    `json:"observation_valid_comment"`
	IntensityGroup          int       `json:"intensity_group"`
	SixtyMinuteFireSize     NullFloat `json:"sixty_minute_fire_size"`
	FireType                string    `json:"fire_type"`
	Date                    time.Time `json:"date"`
	LastUpdated             time.Time `json:"last_updated"`
}
