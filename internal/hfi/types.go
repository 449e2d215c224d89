// Package hfi aggregates per-station fire behaviour into planning area
// intensity groups and prep levels.
package hfi

import (
	"fmt"

	"github.com/lox/firecast/internal/models"
)

// FireStartRange is an estimated daily fire start count bucket.
type FireStartRange struct {
	Label string `json:"label"`
	ID    int    `json:"id"`
}

var (
	FireStarts0To1  = FireStartRange{Label: "0-1", ID: 1}
	FireStarts1To2  = FireStartRange{Label: "1-2", ID: 2}
	FireStarts2To3  = FireStartRange{Label: "2-3", ID: 3}
	FireStarts3To6  = FireStartRange{Label: "3-6", ID: 4}
	FireStarts6Plus = FireStartRange{Label: "6+", ID: 5}
)

// FireStartRanges returns every bucket in ascending order.
func FireStartRanges() []FireStartRange {
	return []FireStartRange{FireStarts0To1, FireStarts1To2, FireStarts2To3, FireStarts3To6, FireStarts6Plus}
}

// FireStartRangeByID looks up a bucket by id.
func FireStartRangeByID(id int) (FireStartRange, error) {
	for _, r := range FireStartRanges() {
		if r.ID == id {
			return r, nil
		}
	}
	return FireStartRange{}, fmt.Errorf("unknown fire start range %d", id)
}

// PrepDateRange is the inclusive prep period, as YYYY-MM-DD dates.
type PrepDateRange struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type ValidatedStationDaily struct {
	Daily models.StationDaily `json:"daily"`
	Valid bool                `json:"valid"`
}

type DailyResult struct {
	Date               string                  `json:"date"`
	Dailies            []ValidatedStationDaily `json:"dailies"`
	MeanIntensityGroup models.NullFloat        `json:"mean_intensity_group"`
	PrepLevel          models.NullFloat        `json:"prep_level"`
	FireStarts         FireStartRange          `json:"fire_starts"`
}

type PlanningAreaResult struct {
	PlanningAreaID             int              `json:"planning_area_id"`
	AllDailiesValid            bool             `json:"all_dailies_valid"`
	HighestDailyIntensityGroup models.NullFloat `json:"highest_daily_intensity_group"`
	MeanPrepLevel              models.NullFloat `json:"mean_prep_level"`
	DailyResults               []DailyResult    `json:"daily_results"`
}

// StationInfo is a station's selection and fuel type within a planning area.
type StationInfo struct {
	StationCode int  `json:"station_code"`
	Selected    bool `json:"selected"`
	FuelTypeID  int  `json:"fuel_type_id"`
}

// Result is the HFI calculation for a fire centre over a prep period, as
// returned by the fire weather API.
type Result struct {
	DateRange               PrepDateRange         `json:"date_range"`
	SelectedStationCodeIDs  []int                 `json:"selected_station_code_ids"`
	SelectedFireCenterID    int                   `json:"selected_fire_center_id"`
	PlanningAreaHFIResults  []PlanningAreaResult  `json:"planning_area_hfi_results"`
	PlanningAreaStationInfo map[int][]StationInfo `json:"planning_area_station_info,omitempty"`
	RequestPersistSuccess   bool                  `json:"request_persist_success"`
	FireStartRanges         []FireStartRange      `json:"fire_start_ranges"`
}

// AreaSummary is the locally computed fire danger for one planning area.
type AreaSummary struct {
	PlanningAreaID          int                   `json:"planning_area_id"`
	Name                    string                `json:"name"`
	Zone                    string                `json:"zone"`
	Dailies                 []models.StationDaily `json:"dailies"`
	MeanIntensityGroup      models.NullFloat      `json:"mean_intensity_group"`
	DailyMeanIntensityGroup []models.NullFloat    `json:"daily_mean_intensity_groups"`
	MaxMeanIntensityGroup   models.NullFloat      `json:"max_mean_intensity_group"`
	PrepLevel               models.NullFloat      `json:"prep_level"`
	DailyPrepLevels         []models.NullFloat    `json:"daily_prep_levels"`
	MeanPrepLevel           models.NullFloat      `json:"mean_prep_level"`
}
