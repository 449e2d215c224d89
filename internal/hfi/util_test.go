package hfi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/firecast/internal/models"
)

func TestNumPrepDays(t *testing.T) {
	tests := []struct {
		name string
		r    PrepDateRange
		want int
	}{
		{"missing", PrepDateRange{}, 0},
		{"missing end", PrepDateRange{StartDate: "2022-07-12"}, 0},
		{"single day", PrepDateRange{StartDate: "2022-07-12", EndDate: "2022-07-12"}, 1},
		{"five days", PrepDateRange{StartDate: "2022-07-12", EndDate: "2022-07-16"}, 5},
		{"bad date", PrepDateRange{StartDate: "12/07/2022", EndDate: "2022-07-16"}, 0},
		{"inverted", PrepDateRange{StartDate: "2024-05-10", EndDate: "2024-05-01"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NumPrepDays(tt.r))
		})
	}
}

func TestDailiesForArea(t *testing.T) {
	area := testCentre().PlanningAreas[1]
	dailies := []models.StationDaily{daily(1, 1, day1), daily(2, 2, day1), daily(3, 3, day1)}

	got := DailiesForArea(area, dailies, []int{2, 3})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Code)
}

func TestDailiesByStationCode(t *testing.T) {
	assert.Nil(t, DailiesByStationCode(nil, 1))

	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)
	r := &Result{
		DateRange: PrepDateRange{StartDate: "2022-07-12", EndDate: "2022-07-13"},
		PlanningAreaHFIResults: []PlanningAreaResult{{
			DailyResults: []DailyResult{
				{Dailies: []ValidatedStationDaily{{Daily: daily(1, 3, day3)}, {Daily: daily(2, 1, day1)}}},
				{Dailies: []ValidatedStationDaily{{Daily: daily(1, 2, day2)}}},
				{Dailies: []ValidatedStationDaily{{Daily: daily(1, 1, day1)}}},
			},
		}},
	}

	got := DailiesByStationCode(r, 1)
	require.Len(t, got, 2)
	assert.Equal(t, day1, got[0].Date)
	assert.Equal(t, day2, got[1].Date)
}

func TestDailiesByStationCode_InvertedRange(t *testing.T) {
	r := &Result{
		DateRange: PrepDateRange{StartDate: "2024-05-10", EndDate: "2024-05-01"},
		PlanningAreaHFIResults: []PlanningAreaResult{{
			DailyResults: []DailyResult{{Dailies: []ValidatedStationDaily{{Daily: daily(1, 2, day1)}}}},
		}},
	}
	assert.Empty(t, DailiesByStationCode(r, 1))
}

func TestStationCodeSelected(t *testing.T) {
	r := &Result{PlanningAreaStationInfo: map[int][]StationInfo{
		10: {{StationCode: 1, Selected: true}, {StationCode: 2, Selected: false}},
	}}
	assert.True(t, StationCodeSelected(r, 10, 1))
	assert.False(t, StationCodeSelected(r, 10, 2))
	assert.False(t, StationCodeSelected(r, 10, 3))
	assert.False(t, StationCodeSelected(r, 11, 1))
	assert.False(t, StationCodeSelected(nil, 10, 1))
}

func TestFireStartRangeByID(t *testing.T) {
	r, err := FireStartRangeByID(4)
	require.NoError(t, err)
	assert.Equal(t, "3-6", r.Label)

	_, err = FireStartRangeByID(9)
	assert.Error(t, err)
}

func TestResultJSON(t *testing.T) {
	payload := `{
		"date_range": {"start_date": "2022-07-12", "end_date": "2022-07-16"},
		"selected_station_code_ids": [1, 2],
		"selected_fire_center_id": 1,
		"planning_area_hfi_results": [{
			"planning_area_id": 10,
			"all_dailies_valid": true,
			"highest_daily_intensity_group": 3,
			"mean_prep_level": null,
			"daily_results": [{
				"date": "2022-07-12",
				"dailies": [{"daily": {"code": 1, "intensity_group": 3, "hfi": null, "date": "2022-07-12T20:00:00Z"}, "valid": true}],
				"mean_intensity_group": 3,
				"prep_level": null,
				"fire_starts": {"label": "0-1", "id": 1}
			}]
		}],
		"planning_area_station_info": {"10": [{"station_code": 1, "selected": true, "fuel_type_id": 2}]},
		"request_persist_success": true,
		"fire_start_ranges": [{"label": "0-1", "id": 1}]
	}`

	var r Result
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	assert.Equal(t, 5, NumPrepDays(r.DateRange))
	assert.True(t, StationCodeSelected(&r, 10, 1))

	dr := r.PlanningAreaHFIResults[0].DailyResults[0]
	assert.Equal(t, FireStarts0To1, dr.FireStarts)
	assert.False(t, dr.PrepLevel.Valid)
	assert.Equal(t, models.Float(3), dr.MeanIntensityGroup)
	assert.False(t, dr.Dailies[0].Daily.HFI.Valid)
	assert.Len(t, r.Dailies(), 1)
}
