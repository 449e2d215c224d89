package hfi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/firecast/internal/models"
)

var day1 = time.Date(2022, 7, 12, 20, 0, 0, 0, time.UTC)

func daily(code, intensityGroup int, date time.Time) models.StationDaily {
	return models.StationDaily{
		Code:             code,
		IntensityGroup:   intensityGroup,
		Date:             date,
		ObservationValid: true,
	}
}

func testCentre() models.FireCentre {
	return models.FireCentre{
		ID:   1,
		Name: "Kamloops Fire Centre",
		PlanningAreas: []models.PlanningArea{
			{
				ID: 20, Name: "Vernon VE4", OrderOfAppearance: 2,
				Stations: []models.WeatherStation{{Code: 3}},
			},
			{
				ID: 10, Name: "Kamloops K2", OrderOfAppearance: 1,
				Stations: []models.WeatherStation{{Code: 1}, {Code: 2}},
			},
		},
	}
}

func TestMeanIntensityGroup(t *testing.T) {
	tests := []struct {
		name   string
		groups []int
		want   models.NullFloat
	}{
		{"empty", nil, models.NullFloat{}},
		{"single", []int{4}, models.Float(4)},
		{"rounds to one decimal", []int{2, 3, 5}, models.Float(3.3)},
		{"half rounds up", []int{1, 2, 2, 2}, models.Float(1.8)},
		{"two thirds", []int{1, 2, 2}, models.Float(1.7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dailies []models.StationDaily
			for i, g := range tt.groups {
				dailies = append(dailies, daily(i, g, day1))
			}
			got := MeanIntensityGroup(dailies)
			assert.Equal(t, tt.want.Valid, got.Valid)
			assert.InDelta(t, tt.want.Float64, got.Float64, 1e-9)
		})
	}
}

func TestPrepLevel(t *testing.T) {
	tests := []struct {
		mig  models.NullFloat
		want models.NullFloat
	}{
		{models.NullFloat{}, models.NullFloat{}},
		{models.Float(1), models.Float(1)},
		{models.Float(2.4), models.Float(1)},
		{models.Float(2.5), models.Float(2)},
		{models.Float(3.4), models.Float(2)},
		{models.Float(3.6), models.Float(3)},
		{models.Float(4.4), models.Float(3)},
		{models.Float(4.5), models.Float(4)},
		{models.Float(5), models.Float(4)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrepLevel(tt.mig), "mig %v", tt.mig)
	}
}

func TestMeanPrepLevel(t *testing.T) {
	assert.Equal(t, models.Float(2), MeanPrepLevel([]models.NullFloat{
		models.Float(1), models.Float(2), {}, models.Float(3),
	}))
	assert.Equal(t, models.Float(2), MeanPrepLevel([]models.NullFloat{models.Float(1.4), models.Float(2.6)}))
	assert.Equal(t, models.Float(3), MeanPrepLevel([]models.NullFloat{models.Float(2), models.Float(3)}))
	assert.False(t, MeanPrepLevel([]models.NullFloat{{}, {}}).Valid)
	assert.False(t, MeanPrepLevel(nil).Valid)
}

func TestDailyMeanIntensityGroups(t *testing.T) {
	day2 := day1.AddDate(0, 0, 1)
	dailies := []models.StationDaily{
		daily(1, 4, day2),
		daily(1, 1, day1),
		daily(2, 2, day1),
		// Late evening Pacific time is the next UTC day.
		daily(2, 4, time.Date(2022, 7, 12, 21, 0, 0, 0, time.FixedZone("PDT", -7*60*60))),
	}

	got := DailyMeanIntensityGroups(dailies, 3)
	require.Len(t, got, 3)
	assert.Equal(t, models.Float(1.5), got[0])
	assert.Equal(t, models.Float(4), got[1])
	assert.False(t, got[2].Valid)

	assert.Empty(t, DailyMeanIntensityGroups(dailies, 0))
}

func TestMaxMeanIntensityGroup(t *testing.T) {
	assert.Equal(t, models.Float(3.5), MaxMeanIntensityGroup([]models.NullFloat{
		models.Float(1), {}, models.Float(3.5), models.Float(2),
	}))
	assert.False(t, MaxMeanIntensityGroup([]models.NullFloat{{}, {}}).Valid)
}

func TestSummarize(t *testing.T) {
	day2 := day1.AddDate(0, 0, 1)
	dailies := []models.StationDaily{
		daily(1, 2, day1), daily(2, 3, day1), daily(3, 5, day1),
		daily(1, 4, day2), daily(2, 5, day2), daily(3, 1, day2),
	}

	summaries := Summarize(testCentre(), dailies, []int{1, 2, 3}, 2, nil)
	require.Len(t, summaries, 2)

	kamloops := summaries[0]
	assert.Equal(t, 10, kamloops.PlanningAreaID)
	assert.Equal(t, " K2", kamloops.Zone)
	assert.Len(t, kamloops.Dailies, 4)
	assert.Equal(t, models.Float(3.5), kamloops.MeanIntensityGroup)
	assert.Equal(t, []models.NullFloat{models.Float(2.5), models.Float(4.5)}, kamloops.DailyMeanIntensityGroup)
	assert.Equal(t, models.Float(4.5), kamloops.MaxMeanIntensityGroup)
	assert.Equal(t, models.Float(3), kamloops.PrepLevel)
	assert.Equal(t, []models.NullFloat{models.Float(2), models.Float(4)}, kamloops.DailyPrepLevels)
	assert.Equal(t, models.Float(3), kamloops.MeanPrepLevel)

	vernon := summaries[1]
	assert.Equal(t, 20, vernon.PlanningAreaID)
	assert.Equal(t, models.Float(3), vernon.MeanIntensityGroup)
}

func TestSummarize_SelectionAndDay(t *testing.T) {
	day2 := day1.AddDate(0, 0, 1)
	dailies := []models.StationDaily{
		daily(1, 2, day1), daily(2, 3, day1),
		daily(1, 4, day2), daily(2, 5, day2),
	}

	summaries := Summarize(testCentre(), dailies, []int{1}, 2, &day2)
	require.Len(t, summaries, 2)
	assert.Len(t, summaries[0].Dailies, 2)
	assert.Equal(t, models.Float(4), summaries[0].MeanIntensityGroup)
	assert.Equal(t, []models.NullFloat{models.Float(2), models.Float(4)}, summaries[0].DailyMeanIntensityGroup)

	// Nothing selected in the area leaves everything unknown.
	assert.Empty(t, summaries[1].Dailies)
	assert.False(t, summaries[1].MeanIntensityGroup.Valid)
	assert.False(t, summaries[1].PrepLevel.Valid)
	assert.False(t, summaries[1].MeanPrepLevel.Valid)
	assert.Len(t, summaries[1].DailyPrepLevels, 2)
}

func TestRecompute(t *testing.T) {
	r := Result{
		SelectedStationCodeIDs: []int{1, 2},
		PlanningAreaHFIResults: []PlanningAreaResult{{
			PlanningAreaID: 10,
			DailyResults: []DailyResult{
				{
					Date: "2022-07-12",
					Dailies: []ValidatedStationDaily{
						{Daily: daily(1, 2, day1), Valid: true},
						{Daily: daily(2, 5, day1), Valid: true},
						{Daily: daily(3, 5, day1), Valid: true},
					},
					PrepLevel: models.Float(2),
				},
				{
					Date: "2022-07-13",
					Dailies: []ValidatedStationDaily{
						{Daily: daily(1, 4, day1.AddDate(0, 0, 1)), Valid: true},
						{Daily: daily(2, 1, day1.AddDate(0, 0, 1)), Valid: false},
					},
					PrepLevel: models.Float(3),
				},
			},
		}},
	}

	got := Recompute(r)
	area := got.PlanningAreaHFIResults[0]
	assert.False(t, area.AllDailiesValid)
	assert.Equal(t, models.Float(3.5), area.DailyResults[0].MeanIntensityGroup)
	assert.Equal(t, models.Float(4), area.DailyResults[1].MeanIntensityGroup)
	assert.Equal(t, models.Float(4), area.HighestDailyIntensityGroup)
	assert.Equal(t, models.Float(3), area.MeanPrepLevel)
	assert.Equal(t, models.Float(2), area.DailyResults[0].PrepLevel)

	// The input is left alone.
	assert.False(t, r.PlanningAreaHFIResults[0].DailyResults[0].MeanIntensityGroup.Valid)
}
