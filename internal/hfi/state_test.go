package hfi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/firecast/internal/models"
)

func testResult() *Result {
	day2 := day1.AddDate(0, 0, 1)
	return &Result{
		DateRange:              PrepDateRange{StartDate: "2022-07-12", EndDate: "2022-07-13"},
		SelectedStationCodeIDs: []int{1, 2, 3},
		SelectedFireCenterID:   1,
		RequestPersistSuccess:  true,
		PlanningAreaHFIResults: []PlanningAreaResult{{
			PlanningAreaID: 10,
			DailyResults: []DailyResult{
				{Date: "2022-07-12", Dailies: []ValidatedStationDaily{
					{Daily: daily(1, 2, day1), Valid: true},
					{Daily: daily(2, 3, day1), Valid: true},
				}},
				{Date: "2022-07-13", Dailies: []ValidatedStationDaily{
					{Daily: daily(1, 4, day2), Valid: true},
					{Daily: daily(2, 5, day2), Valid: true},
				}},
			},
		}},
	}
}

func TestState_SetResult(t *testing.T) {
	s := NewState()
	centre := testCentre()
	s.SetFireCentre(&centre)
	assert.Nil(t, s.Snapshot().Summaries)

	assert.True(t, s.Start().Loading)
	snap := s.SetResult(testResult())

	assert.False(t, snap.Loading)
	assert.True(t, snap.Saved)
	assert.Equal(t, 2, snap.NumPrepDays)
	assert.Equal(t, []int{1, 2, 3}, snap.Selected)
	require.Len(t, snap.Summaries, 2)
	assert.Equal(t, models.Float(3.5), snap.Summaries[0].MeanIntensityGroup)
	assert.Equal(t, models.Float(2.5), snap.Result.PlanningAreaHFIResults[0].DailyResults[0].MeanIntensityGroup)
}

func TestState_SetResultInvertedRange(t *testing.T) {
	s := NewState()
	centre := testCentre()
	s.SetFireCentre(&centre)

	r := testResult()
	r.DateRange = PrepDateRange{StartDate: "2024-05-10", EndDate: "2024-05-01"}
	snap := s.SetResult(r)
	assert.Equal(t, 0, snap.NumPrepDays)
	for _, sum := range snap.Summaries {
		assert.Empty(t, sum.DailyMeanIntensityGroup)
	}
}

func TestState_CommandsRecompute(t *testing.T) {
	s := NewState()
	centre := testCentre()
	s.SetFireCentre(&centre)
	s.SetResult(testResult())

	snap := s.SetPrepDate("2022-07-13")
	assert.Equal(t, models.Float(4.5), snap.Summaries[0].MeanIntensityGroup)

	snap = s.SetSelected([]int{1})
	assert.Equal(t, models.Float(4), snap.Summaries[0].MeanIntensityGroup)

	snap = s.SetPrepDate("")
	assert.Equal(t, models.Float(3), snap.Summaries[0].MeanIntensityGroup)

	snap = s.SetNumPrepDays(3)
	assert.Len(t, snap.Summaries[0].DailyMeanIntensityGroup, 3)

	snap = s.SetFireCentre(nil)
	assert.Nil(t, snap.Summaries)
}

func TestState_FailedAndSaved(t *testing.T) {
	s := NewState()
	assert.True(t, s.Snapshot().Saved)

	s.Start()
	snap := s.Failed(errors.New("boom"))
	assert.False(t, snap.Loading)
	assert.Equal(t, "boom", snap.Error)

	snap = s.SetSaved(false)
	assert.False(t, snap.Saved)
	assert.Equal(t, "boom", snap.Error)

	snap = s.SetResult(nil)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.Result)
}
