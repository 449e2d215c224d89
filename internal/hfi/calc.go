package hfi

import (
	"math"
	"sort"
	"time"

	"github.com/lox/firecast/internal/metrics"
	"github.com/lox/firecast/internal/models"
)

// roundHalfUp rounds to the nearest integer with halves going up, so 2.5
// becomes 3 and -2.5 becomes -2.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// MeanIntensityGroup is the mean intensity group of dailies to one decimal
// place. It is unknown when dailies is empty.
func MeanIntensityGroup(dailies []models.StationDaily) models.NullFloat {
	if len(dailies) == 0 {
		return models.NullFloat{}
	}
	var sum float64
	for _, d := range dailies {
		sum += float64(d.IntensityGroup)
	}
	mean := sum / float64(len(dailies))
	return models.Float(roundHalfUp(10*mean) / 10)
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DailiesOn returns the dailies that fall on day's UTC calendar date.
func DailiesOn(dailies []models.StationDaily, day time.Time) []models.StationDaily {
	want := utcDay(day)
	var out []models.StationDaily
	for _, d := range dailies {
		if utcDay(d.Date).Equal(want) {
			out = append(out, d)
		}
	}
	return out
}

// DailyMeanIntensityGroups groups dailies by UTC day and returns the mean
// intensity group of the first numPrepDays days in date order. Positions
// past the last day with data are unknown.
func DailyMeanIntensityGroups(dailies []models.StationDaily, numPrepDays int) []models.NullFloat {
	byDay := make(map[time.Time][]models.StationDaily)
	var days []time.Time
	for _, d := range dailies {
		day := utcDay(d.Date)
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if numPrepDays < 0 {
		numPrepDays = 0
	}
	out := make([]models.NullFloat, numPrepDays)
	for i := range out {
		if i < len(days) {
			out[i] = MeanIntensityGroup(byDay[days[i]])
		}
	}
	return out
}

// MaxMeanIntensityGroup is the highest known value, or unknown if none are known.
func MaxMeanIntensityGroup(values []models.NullFloat) models.NullFloat {
	var highest models.NullFloat
	for _, v := range values {
		if v.Valid && (!highest.Valid || v.Float64 > highest.Float64) {
			highest = v
		}
	}
	return highest
}

// PrepLevel maps a mean intensity group to a prep level from 1 to 4,
// assuming the lowest fire start range. It is a preview; prep levels on a
// persisted result come from the fire weather API.
func PrepLevel(meanIntensityGroup models.NullFloat) models.NullFloat {
	if !meanIntensityGroup.Valid {
		return models.NullFloat{}
	}
	mig := roundHalfUp(meanIntensityGroup.Float64)
	switch {
	case mig < 3:
		return models.Float(1)
	case mig < 4:
		return models.Float(2)
	case mig < 5:
		return models.Float(3)
	default:
		return models.Float(4)
	}
}

// MeanPrepLevel averages the known prep levels after rounding each one, then
// rounds the result. Unknown levels count towards neither sum nor divisor.
func MeanPrepLevel(levels []models.NullFloat) models.NullFloat {
	var sum float64
	var n int
	for _, l := range levels {
		if !l.Valid {
			continue
		}
		sum += roundHalfUp(l.Float64)
		n++
	}
	if n == 0 {
		return models.NullFloat{}
	}
	return models.Float(roundHalfUp(sum / float64(n)))
}

// Summarize computes the fire danger of every planning area in centre from the
// selected stations' dailies. When day is set, the scalar mean intensity group
// and prep level only consider that day. Areas come out in display order.
func Summarize(centre models.FireCentre, dailies []models.StationDaily, selected []int, numPrepDays int, day *time.Time) []AreaSummary {
	started := time.Now()
	defer func() {
		metrics.RecomputeDuration.WithLabelValues("hfi_summary").Observe(time.Since(started).Seconds())
	}()

	areas := make([]models.PlanningArea, len(centre.PlanningAreas))
	copy(areas, centre.PlanningAreas)
	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].OrderOfAppearance < areas[j].OrderOfAppearance
	})

	out := make([]AreaSummary, 0, len(areas))
	for _, area := range areas {
		areaDailies := DailiesForArea(area, dailies, selected)
		scoped := areaDailies
		if day != nil {
			scoped = DailiesOn(areaDailies, *day)
		}

		s := AreaSummary{
			PlanningAreaID:          area.ID,
			Name:                    area.Name,
			Zone:                    ZoneFromAreaName(area.Name),
			Dailies:                 areaDailies,
			MeanIntensityGroup:      MeanIntensityGroup(scoped),
			DailyMeanIntensityGroup: DailyMeanIntensityGroups(areaDailies, numPrepDays),
		}
		s.MaxMeanIntensityGroup = MaxMeanIntensityGroup(s.DailyMeanIntensityGroup)
		s.PrepLevel = PrepLevel(s.MeanIntensityGroup)
		s.DailyPrepLevels = make([]models.NullFloat, len(s.DailyMeanIntensityGroup))
		for i, mig := range s.DailyMeanIntensityGroup {
			s.DailyPrepLevels[i] = PrepLevel(mig)
		}
		s.MeanPrepLevel = MeanPrepLevel(s.DailyPrepLevels)
		out = append(out, s)
	}
	return out
}

// Recompute returns a copy of r with every derived field rederived from its
// dailies: each day's mean intensity group from its valid selected dailies,
// and each area's validity flag, highest daily intensity group and mean prep
// level. Prep levels themselves stay as the API computed them since they
// depend on fire starts.
func Recompute(r Result) Result {
	selected := make(map[int]bool, len(r.SelectedStationCodeIDs))
	for _, code := range r.SelectedStationCodeIDs {
		selected[code] = true
	}

	areas := make([]PlanningAreaResult, len(r.PlanningAreaHFIResults))
	for i, area := range r.PlanningAreaHFIResults {
		area.AllDailiesValid = true
		daily := make([]DailyResult, len(area.DailyResults))
		migs := make([]models.NullFloat, len(area.DailyResults))
		levels := make([]models.NullFloat, len(area.DailyResults))
		for j, dr := range area.DailyResults {
			var valid []models.StationDaily
			for _, vd := range dr.Dailies {
				if !selected[vd.Daily.Code] {
					continue
				}
				if !vd.Valid {
					area.AllDailiesValid = false
					continue
				}
				valid = append(valid, vd.Daily)
			}
			dr.MeanIntensityGroup = MeanIntensityGroup(valid)
			daily[j] = dr
			migs[j] = dr.MeanIntensityGroup
			levels[j] = dr.PrepLevel
		}
		area.DailyResults = daily
		area.HighestDailyIntensityGroup = MaxMeanIntensityGroup(migs)
		area.MeanPrepLevel = MeanPrepLevel(levels)
		areas[i] = area
	}
	r.PlanningAreaHFIResults = areas
	return r
}
