package morecast

import (
	"sort"
	"time"

	"github.com/lox/firecast/internal/metrics"
	"github.com/lox/firecast/internal/models"
)

// DaysInRange returns the start of every calendar day in loc from from to to, inclusive.
func DaysInRange(from, to time.Time, loc *time.Location) []time.Time {
	start := Day(from, loc)
	end := Day(to, loc)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

type fillKey struct {
	code        int
	day         string
	determinate models.Determinate
}

func sortedStationCodes(stations map[int]string) []int {
	codes := make([]int, 0, len(stations))
	for code := range stations {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

func placeholder(code int, name string, determinate models.Determinate, day, ts time.Time) models.WeatherIndeterminate {
	return models.WeatherIndeterminate{
		ID:           models.RowID(code, day),
		StationCode:  code,
		StationName:  name,
		Determinate:  determinate,
		UTCTimestamp: ts.UTC(),
	}
}

// FillMissing makes sure every station in stations has exactly one entry per
// calendar day between from and to. Existing items are returned untouched and
// in order; placeholders with unknown values are appended for the gaps.
func FillMissing(items []models.WeatherIndeterminate, from, to time.Time, stations map[int]string, determinate models.Determinate, loc *time.Location) []models.WeatherIndeterminate {
	return fill(items, from, to, stations, []models.Determinate{determinate}, false, loc)
}

// FillMissingPredictions is FillMissing across every numerical weather model.
func FillMissingPredictions(items []models.WeatherIndeterminate, from, to time.Time, stations map[int]string, loc *time.Location) []models.WeatherIndeterminate {
	return fill(items, from, to, stations, models.ModelDeterminates(), true, loc)
}

func fill(items []models.WeatherIndeterminate, from, to time.Time, stations map[int]string, determinates []models.Determinate, perDeterminate bool, loc *time.Location) []models.WeatherIndeterminate {
	keyOf := func(code int, day time.Time, d models.Determinate) fillKey {
		k := fillKey{code: code, day: day.Format("2006-01-02")}
		if perDeterminate {
			k.determinate = d
		}
		return k
	}

	seen := make(map[fillKey]bool, len(items))
	for _, it := range items {
		seen[keyOf(it.StationCode, Day(it.UTCTimestamp, loc), it.Determinate)] = true
	}

	out := make([]models.WeatherIndeterminate, len(items))
	copy(out, items)

	start := from.In(loc)
	days := DaysInRange(from, to, loc)
	added := 0
	for _, code := range sortedStationCodes(stations) {
		name := stations[code]
		for i, day := range days {
			for _, d := range determinates {
				k := keyOf(code, day, d)
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, placeholder(code, name, d, day, start.AddDate(0, 0, i)))
				added++
			}
		}
	}

	if added > 0 {
		kind := "predictions"
		if !perDeterminate {
			kind = determinates[0].String()
		}
		metrics.PlaceholdersSynthesized.WithLabelValues(kind).Add(float64(added))
	}
	return out
}
