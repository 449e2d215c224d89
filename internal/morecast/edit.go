package morecast

import (
	"sort"

	"github.com/lox/firecast/internal/models"
)

// EditResult is the row set after an edit and the ids of the rows that changed.
type EditResult struct {
	Rows    []Row
	Changed []string
}

// ApplyEdit merges the forecast values of edited into the row with the same id.
// Only forecast values that differ from the stored row are copied; a manually
// entered grass curing value is carried forward to later days of the same
// station unless those days were entered manually too. rows is not modified.
func ApplyEdit(edited Row, rows []Row) EditResult {
	out := make([]Row, len(rows))
	copy(out, rows)

	idx := -1
	for i := range out {
		if out[i].ID == edited.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return EditResult{Rows: out}
	}

	target := &out[idx]
	var changed []string
	targetChanged, grassChanged := false, false
	for p := Parameter(0); int(p) < NumParameters; p++ {
		next := edited.Cells[p].Forecast
		if target.Cells[p].Forecast.Equal(next) {
			continue
		}
		target.Cells[p].Forecast = next
		targetChanged = true
		if p == ParamGrassCuring {
			grassChanged = true
		}
	}
	if targetChanged {
		changed = append(changed, target.ID)
	}

	gc := target.Cells[ParamGrassCuring].Forecast
	if grassChanged && gc.Choice == models.DeterminateManual {
		filled := ForecastValue{Choice: models.DeterminateForecast, Value: gc.Value}
		for i := range out {
			r := &out[i]
			if i == idx || r.StationCode != target.StationCode || !r.ForDate.After(target.ForDate) {
				continue
			}
			cell := &r.Cells[ParamGrassCuring]
			if cell.Forecast.Choice == models.DeterminateManual || cell.Forecast.Equal(filled) {
				continue
			}
			cell.Forecast = filled
			changed = append(changed, r.ID)
		}
	}

	return EditResult{Rows: out, Changed: changed}
}

// SimulationSeed returns the rows the indices simulation needs after seed was
// edited: the seed's station from the seed's day onwards, oldest first.
func SimulationSeed(seed Row, rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.StationCode == seed.StationCode && !r.ForDate.Before(seed.ForDate) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ForDate.Before(out[j].ForDate) })
	return out
}

// MergeSimulated replaces forecasts that have a simulated counterpart with the
// same id and keeps every other forecast as it was.
func MergeSimulated(forecasts, simulated []models.WeatherIndeterminate) []models.WeatherIndeterminate {
	byID := make(map[string]models.WeatherIndeterminate, len(simulated))
	for _, s := range simulated {
		byID[s.ID] = s
	}
	out := make([]models.WeatherIndeterminate, len(forecasts))
	for i, f := range forecasts {
		if s, ok := byID[f.ID]; ok {
			out[i] = s
			continue
		}
		out[i] = f
	}
	return out
}

// ApplySimulated writes simulated fire weather indices into the calculated
// index forecasts of matching rows. Weather forecasts are left alone so
// unsaved edits survive the round trip.
func ApplySimulated(rows []Row, simulated []models.WeatherIndeterminate) []Row {
	byID := make(map[string]models.WeatherIndeterminate, len(simulated))
	for _, s := range simulated {
		byID[s.ID] = s
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	for i := range out {
		s, ok := byID[out[i].ID]
		if !ok {
			continue
		}
		for _, p := range indexParameters {
			out[i].Cells[p].Forecast = ForecastValue{Choice: s.Determinate, Value: valueOf(s, p)}
		}
	}
	return out
}
