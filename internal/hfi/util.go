package hfi

import (
	"sort"
	"time"

	"github.com/lox/firecast/internal/models"
)

// DailiesForArea keeps the dailies of stations that are both in area and selected.
func DailiesForArea(area models.PlanningArea, dailies []models.StationDaily, selected []int) []models.StationDaily {
	inArea := make(map[int]bool, len(area.Stations))
	for _, st := range area.Stations {
		inArea[st.Code] = true
	}
	isSelected := make(map[int]bool, len(selected))
	for _, code := range selected {
		isSelected[code] = true
	}

	var out []models.StationDaily
	for _, d := range dailies {
		if inArea[d.Code] && isSelected[d.Code] {
			out = append(out, d)
		}
	}
	return out
}

// ZoneFromAreaName returns the zone code suffix, the last three characters
// of a planning area name.
func ZoneFromAreaName(name string) string {
	r := []rune(name)
	if len(r) <= 3 {
		return name
	}
	return string(r[len(r)-3:])
}

// NumPrepDays is the number of days in the inclusive range, or 0 when either
// end is missing or unparseable or the range ends before it starts.
func NumPrepDays(r PrepDateRange) int {
	if r.StartDate == "" || r.EndDate == "" {
		return 0
	}
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return 0
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Dailies flattens every station daily in the result.
func (r Result) Dailies() []models.StationDaily {
	var out []models.StationDaily
	for _, area := range r.PlanningAreaHFIResults {
		for _, dr := range area.DailyResults {
			for _, vd := range dr.Dailies {
				out = append(out, vd.Daily)
			}
		}
	}
	return out
}

// DailiesByStationCode returns a station's dailies in date order, limited to
// the result's prep period length.
func DailiesByStationCode(r *Result, code int) []models.StationDaily {
	if r == nil {
		return nil
	}
	var out []models.StationDaily
	for _, d := range r.Dailies() {
		if d.Code == code {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if n := NumPrepDays(r.DateRange); n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// StationCodeSelected reports whether code is selected in the planning area.
func StationCodeSelected(r *Result, planningAreaID, code int) bool {
	if r == nil {
		return false
	}
	for _, info := range r.PlanningAreaStationInfo[planningAreaID] {
		if info.StationCode == code {
			return info.Selected
		}
	}
	return false
}
