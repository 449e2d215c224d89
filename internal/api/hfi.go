package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/firecast/internal/hfi"
	"github.com/lox/firecast/internal/models"
)

// HFIResponse is the HFI calculator state as sent to the browser.
type HFIResponse struct {
	Loading          bool                 `json:"loading"`
	Error            string               `json:"error,omitempty"`
	FireCentre       *models.FireCentre   `json:"fire_centre"`
	DateRange        hfi.PrepDateRange    `json:"date_range"`
	SelectedPrepDate string               `json:"selected_prep_date,omitempty"`
	NumPrepDays      int                  `json:"num_prep_days"`
	Saved            bool                 `json:"saved"`
	Result           *hfi.Result          `json:"result"`
	Summaries        []hfi.AreaSummary    `json:"planning_area_summaries"`
	FireStartRanges  []hfi.FireStartRange `json:"fire_start_ranges"`
}

func hfiResponse(snap *hfi.Snapshot) HFIResponse {
	return HFIResponse{
		Loading:          snap.Loading,
		Error:            snap.Error,
		FireCentre:       snap.FireCentre,
		DateRange:        snap.DateRange,
		SelectedPrepDate: snap.SelectedPrepDate,
		NumPrepDays:      snap.NumPrepDays,
		Saved:            snap.Saved,
		Result:           snap.Result,
		Summaries:        snap.Summaries,
		FireStartRanges:  hfi.FireStartRanges(),
	}
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, r.PathValue(name))
	}
	return v, nil
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// selectCentre makes centreID the calculator's fire centre and remembers it
// as the user's preference.
func (s *Server) selectCentre(ctx context.Context, centreID int) error {
	centre, err := s.dir.FireCentre(ctx, centreID)
	if err != nil {
		return err
	}
	if cur := s.hfi.Snapshot().FireCentre; cur == nil || cur.ID != centre.ID {
		s.hfi.SetFireCentre(centre)
	}
	if err := s.store.SetSelectedFireCentre(strconv.Itoa(centreID)); err != nil {
		log.Printf("api: save fire centre preference: %v", err)
	}
	return nil
}

// loadResult runs an upstream call that returns a full result and publishes it.
func (s *Server) loadResult(w http.ResponseWriter, r *http.Request, what string, call func(ctx context.Context, centreID int) (*hfi.Result, error)) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.selectCentre(r.Context(), centreID); err != nil {
		writeUpstreamError(w, "fire centre", err)
		return
	}

	s.hfi.Start()
	result, err := call(r.Context(), centreID)
	if err != nil {
		s.hfi.Failed(fmt.Errorf("%s: %w", what, err))
		writeUpstreamError(w, what, err)
		return
	}
	writeJSON(w, http.StatusOK, hfiResponse(s.hfi.SetResult(result)))
}

func (s *Server) handleHFILoad(w http.ResponseWriter, r *http.Request) {
	s.loadResult(w, r, "load hfi result", s.upstream.LoadHFIResult)
}

func (s *Server) handleHFIRange(w http.ResponseWriter, r *http.Request) {
	start, end := r.PathValue("start"), r.PathValue("end")
	if !validDate(start) || !validDate(end) {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD dates")
		return
	}
	s.loadResult(w, r, "hfi result", func(ctx context.Context, centreID int) (*hfi.Result, error) {
		return s.upstream.HFIResult(ctx, centreID, start, end)
	})
}

// currentRange returns the loaded prep period for centreID.
func (s *Server) currentRange(centreID int) (hfi.PrepDateRange, error) {
	snap := s.hfi.Snapshot()
	if snap.Result == nil || snap.FireCentre == nil || snap.FireCentre.ID != centreID {
		return hfi.PrepDateRange{}, fmt.Errorf("no result loaded for fire centre %d", centreID)
	}
	if snap.DateRange.StartDate == "" || snap.DateRange.EndDate == "" {
		return hfi.PrepDateRange{}, fmt.Errorf("no prep period loaded for fire centre %d", centreID)
	}
	return snap.DateRange, nil
}

// areaForStation finds the planning area that holds a station in the loaded centre.
func (s *Server) areaForStation(code int) (int, bool) {
	centre := s.hfi.Snapshot().FireCentre
	if centre == nil {
		return 0, false
	}
	for _, area := range centre.PlanningAreas {
		for _, st := range area.Stations {
			if st.Code == code {
				return area.ID, true
			}
		}
	}
	return 0, false
}

// mutate runs an upstream change against the loaded prep period and
// publishes the returned result.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, what string, call func(ctx context.Context, centreID int, dr hfi.PrepDateRange) (*hfi.Result, error)) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dr, err := s.currentRange(centreID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.hfi.Start()
	result, err := call(r.Context(), centreID, dr)
	if err != nil {
		s.hfi.Failed(fmt.Errorf("%s: %w", what, err))
		writeUpstreamError(w, what, err)
		return
	}
	writeJSON(w, http.StatusOK, hfiResponse(s.hfi.SetResult(result)))
}

func (s *Server) handleHFIStationSelected(w http.ResponseWriter, r *http.Request) {
	code, err := pathInt(r, "code")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	selected, err := strconv.ParseBool(r.PathValue("selected"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid selected %q", r.PathValue("selected")))
		return
	}
	areaID, ok := s.areaForStation(code)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("station %d is not in the loaded fire centre", code))
		return
	}
	s.mutate(w, r, "set station selected", func(ctx context.Context, centreID int, dr hfi.PrepDateRange) (*hfi.Result, error) {
		return s.upstream.SetStationSelected(ctx, centreID, dr.StartDate, dr.EndDate, areaID, code, selected)
	})
}

func (s *Server) handleHFIFuelType(w http.ResponseWriter, r *http.Request) {
	code, err := pathInt(r, "code")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fuel, err := pathInt(r, "fuel")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	areaID, ok := s.areaForStation(code)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("station %d is not in the loaded fire centre", code))
		return
	}
	s.mutate(w, r, "set fuel type", func(ctx context.Context, centreID int, dr hfi.PrepDateRange) (*hfi.Result, error) {
		return s.upstream.SetFuelType(ctx, centreID, dr.StartDate, dr.EndDate, areaID, code, fuel)
	})
}

type fireStartsRequest struct {
	PlanningAreaID   int    `json:"planning_area_id"`
	PrepDay          string `json:"prep_day"`
	FireStartRangeID int    `json:"fire_start_range_id"`
}

func (s *Server) handleHFIFireStarts(w http.ResponseWriter, r *http.Request) {
	var req fireStartsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if !validDate(req.PrepDay) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid prep_day %q", req.PrepDay))
		return
	}
	if _, err := hfi.FireStartRangeByID(req.FireStartRangeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, r, "set fire starts", func(ctx context.Context, centreID int, dr hfi.PrepDateRange) (*hfi.Result, error) {
		return s.upstream.SetFireStarts(ctx, centreID, dr.StartDate, dr.EndDate, req.PlanningAreaID, req.PrepDay, req.FireStartRangeID)
	})
}

type prepDateRequest struct {
	Date string `json:"date"`
}

// handleHFIPrepDate selects the day the summaries are shown for. An empty
// date shows the whole prep period.
func (s *Server) handleHFIPrepDate(w http.ResponseWriter, r *http.Request) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req prepDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Date != "" && !validDate(req.Date) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", req.Date))
		return
	}
	if _, err := s.currentRange(centreID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hfiResponse(s.hfi.SetPrepDate(req.Date)))
}

type prepDaysRequest struct {
	NumPrepDays int `json:"num_prep_days"`
}

func (s *Server) handleHFIPrepDays(w http.ResponseWriter, r *http.Request) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req prepDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	dr, err := s.currentRange(centreID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if limit := hfi.NumPrepDays(dr); req.NumPrepDays < 1 || req.NumPrepDays > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("num_prep_days must be between 1 and %d", limit))
		return
	}
	writeJSON(w, http.StatusOK, hfiResponse(s.hfi.SetNumPrepDays(req.NumPrepDays)))
}

func (s *Server) handleHFIPDF(w http.ResponseWriter, r *http.Request) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end := r.PathValue("start"), r.PathValue("end")
	if !validDate(start) || !validDate(end) {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD dates")
		return
	}

	pdf, err := s.upstream.PDF(r.Context(), centreID, start, end)
	if err != nil {
		writeUpstreamError(w, "hfi pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.Filename))
	w.Write(pdf.Data)
}

// StationDailiesResponse is one station's fire behaviour in the loaded result.
type StationDailiesResponse struct {
	StationCode    int                   `json:"station_code"`
	PlanningAreaID int                   `json:"planning_area_id"`
	Selected       bool                  `json:"selected"`
	Dailies        []models.StationDaily `json:"dailies"`
}

func (s *Server) handleHFIStationDailies(w http.ResponseWriter, r *http.Request) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	code, err := pathInt(r, "code")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.currentRange(centreID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	areaID, ok := s.areaForStation(code)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("station %d is not in the loaded fire centre", code))
		return
	}

	result := s.hfi.Snapshot().Result
	dailies := hfi.DailiesByStationCode(result, code)
	if dailies == nil {
		dailies = []models.StationDaily{}
	}
	writeJSON(w, http.StatusOK, StationDailiesResponse{
		StationCode:    code,
		PlanningAreaID: areaID,
		Selected:       hfi.StationCodeSelected(result, areaID, code),
		Dailies:        dailies,
	})
}

// DailiesResponse is fire behaviour fetched for a fire centre's stations and
// summarized per planning area. It does not touch the calculator state.
type DailiesResponse struct {
	DateRange hfi.PrepDateRange     `json:"date_range"`
	Dailies   []models.StationDaily `json:"dailies"`
	Summaries []hfi.AreaSummary     `json:"planning_area_summaries"`
}

// handleHFIDailies fetches dailies for every station in the fire centre, or
// the stations query when given, and summarizes the selected ones.
func (s *Server) handleHFIDailies(w http.ResponseWriter, r *http.Request) {
	centreID, err := pathInt(r, "centre")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dr := hfi.PrepDateRange{StartDate: r.PathValue("start"), EndDate: r.PathValue("end")}
	start, err := time.Parse(dateLayout, dr.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD dates")
		return
	}
	end, err := time.Parse(dateLayout, dr.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD dates")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("end date %s is before start date %s", dr.EndDate, dr.StartDate))
		return
	}
	days := hfi.NumPrepDays(dr)
	if days > maxRangeDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range of %d days exceeds the maximum of %d", days, maxRangeDays))
		return
	}
	selected, err := parseCodes(r.URL.Query().Get("stations"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	centre, err := s.dir.FireCentre(r.Context(), centreID)
	if err != nil {
		writeUpstreamError(w, "fire centre", err)
		return
	}
	codes := centre.StationCodes()
	if len(selected) == 0 {
		selected = codes
	}

	dailies, err := s.upstream.Dailies(r.Context(), codes, start, end.AddDate(0, 0, 1).Add(-time.Millisecond))
	if err != nil {
		writeUpstreamError(w, "hfi dailies", err)
		return
	}
	if dailies == nil {
		dailies = []models.StationDaily{}
	}
	writeJSON(w, http.StatusOK, DailiesResponse{
		DateRange: dr,
		Dailies:   dailies,
		Summaries: hfi.Summarize(*centre, dailies, selected, days, nil),
	})
}
