package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lox/firecast/internal/export"
	"github.com/lox/firecast/internal/morecast"
)

const dateLayout = "2006-01-02"

// maxRangeDays bounds the days a single grid or dailies request may span.
const maxRangeDays = 31

// spanDays is the number of calendar days in the inclusive range.
func spanDays(from, to time.Time) int {
	return int(to.Sub(from).Round(24*time.Hour).Hours()/24) + 1
}

// GridResponse is the forecast grid as sent to the browser.
type GridResponse struct {
	Loading        bool           `json:"loading"`
	Error          string         `json:"error,omitempty"`
	From           string         `json:"from,omitempty"`
	To             string         `json:"to,omitempty"`
	Rows           []morecast.Row `json:"rows"`
	UserEditedRows []morecast.Row `json:"user_edited_rows"`
}

func gridResponse(snap *morecast.Snapshot) GridResponse {
	resp := GridResponse{
		Loading:        snap.Loading,
		Error:          snap.Error,
		Rows:           snap.Rows,
		UserEditedRows: snap.UserEditedRows,
	}
	if !snap.From.IsZero() {
		resp.From = snap.From.Format(dateLayout)
		resp.To = snap.To.Format(dateLayout)
	}
	if resp.Rows == nil {
		resp.Rows = []morecast.Row{}
	}
	if resp.UserEditedRows == nil {
		resp.UserEditedRows = []morecast.Row{}
	}
	return resp
}

func parseCodes(s string) ([]int, error) {
	var codes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid station code %q", part)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// parseRange reads from and to in the server's time zone. from defaults to
// today and to defaults to the end of the default forecast window.
func (s *Server) parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	now := s.clock.Now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", v)
		}
		from = t
	}
	to := from.AddDate(0, 0, s.forecastDays-1)
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", v)
		}
		to = t
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date %s is before from date %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	if n := spanDays(from, to); n > maxRangeDays {
		return time.Time{}, time.Time{}, fmt.Errorf("range of %d days exceeds the maximum of %d", n, maxRangeDays)
	}
	return from, to, nil
}

func (s *Server) handleMorecastFetch(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	codes, err := parseCodes(r.URL.Query().Get("stations"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(codes) == 0 {
		writeError(w, http.StatusBadRequest, "stations is required")
		return
	}

	names, err := s.dir.StationNames(r.Context(), codes)
	if err != nil {
		writeUpstreamError(w, "stations", err)
		return
	}

	s.morecast.Start()
	payload, err := s.upstream.WeatherIndeterminates(r.Context(), from, to, codes)
	if err != nil {
		s.morecast.Failed(fmt.Errorf("fetch weather indeterminates: %w", err))
		writeUpstreamError(w, "weather indeterminates", err)
		return
	}

	snap := s.morecast.Succeeded(payload, morecast.Range{From: from, To: to, Stations: names})
	writeJSON(w, http.StatusOK, gridResponse(snap))
}

func (s *Server) handleMorecastRows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gridResponse(s.morecast.Snapshot()))
}

// handleMorecastEdit applies an edited row, then asks the API to recalculate
// fire weather indices for that station from the edited day onwards.
func (s *Server) handleMorecastEdit(w http.ResponseWriter, r *http.Request) {
	var edited morecast.Row
	if err := json.NewDecoder(r.Body).Decode(&edited); err != nil {
		writeError(w, http.StatusBadRequest, "invalid row: "+err.Error())
		return
	}
	if edited.ID == "" {
		writeError(w, http.StatusBadRequest, "row id is required")
		return
	}

	snap, result := s.morecast.ApplyEdit(edited)
	if len(result.Changed) == 0 {
		writeJSON(w, http.StatusOK, gridResponse(snap))
		return
	}

	var seed *morecast.Row
	for i := range snap.Rows {
		if snap.Rows[i].ID == edited.ID {
			seed = &snap.Rows[i]
			break
		}
	}
	records := morecast.ForecastIndeterminates(morecast.SimulationSeed(*seed, snap.Rows))

	simulated, err := s.upstream.SimulateIndices(r.Context(), records)
	if err != nil {
		s.morecast.Failed(fmt.Errorf("simulate indices: %w", err))
		writeUpstreamError(w, "simulate indices", err)
		return
	}
	writeJSON(w, http.StatusOK, gridResponse(s.morecast.Simulated(simulated)))
}

// handleMorecastExport writes the grid as a spreadsheet. view=summary exports
// the forecast columns only; otherwise the visible grid columns are exported.
func (s *Server) handleMorecastExport(w http.ResponseWriter, r *http.Request) {
	var columns []morecast.Column
	switch view := r.URL.Query().Get("view"); view {
	case "summary":
		columns = morecast.SummaryColumns()
	case "", "grid":
		vis, err := s.columnVisibility()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, c := range morecast.GridColumns(s.includeBias) {
			if vis[c.Key()] {
				columns = append(columns, c)
			}
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown view %q", view))
		return
	}

	snap := s.morecast.Snapshot()
	var buf bytes.Buffer
	if err := export.WriteRows(&buf, snap.Rows, columns); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := "morecast.xlsx"
	if !snap.From.IsZero() {
		name = fmt.Sprintf("morecast-%s-%s.xlsx", snap.From.Format(dateLayout), snap.To.Format(dateLayout))
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}
