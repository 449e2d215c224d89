package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lox/firecast/internal/morecast"
)

type fireCentrePref struct {
	FireCentre string `json:"fire_centre"`
}

func (s *Server) handleGetFireCentrePref(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.SelectedFireCentre()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fireCentrePref{FireCentre: id})
}

func (s *Server) handlePutFireCentrePref(w http.ResponseWriter, r *http.Request) {
	var req fireCentrePref
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.FireCentre) == "" {
		writeError(w, http.StatusBadRequest, "fire_centre is required")
		return
	}
	if err := s.store.SetSelectedFireCentre(req.FireCentre); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleGetFireCentrePref(w, r)
}

// columnVisibility returns the saved column visibility, falling back to the
// default of showing temperature columns only.
func (s *Server) columnVisibility() (map[string]bool, error) {
	vis, err := s.store.ColumnVisibility()
	if err != nil {
		return nil, err
	}
	if vis == nil {
		vis = morecast.InitColumnVisibility()
	}
	return vis, nil
}

// columnsRequest toggles whole parameters, individual columns, or both.
type columnsRequest struct {
	Parameters []morecast.ColumnVis `json:"parameters"`
	Columns    []morecast.ColumnVis `json:"columns"`
}

func (s *Server) handleGetColumnsPref(w http.ResponseWriter, r *http.Request) {
	vis, err := s.columnVisibility()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, vis)
}

func (s *Server) handlePutColumnsPref(w http.ResponseWriter, r *http.Request) {
	var req columnsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	for _, c := range req.Columns {
		if _, ok := morecast.ParseColumnKey(c.Name); !ok {
			writeError(w, http.StatusBadRequest, "unknown column "+c.Name)
			return
		}
	}
	for _, p := range req.Parameters {
		if _, ok := morecast.ParseParameter(p.Name); !ok {
			writeError(w, http.StatusBadRequest, "unknown parameter "+p.Name)
			return
		}
	}

	vis, err := s.columnVisibility()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	vis = morecast.UpdateVisibilityByParameter(req.Parameters, vis)
	vis = morecast.UpdateVisibility(req.Columns, vis)
	if err := s.store.SetColumnVisibility(vis); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, vis)
}
