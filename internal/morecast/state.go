package morecast

import (
	"log"
	"sync"
	"time"

	"github.com/lox/firecast/internal/metrics"
	"github.com/lox/firecast/internal/models"
)

// Snapshot is an immutable view of the forecast grid state. Callers must not
// modify the slices it holds; every command publishes a fresh snapshot.
type Snapshot struct {
	Loading        bool
	Error          string
	From           time.Time
	To             time.Time
	Actuals        []models.WeatherIndeterminate
	Forecasts      []models.WeatherIndeterminate
	Predictions    []models.WeatherIndeterminate
	Rows           []Row
	UserEditedRows []Row
}

// Range is the request a fetch was made for.
type Range struct {
	From     time.Time
	To       time.Time
	Stations map[int]string
}

// State owns the forecast grid. Commands are serialized and each replaces the
// current snapshot wholesale.
type State struct {
	loc *time.Location

	mu      sync.Mutex
	current *Snapshot
}

func NewState(loc *time.Location) *State {
	return &State{loc: loc, current: &Snapshot{}}
}

// Snapshot returns the current snapshot.
func (s *State) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *State) update(fn func(next *Snapshot)) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.current
	fn(&next)
	s.current = &next
	return s.current
}

// Start marks a fetch as in flight.
func (s *State) Start() *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loading = true
	})
}

// Failed records a fetch failure. Existing rows stay available.
func (s *State) Failed(err error) *Snapshot {
	log.Printf("morecast: fetch failed: %v", err)
	return s.update(func(next *Snapshot) {
		next.Loading = false
		next.Error = err.Error()
	})
}

// Succeeded fills the gaps in a fetched payload and rebuilds the rows. When
// two fetches overlap, whichever completes last wins.
func (s *State) Succeeded(payload models.WeatherIndeterminates, r Range) *Snapshot {
	started := time.Now()
	actuals := FillMissing(payload.Actuals, r.From, r.To, r.Stations, models.DeterminateActual, s.loc)
	forecasts := FillMissing(payload.Forecasts, r.From, r.To, r.Stations, models.DeterminateNull, s.loc)
	predictions := FillMissingPredictions(payload.Predictions, r.From, r.To, r.Stations, s.loc)
	rows := BuildRows(actuals, forecasts, predictions, s.loc)
	metrics.RecomputeDuration.WithLabelValues("morecast_rows").Observe(time.Since(started).Seconds())
	metrics.GridRows.Set(float64(len(rows)))

	return s.update(func(next *Snapshot) {
		next.Loading = false
		next.Error = ""
		next.From = r.From
		next.To = r.To
		next.Actuals = actuals
		next.Forecasts = forecasts
		next.Predictions = predictions
		next.Rows = rows
		next.UserEditedRows = nil
	})
}

// Simulated merges recalculated indices into the forecasts and rows.
func (s *State) Simulated(simulated []models.WeatherIndeterminate) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loading = false
		next.Error = ""
		next.Forecasts = MergeSimulated(next.Forecasts, simulated)
		next.Rows = ApplySimulated(next.Rows, simulated)
	})
}

// StoreEditedRows remembers rows the user has edited, replacing earlier
// versions of the same rows.
func (s *State) StoreEditedRows(rows []Row) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.UserEditedRows = upsertRows(next.UserEditedRows, rows)
	})
}

// ApplyEdit reconciles an edited row into the grid and records every changed row as user edited.
func (s *State) ApplyEdit(edited Row) (*Snapshot, EditResult) {
	var result EditResult
	snap := s.update(func(next *Snapshot) {
		result = ApplyEdit(edited, next.Rows)
		next.Rows = result.Rows
		if len(result.Changed) == 0 {
			return
		}
		changed := make(map[string]bool, len(result.Changed))
		for _, id := range result.Changed {
			changed[id] = true
		}
		var edits []Row
		for _, r := range result.Rows {
			if changed[r.ID] {
				edits = append(edits, r)
			}
		}
		next.UserEditedRows = upsertRows(next.UserEditedRows, edits)
	})
	metrics.EditsApplied.Add(float64(len(result.Changed)))
	return snap, result
}

func upsertRows(existing, rows []Row) []Row {
	out := make([]Row, len(existing), len(existing)+len(rows))
	copy(out, existing)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range rows {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
