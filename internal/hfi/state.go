package hfi

import (
	"log"
	"sync"
	"time"

	"github.com/lox/firecast/internal/models"
)

// Snapshot is an immutable view of the HFI calculator. Summaries are always
// derived from the other fields.
type Snapshot struct {
	Loading          bool
	Error            string
	DateRange        PrepDateRange
	SelectedPrepDate string
	FireCentre       *models.FireCentre
	Result           *Result
	Saved            bool
	NumPrepDays      int
	Selected         []int
	Summaries        []AreaSummary
}

// State owns the HFI calculator. Every command recomputes the planning area
// summaries from scratch.
type State struct {
	mu      sync.Mutex
	current *Snapshot
}

func NewState() *State {
	return &State{current: &Snapshot{Saved: true}}
}

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
	next.Summaries = summarize(&next)
	s.current = &next
	return s.current
}

func summarize(snap *Snapshot) []AreaSummary {
	if snap.FireCentre == nil || snap.Result == nil {
		return nil
	}
	var day *time.Time
	if snap.SelectedPrepDate != "" {
		if d, err := time.Parse("2006-01-02", snap.SelectedPrepDate); err == nil {
			day = &d
		}
	}
	return Summarize(*snap.FireCentre, snap.Result.Dailies(), snap.Selected, snap.NumPrepDays, day)
}

func (s *State) Start() *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loading = true
	})
}

// SetResult replaces the current result. A nil result clears it.
func (s *State) SetResult(r *Result) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loading = false
		next.Error = ""
		if r == nil {
			next.Result = nil
			next.DateRange = PrepDateRange{}
			next.NumPrepDays = 0
			next.Selected = nil
			return
		}
		recomputed := Recompute(*r)
		next.Result = &recomputed
		next.DateRange = r.DateRange
		next.NumPrepDays = NumPrepDays(r.DateRange)
		next.Selected = append([]int(nil), r.SelectedStationCodeIDs...)
		next.Saved = r.RequestPersistSuccess
	})
}

func (s *State) Failed(err error) *Snapshot {
	log.Printf("hfi: request failed: %v", err)
	return s.update(func(next *Snapshot) {
		next.Loading = false
		next.Error = err.Error()
	})
}

// SetPrepDate scopes the scalar mean intensity group to one day. An empty
// date covers the whole prep period.
func (s *State) SetPrepDate(date string) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.SelectedPrepDate = date
	})
}

func (s *State) SetFireCentre(c *models.FireCentre) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.FireCentre = c
	})
}

func (s *State) SetSaved(saved bool) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Saved = saved
	})
}

func (s *State) SetNumPrepDays(n int) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.NumPrepDays = n
	})
}

// SetSelected replaces the set of selected station codes.
func (s *State) SetSelected(codes []int) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Selected = append([]int(nil), codes...)
	})
}
