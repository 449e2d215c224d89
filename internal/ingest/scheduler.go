package ingest

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// PayloadCleaner removes archived API responses. *store.Store implements it.
type PayloadCleaner interface {
	CleanupFetchPayloads(retentionDays int) (int64, error)
}

type Scheduler struct {
	dir             *Directory
	cleaner         PayloadCleaner
	clock           clockwork.Clock
	retentionDays   int
	refreshInterval time.Duration
	cleanupInterval time.Duration
}

// NewScheduler creates a scheduler. Payload cleanup is skipped when
// retentionDays is not positive.
func NewScheduler(dir *Directory, cleaner PayloadCleaner, clock clockwork.Clock, retentionDays int) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		dir:             dir,
		cleaner:         cleaner,
		clock:           clock,
		retentionDays:   retentionDays,
		refreshInterval: 6 * time.Hour,
		cleanupInterval: 24 * time.Hour,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.refreshDirectory(ctx)
	s.cleanupPayloads()

	refreshTicker := s.clock.NewTicker(s.refreshInterval)
	cleanupTicker := s.clock.NewTicker(s.cleanupInterval)
	defer refreshTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-refreshTicker.Chan():
			s.refreshDirectory(ctx)
		case <-cleanupTicker.Chan():
			s.cleanupPayloads()
		}
	}
}

func (s *Scheduler) refreshDirectory(ctx context.Context) {
	if err := s.dir.Refresh(ctx); err != nil {
		log.Printf("scheduler: refresh directory: %v", err)
		return
	}
	log.Println("scheduler: directory refreshed")
}

func (s *Scheduler) cleanupPayloads() {
	if s.cleaner == nil || s.retentionDays <= 0 {
		return
	}
	n, err := s.cleaner.CleanupFetchPayloads(s.retentionDays)
	if err != nil {
		log.Printf("scheduler: cleanup payloads: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: removed %d archived payloads", n)
	}
}
