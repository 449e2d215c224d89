package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/firecast/internal/models"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    int
	err      error
	centres  []models.FireCentre
	stations []models.Station
}

func (f *fakeSource) FireCentres(ctx context.Context) ([]models.FireCentre, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.centres, nil
}

func (f *fakeSource) Stations(ctx context.Context) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stations, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSource() *fakeSource {
	return &fakeSource{
		centres: []models.FireCentre{{ID: 25, Name: "Kamloops"}, {ID: 42, Name: "Coastal"}},
		stations: []models.Station{
			{Code: 322, Name: "AFTON"},
			{Code: 335, Name: "PAVILION"},
		},
	}
}

func TestDirectory_CachesUntilStale(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	dir := NewDirectory(src, clock, time.Hour)
	ctx := context.Background()

	if _, err := dir.Stations(ctx); err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if _, err := dir.FireCentres(ctx); err != nil {
		t.Fatalf("FireCentres: %v", err)
	}
	if src.callCount() != 1 {
		t.Errorf("calls = %d, want 1", src.callCount())
	}

	clock.Advance(2 * time.Hour)
	if _, err := dir.Stations(ctx); err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("calls = %d, want 2 after expiry", src.callCount())
	}
	if !dir.RefreshedAt().Equal(clock.Now()) {
		t.Errorf("RefreshedAt = %v, want %v", dir.RefreshedAt(), clock.Now())
	}
}

func TestDirectory_RefreshFailureKeepsLists(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	dir := NewDirectory(src, clock, time.Hour)
	ctx := context.Background()

	if err := dir.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	refreshed := dir.RefreshedAt()

	src.mu.Lock()
	src.err = errors.New("upstream down")
	src.mu.Unlock()

	if err := dir.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if !dir.RefreshedAt().Equal(refreshed) {
		t.Error("RefreshedAt should not change on failure")
	}
	centres, err := dir.FireCentres(ctx)
	if err != nil {
		t.Fatalf("FireCentres: %v", err)
	}
	if len(centres) != 2 {
		t.Errorf("len(centres) = %d, want 2", len(centres))
	}
}

func TestDirectory_FireCentre(t *testing.T) {
	dir := NewDirectory(newSource(), clockwork.NewFakeClock(), time.Hour)

	c, err := dir.FireCentre(context.Background(), 42)
	if err != nil {
		t.Fatalf("FireCentre: %v", err)
	}
	if c.Name != "Coastal" {
		t.Errorf("Name = %q, want Coastal", c.Name)
	}

	_, err = dir.FireCentre(context.Background(), 7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDirectory_StationNames(t *testing.T) {
	dir := NewDirectory(newSource(), clockwork.NewFakeClock(), time.Hour)

	names, err := dir.StationNames(context.Background(), []int{322, 999})
	if err != nil {
		t.Fatalf("StationNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("len(names) = %d, want 2", len(names))
	}
	if names[322] != "AFTON" {
		t.Errorf("names[322] = %q, want AFTON", names[322])
	}
	if name, ok := names[999]; !ok || name != "" {
		t.Errorf("names[999] = %q, %v; want empty, true", name, ok)
	}
}

type fakeCleaner struct {
	mu    sync.Mutex
	calls []int
}

func (f *fakeCleaner) CleanupFetchPayloads(retentionDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, retentionDays)
	return 0, nil
}

func (f *fakeCleaner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestScheduler_Run(t *testing.T) {
	src := newSource()
	cleaner := &fakeCleaner{}
	clock := clockwork.NewFakeClock()
	dir := NewDirectory(src, clock, 12*time.Hour)
	sched := NewScheduler(dir, cleaner, clock, 14)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// Both tickers are created after the startup jobs run.
	if err := clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if src.callCount() != 1 || cleaner.count() != 1 {
		t.Fatalf("startup: calls = %d, cleanups = %d; want 1, 1", src.callCount(), cleaner.count())
	}

	clock.Advance(6 * time.Hour)
	waitFor(t, func() bool { return src.callCount() == 2 })

	cancel()
	<-done

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	if cleaner.calls[0] != 14 {
		t.Errorf("retention = %d, want 14", cleaner.calls[0])
	}
}

func TestScheduler_SkipsCleanupWithoutRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	sched := NewScheduler(NewDirectory(newSource(), nil, time.Hour), cleaner, nil, 0)
	sched.cleanupPayloads()
	if cleaner.count() != 0 {
		t.Errorf("cleanups = %d, want 0", cleaner.count())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
