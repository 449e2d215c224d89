package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2023, 4, 27, 18, 0, 0, 0, time.UTC))
	store := New(db, clock)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store, clock
}

func TestMigrationVersion(t *testing.T) {
	store, _ := setupTestStore(t)

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", version, len(migrations))
	}

	// Running again is a no-op.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestPreference_RoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, ok, err := store.GetPreference("missing"); err != nil || ok {
		t.Fatalf("GetPreference(missing) = ok %v, err %v; want not found", ok, err)
	}

	if err := store.SetPreference("theme", "dark"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if err := store.SetPreference("theme", "light"); err != nil {
		t.Fatalf("SetPreference update: %v", err)
	}

	value, ok, err := store.GetPreference("theme")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if !ok || value != "light" {
		t.Errorf("GetPreference = %q, %v; want light, true", value, ok)
	}
}

func TestSelectedFireCentre(t *testing.T) {
	store, _ := setupTestStore(t)

	id, err := store.SelectedFireCentre()
	if err != nil {
		t.Fatalf("SelectedFireCentre: %v", err)
	}
	if id != "" {
		t.Errorf("SelectedFireCentre = %q, want empty", id)
	}

	if err := store.SetSelectedFireCentre(" 25 "); err != nil {
		t.Fatalf("SetSelectedFireCentre: %v", err)
	}
	id, err = store.SelectedFireCentre()
	if err != nil {
		t.Fatalf("SelectedFireCentre: %v", err)
	}
	if id != "25" {
		t.Errorf("SelectedFireCentre = %q, want 25", id)
	}
}

func TestColumnVisibility(t *testing.T) {
	store, _ := setupTestStore(t)

	vis, err := store.ColumnVisibility()
	if err != nil {
		t.Fatalf("ColumnVisibility: %v", err)
	}
	if vis != nil {
		t.Errorf("ColumnVisibility = %v, want nil", vis)
	}

	want := map[string]bool{"temp.HRDPS": true, "rh.ACTUAL": false}
	if err := store.SetColumnVisibility(want); err != nil {
		t.Fatalf("SetColumnVisibility: %v", err)
	}
	vis, err = store.ColumnVisibility()
	if err != nil {
		t.Fatalf("ColumnVisibility: %v", err)
	}
	if len(vis) != 2 || !vis["temp.HRDPS"] || vis["rh.ACTUAL"] {
		t.Errorf("ColumnVisibility = %v, want %v", vis, want)
	}
}

func TestColumnVisibility_Corrupt(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SetPreference(PrefColumnVisibility, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ColumnVisibility(); err == nil {
		t.Error("expected error decoding corrupt visibility")
	}
}

func TestFetchRun_StartAndComplete(t *testing.T) {
	store, clock := setupTestStore(t)

	run, err := store.StartFetchRun("hfi-calc/fire-centres")
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}
	if run.ID == 0 {
		t.Error("run.ID should be set")
	}
	if !run.StartedAt.Equal(clock.Now()) {
		t.Errorf("run.StartedAt = %v, want %v", run.StartedAt, clock.Now())
	}

	clock.Advance(2 * time.Second)
	run.HTTPStatus = sql.NullInt64{Int64: 200, Valid: true}
	run.ResponseSizeBytes = sql.NullInt64{Int64: 1024, Valid: true}
	run.Records = sql.NullInt64{Int64: 3, Valid: true}
	run.Attempts = sql.NullInt64{Int64: 1, Valid: true}
	run.Success = true

	if err := store.CompleteFetchRun(run); err != nil {
		t.Fatalf("CompleteFetchRun: %v", err)
	}
	if !run.FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}

	health, err := store.FetchHealth(1)
	if err != nil {
		t.Fatalf("FetchHealth: %v", err)
	}
	if len(health) != 1 {
		t.Fatalf("len(health) = %d, want 1", len(health))
	}
	h := health[0]
	if h.Endpoint != "hfi-calc/fire-centres" || h.SuccessRuns != 1 || h.TotalRecords != 3 {
		t.Errorf("health = %+v", h)
	}
	if h.Date != "2023-04-27" {
		t.Errorf("Date = %q, want 2023-04-27", h.Date)
	}
}

func TestFetchRun_CompleteNil(t *testing.T) {
	store, _ := setupTestStore(t)
	if err := store.CompleteFetchRun(nil); err != nil {
		t.Errorf("CompleteFetchRun(nil) = %v", err)
	}
}

func TestFetchHealth_Aggregation(t *testing.T) {
	store, clock := setupTestStore(t)

	old, err := store.StartFetchRun("morecast-v2/determinates")
	if err != nil {
		t.Fatal(err)
	}
	old.Success = true
	if err := store.CompleteFetchRun(old); err != nil {
		t.Fatal(err)
	}

	clock.Advance(72 * time.Hour)

	for _, ok := range []bool{true, false} {
		run, err := store.StartFetchRun("morecast-v2/determinates")
		if err != nil {
			t.Fatal(err)
		}
		run.Success = ok
		if !ok {
			run.ErrorMessage = sql.NullString{String: "server error", Valid: true}
		}
		if err := store.CompleteFetchRun(run); err != nil {
			t.Fatal(err)
		}
	}

	health, err := store.FetchHealth(1)
	if err != nil {
		t.Fatalf("FetchHealth: %v", err)
	}
	if len(health) != 1 {
		t.Fatalf("len(health) = %d, want 1 (older runs excluded)", len(health))
	}
	if health[0].TotalRuns != 2 || health[0].SuccessRuns != 1 || health[0].FailedRuns != 1 {
		t.Errorf("health = %+v, want 2 total, 1 success, 1 failed", health[0])
	}
}

func TestRecentFetchErrors(t *testing.T) {
	store, _ := setupTestStore(t)

	run, err := store.StartFetchRun("hfi-calc/fire_centre")
	if err != nil {
		t.Fatal(err)
	}
	run.HTTPStatus = sql.NullInt64{Int64: 500, Valid: true}
	run.ErrorMessage = sql.NullString{String: "server error", Valid: true}
	if err := store.CompleteFetchRun(run); err != nil {
		t.Fatal(err)
	}

	errors, err := store.RecentFetchErrors(10)
	if err != nil {
		t.Fatalf("RecentFetchErrors: %v", err)
	}
	if len(errors) != 1 {
		t.Fatalf("len(errors) = %d, want 1", len(errors))
	}
	if errors[0].ErrorMessage.String != "server error" {
		t.Errorf("ErrorMessage = %q, want 'server error'", errors[0].ErrorMessage.String)
	}
	if errors[0].HTTPStatus.Int64 != 500 {
		t.Errorf("HTTPStatus = %d, want 500", errors[0].HTTPStatus.Int64)
	}
}

func TestFetchHealth_InFlightRunsIgnored(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.StartFetchRun("hfi-calc/fire-centres"); err != nil {
		t.Fatal(err)
	}

	health, err := store.FetchHealth(1)
	if err != nil {
		t.Fatalf("FetchHealth: %v", err)
	}
	if len(health) != 0 {
		t.Errorf("health = %+v, want no summaries while the run is in flight", health)
	}

	errors, err := store.RecentFetchErrors(10)
	if err != nil {
		t.Fatalf("RecentFetchErrors: %v", err)
	}
	if len(errors) != 0 {
		t.Errorf("len(errors) = %d, want 0", len(errors))
	}
}

func TestFetchPayload_StoreAndDedupe(t *testing.T) {
	store, clock := setupTestStore(t)

	run, err := store.StartFetchRun("morecast-v2/determinates")
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte(`{"actuals":[],"forecasts":[],"predictions":[]}`)
	id, err := store.StoreFetchPayload(run.ID, run.Endpoint, payload)
	if err != nil {
		t.Fatalf("StoreFetchPayload: %v", err)
	}
	if id == 0 {
		t.Fatal("expected payload id")
	}

	dup, err := store.StoreFetchPayload(run.ID, run.Endpoint, payload)
	if err != nil {
		t.Fatalf("StoreFetchPayload duplicate: %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate id = %d, want 0", dup)
	}

	got, err := store.FetchPayload(id)
	if err != nil {
		t.Fatalf("FetchPayload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("FetchPayload = %q, want %q", got, payload)
	}

	clock.Advance(10 * 24 * time.Hour)
	n, err := store.CleanupFetchPayloads(7)
	if err != nil {
		t.Fatalf("CleanupFetchPayloads: %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupFetchPayloads removed %d, want 1", n)
	}
}
