package store

import (
	"database/sql"
	"fmt"
	"time"
)

const sqliteTimeFormat = "2006-01-02 15:04:05"

// FetchRun is a single call to the fire weather API, kept for auditing.
type FetchRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Endpoint          string // "hfi-calc/fire-centres", "morecast-v2/determinates", etc.
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	Records           sql.NullInt64
	Attempts          sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
}

// StartFetchRun creates a new fetch run record and returns it.
func (s *Store) StartFetchRun(endpoint string) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: s.clock.Now().UTC(),
		Endpoint:  endpoint,
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, endpoint, success)
		VALUES (?, ?, FALSE)
	`, run.StartedAt, run.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("insert fetch run: %w", err)
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun records the outcome of a fetch run.
func (s *Store) CompleteFetchRun(run *FetchRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: s.clock.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE fetch_runs SET
			finished_at = ?,
			http_status = ?,
			response_size_bytes = ?,
			records = ?,
			attempts = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.ResponseSizeBytes, run.Records,
		run.Attempts, run.Success, run.ErrorMessage, run.ID)
	if err != nil {
		return fmt.Errorf("complete fetch run %d: %w", run.ID, err)
	}
	return nil
}

// FetchHealthSummary counts fetch runs per day and endpoint.
type FetchHealthSummary struct {
	Date         string `json:"date"`
	Endpoint     string `json:"endpoint"`
	TotalRuns    int    `json:"total_runs"`
	SuccessRuns  int    `json:"success_runs"`
	FailedRuns   int    `json:"failed_runs"`
	TotalRecords int64  `json:"total_records"`
}

// FetchHealth returns per-day fetch summaries for the last days days.
// Runs still in flight are not counted.
func (s *Store) FetchHealth(days int) ([]FetchHealthSummary, error) {
	cutoff := s.clock.Now().UTC().AddDate(0, 0, -days).Format(sqliteTimeFormat)
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			endpoint,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(records), 0) as total_records
		FROM fetch_runs
		WHERE SUBSTR(started_at, 1, 19) > ? AND finished_at IS NOT NULL
		GROUP BY date, endpoint
		ORDER BY date DESC, endpoint
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchHealthSummary
	for rows.Next() {
		var h FetchHealthSummary
		if err := rows.Scan(&h.Date, &h.Endpoint, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns, &h.TotalRecords); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// RecentFetchErrors returns the most recent failed fetch runs.
func (s *Store) RecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, endpoint, http_status, response_size_bytes,
			   records, attempts, success, error_message
		FROM fetch_runs
		WHERE success = FALSE AND finished_at IS NOT NULL
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Endpoint, &r.HTTPStatus,
			&r.ResponseSizeBytes, &r.Records, &r.Attempts, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
