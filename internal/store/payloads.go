package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
)

// StoreFetchPayload archives a compressed API response body. It returns the
// payload id, or 0 when an identical body is already archived.
func (s *Store) StoreFetchPayload(runID int64, endpoint string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	var fetchRunID sql.NullInt64
	if runID != 0 {
		fetchRunID = sql.NullInt64{Int64: runID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_payloads (fetch_run_id, fetched_at, endpoint, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, fetchRunID, s.clock.Now().UTC(), endpoint, buf.Bytes(), hex.EncodeToString(hash[:]))
	if err != nil {
		return 0, fmt.Errorf("insert fetch payload: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// FetchPayload returns a decompressed archived payload.
func (s *Store) FetchPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM fetch_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// CleanupFetchPayloads deletes payloads older than retentionDays and returns
// how many were removed.
func (s *Store) CleanupFetchPayloads(retentionDays int) (int64, error) {
	cutoff := s.clock.Now().UTC().AddDate(0, 0, -retentionDays).Format(sqliteTimeFormat)
	result, err := s.db.Exec(`
		DELETE FROM fetch_payloads
		WHERE SUBSTR(fetched_at, 1, 19) < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
