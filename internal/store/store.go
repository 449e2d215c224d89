// Package store persists user preferences and the upstream fetch audit trail
// in sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Preference keys.
const (
	PrefFireCentre       = "fireCentre"
	PrefColumnVisibility = "columnVisibility"
)

type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

func New(db *sql.DB, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock}
}

// Ping checks the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// GetPreference returns the stored value for key and whether it was set.
func (s *Store) GetPreference(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetPreference(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// SelectedFireCentre returns the preferred fire centre id, or "" when none is saved.
func (s *Store) SelectedFireCentre() (string, error) {
	id, _, err := s.GetPreference(PrefFireCentre)
	return id, err
}

func (s *Store) SetSelectedFireCentre(id string) error {
	return s.SetPreference(PrefFireCentre, strings.TrimSpace(id))
}

// ColumnVisibility returns the saved grid column visibility, or nil when none is saved.
func (s *Store) ColumnVisibility() (map[string]bool, error) {
	raw, ok, err := s.GetPreference(PrefColumnVisibility)
	if err != nil || !ok {
		return nil, err
	}
	var vis map[string]bool
	if err := json.Unmarshal([]byte(raw), &vis); err != nil {
		return nil, fmt.Errorf("decode column visibility: %w", err)
	}
	return vis, nil
}

func (s *Store) SetColumnVisibility(vis map[string]bool) error {
	b, err := json.Marshal(vis)
	if err != nil {
		return fmt.Errorf("encode column visibility: %w", err)
	}
	return s.SetPreference(PrefColumnVisibility, string(b))
}
