// Package ingest keeps slowly changing reference data from the fire weather
// API warm and runs periodic housekeeping.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/firecast/internal/models"
)

var ErrNotFound = errors.New("not found")

// Source lists stations and fire centres. *wxapi.Client implements it.
type Source interface {
	FireCentres(ctx context.Context) ([]models.FireCentre, error)
	Stations(ctx context.Context) ([]models.Station, error)
}

// Directory caches the station and fire centre lists.
type Directory struct {
	src    Source
	clock  clockwork.Clock
	maxAge time.Duration

	mu          sync.Mutex
	stations    []models.Station
	centres     []models.FireCentre
	refreshedAt time.Time
}

func NewDirectory(src Source, clock clockwork.Clock, maxAge time.Duration) *Directory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Directory{src: src, clock: clock, maxAge: maxAge}
}

// Refresh reloads both lists. On failure the previous lists are kept.
func (d *Directory) Refresh(ctx context.Context) error {
	centres, err := d.src.FireCentres(ctx)
	if err != nil {
		return fmt.Errorf("load fire centres: %w", err)
	}
	stations, err := d.src.Stations(ctx)
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.centres = centres
	d.stations = stations
	d.refreshedAt = d.clock.Now()
	return nil
}

// RefreshedAt is when the lists were last loaded, or zero.
func (d *Directory) RefreshedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshedAt
}

func (d *Directory) ensure(ctx context.Context) error {
	d.mu.Lock()
	fresh := !d.refreshedAt.IsZero() && d.clock.Since(d.refreshedAt) < d.maxAge
	d.mu.Unlock()
	if fresh {
		return nil
	}
	return d.Refresh(ctx)
}

func (d *Directory) Stations(ctx context.Context) ([]models.Station, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stations, nil
}

func (d *Directory) FireCentres(ctx context.Context) ([]models.FireCentre, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.centres, nil
}

// FireCentre finds a fire centre by id.
func (d *Directory) FireCentre(ctx context.Context, id int) (*models.FireCentre, error) {
	centres, err := d.FireCentres(ctx)
	if err != nil {
		return nil, err
	}
	for i := range centres {
		if centres[i].ID == id {
			c := centres[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("fire centre %d: %w", id, ErrNotFound)
}

// StationNames maps each code to its station name. Codes the directory does
// not know map to an empty name.
func (d *Directory) StationNames(ctx context.Context, codes []int) (map[int]string, error) {
	stations, err := d.Stations(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[int]string, len(stations))
	for _, st := range stations {
		byCode[st.Code] = st.Name
	}
	names := make(map[int]string, len(codes))
	for _, code := range codes {
		names[code] = byCode[code]
	}
	return names, nil
}
