// Package catalog holds the in-memory turf and sport catalog.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"turfslot/internal/config"
	"turfslot/internal/models"
)

var (
	ErrTurfNotFound  = errors.New("turf not found")
	ErrSportNotFound = errors.New("sport not found for turf")
)

// Store is a concurrency-safe turf catalog. The whole catalog is swapped on reload.
type Store struct {
	mu    sync.RWMutex
	turfs map[int64]models.Turf
	order []int64
}

func NewStore(turfs []models.Turf) *Store {
	s := &Store{}
	s.Replace(turfs)
	return s
}

// Replace swaps the catalog contents.
func (s *Store) Replace(turfs []models.Turf) {
	m := make(map[int64]models.Turf, len(turfs))
	order := make([]int64, 0, len(turfs))
	for _, t := range turfs {
		if _, dup := m[t.ID]; !dup {
			order = append(order, t.ID)
		}
		m[t.ID] = t
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turfs = m
	s.order = order
}

// ApplyConfig replaces the catalog from a loaded turfs.yaml.
func (s *Store) ApplyConfig(cfg *config.TurfsConfig) {
	if cfg == nil {
		return
	}
	s.Replace(cfg.ToModels())
}

// ListTurfs returns active turfs ordered by id, each with only its active sports.
func (s *Store) ListTurfs(_ context.Context) ([]models.Turf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Turf, 0, len(s.order))
	for _, id := range s.order {
		t := s.turfs[id]
		if !t.IsActive {
			continue
		}
		out = append(out, activeOnly(t))
	}
	return out, nil
}

// GetTurf returns an active turf by id.
func (s *Store) GetTurf(_ context.Context, turfID int64) (*models.Turf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.turfs[turfID]
	if !ok || !t.IsActive {
		return nil, ErrTurfNotFound
	}
	t = activeOnly(t)
	return &t, nil
}

// Sport resolves an active sport of an active turf.
func (s *Store) Sport(ctx context.Context, turfID, sportID int64) (*models.Turf, *models.Sport, error) {
	t, err := s.GetTurf(ctx, turfID)
	if err != nil {
		return nil, nil, err
	}
	sp, ok := t.Sport(sportID)
	if !ok {
		return nil, nil, ErrSportNotFound
	}
	return t, sp, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turfs)
}

func activeOnly(t models.Turf) models.Turf {
	sports := make([]models.Sport, 0, len(t.Sports))
	for _, sp := range t.Sports {
		if sp.IsActive {
			sports = append(sports, sp)
		}
	}
	t.Sports = sports
	return t
}
