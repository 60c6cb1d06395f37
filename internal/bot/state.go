package bot

import (
	"sync"

	"turfslot/internal/models"
)

type bookingStep string

const (
	stepNone  bookingStep = "none"
	stepTurf  bookingStep = "turf"
	stepSport bookingStep = "sport"
	stepDate  bookingStep = "date"
	stepGrid  bookingStep = "grid"
)

// userState is the part of the dialog before a selector exists.
type userState struct {
	Step  bookingStep
	Turf  *models.Turf
	Sport *models.Sport
	Date  string // YYYY-MM-DD
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*userState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]*userState)}
}

func (s *stateStore) get(userID int64) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &userState{Step: stepNone}
		s.m[userID] = st
	}
	return st
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
