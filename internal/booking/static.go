package booking

import (
	"context"
	"sync"
	"time"

	"turfslot/internal/slots"
)

// StaticAvailability serves a fixed set of booked slots for every turf, sport
// and date. It backs demo mode and tests.
type StaticAvailability struct {
	mu     sync.RWMutex
	booked slots.Set
	err    error
}

// NewStaticAvailability returns a source reporting values as booked.
func NewStaticAvailability(values ...int) *StaticAvailability {
	return &StaticAvailability{booked: slots.NewSet(values...)}
}

// GetBookedSlots implements Availability.
func (a *StaticAvailability) GetBookedSlots(_ context.Context, _, _ int64, _ time.Time) ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.booked.Values(), nil
}

// Book marks an inclusive range as taken.
func (a *StaticAvailability) Book(start, end int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.booked.AddRange(start, end)
}

// Fail makes subsequent fetches return err; nil restores normal operation.
func (a *StaticAvailability) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}
