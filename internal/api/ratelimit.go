package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// submitLimiter keeps one token bucket per booking owner.
type submitLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSubmitLimiter(perSecond float64, burst int) *submitLimiter {
	if perSecond <= 0 {
		perSecond = 10.0 / 60
	}
	if burst <= 0 {
		burst = 3
	}
	return &submitLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  time.Hour,
	}
}

// allow reports whether key may submit now.
func (s *submitLimiter) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// prune drops limiters idle for longer than idleTTL.
func (s *submitLimiter) prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.idleTTL)
	removed := 0
	for key, e := range s.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
			removed++
		}
	}
	return removed
}
