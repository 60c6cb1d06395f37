package booking

import (
	"sync"
	"time"
)

// DefaultSessionTimeout is the idle time after which a session is dropped.
const DefaultSessionTimeout = 30 * time.Minute

// Session is one user's open booking dialog.
type Session struct {
	UserID    int64
	Selector  *Selector
	StartedAt time.Time

	mu        sync.Mutex
	requests  string
	updatedAt time.Time
}

func newSession(userID int64, sel *Selector) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		Selector:  sel,
		StartedAt: now,
		updatedAt: now,
	}
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// SetSpecialRequests stores the free-text note sent with the booking.
func (s *Session) SetSpecialRequests(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = text
	s.updatedAt = time.Now()
}

func (s *Session) SpecialRequests() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// IsExpired checks if session has expired.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.updatedAt) > timeout
}

// SessionStore keeps one Session per user.
type SessionStore struct {
	sessions    map[int64]*Session
	mu          sync.RWMutex
	timeout     time.Duration
	newSelector func(userID int64) *Selector
}

// NewSessionStore creates a store; newSelector builds the selector for a new session.
func NewSessionStore(timeout time.Duration, newSelector func(userID int64) *Selector) *SessionStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionStore{
		sessions:    make(map[int64]*Session),
		timeout:     timeout,
		newSelector: newSelector,
	}
}

// Get returns the live session for user, or nil.
func (ss *SessionStore) Get(userID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s := ss.sessions[userID]
	if s == nil || s.IsExpired(ss.timeout) {
		return nil
	}
	return s
}

// GetOrCreate returns existing or creates new session.
func (ss *SessionStore) GetOrCreate(userID int64) *Session {
	ss.mu.Lock()
	session, ok := ss.sessions[userID]
	if ok && !session.IsExpired(ss.timeout) {
		ss.mu.Unlock()
		session.Touch()
		return session
	}

	expired := session
	session = newSession(userID, ss.newSelector(userID))
	ss.sessions[userID] = session
	ss.mu.Unlock()

	if expired != nil {
		expired.Selector.Close()
	}
	return session
}

// Delete removes the user's session and closes its selector.
func (ss *SessionStore) Delete(userID int64) {
	ss.mu.Lock()
	session := ss.sessions[userID]
	delete(ss.sessions, userID)
	ss.mu.Unlock()

	if session != nil {
		session.Selector.Close()
	}
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	var expired []*Session
	for userID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, userID)
			expired = append(expired, session)
		}
	}
	ss.mu.Unlock()

	for _, s := range expired {
		s.Selector.Close()
	}
	return len(expired)
}

// Len returns the number of stored sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}
