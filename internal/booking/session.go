package booking

import (
	"context"
	"sync"
	"time"

	"turfbook/internal/metrics"
)

// Session binds a coordinator to one user of a front-end together with the
// navigation path that user is currently on.
type Session struct {
	Key         string
	Coordinator *Coordinator

	mu        sync.Mutex
	route     string
	updatedAt time.Time
}

// Route returns the session's current navigation path.
func (s *Session) Route() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

// Navigate records a new navigation path.
func (s *Session) Navigate(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = route
	s.updatedAt = time.Now()
}

// Touch refreshes the idle timer.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// IsExpired checks if session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.updatedAt) > timeout
}

// Factory builds the coordinator for a new session.
type Factory func(key string) *Coordinator

// SessionStore scopes coordinators to user sessions and expires idle ones.
type SessionStore struct {
	name     string
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
	factory  Factory
}

// NewSessionStore creates a new session store. name labels its metrics.
func NewSessionStore(name string, timeout time.Duration, factory Factory) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		name:     name,
		sessions: make(map[string]*Session),
		timeout:  timeout,
		factory:  factory,
	}
}

// Timeout returns the idle timeout after which sessions expire.
func (ss *SessionStore) Timeout() time.Duration { return ss.timeout }

// Get returns the live session for key, or nil.
func (ss *SessionStore) Get(key string) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s := ss.sessions[key]
	if s == nil || s.IsExpired(ss.timeout) {
		return nil
	}
	return s
}

// GetOrCreate returns the existing live session or creates a new one.
func (ss *SessionStore) GetOrCreate(key string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[key]
	if ok && !session.IsExpired(ss.timeout) {
		session.Touch()
		return session
	}

	session = &Session{
		Key:         key,
		Coordinator: ss.factory(key),
		route:       RouteHome,
		updatedAt:   time.Now(),
	}
	ss.sessions[key] = session
	metrics.SetSessionsActive(ss.name, len(ss.sessions))
	return session
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for key, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, key)
			removed++
		}
	}
	metrics.SetSessionsActive(ss.name, len(ss.sessions))
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (ss *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ss.Cleanup()
		}
	}
}
