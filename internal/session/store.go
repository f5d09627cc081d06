// Package session owns the mapping from conversation ids to live
// selector sessions. The engine itself is single-threaded per session;
// the store supplies the external synchronization, holding one mutex per
// session so at most one mutation is in flight at a time.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dkazarov/landpick/internal/selector"
)

// DefaultTTL is how long an idle session survives before the janitor
// removes it.
const DefaultTTL = 30 * time.Minute

type entry struct {
	mu      sync.Mutex
	sess    *selector.Session
	touched atomic.Int64 // unix nanos of last use
}

// Store is a concurrent in-memory session registry. Sessions do not
// survive a process restart.
type Store struct {
	eng      *selector.Engine
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewStore creates a Store over the shared engine. ttl <= 0 selects
// DefaultTTL.
func NewStore(eng *selector.Engine, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		eng:      eng,
		ttl:      ttl,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session positioned at the first step and returns
// its id. The first tree evaluation happens on the session's first
// RecordAnswer or Advance call: router-style trees make the opening
// node conditional on the first answer, so advancing an empty session
// is the caller's choice, not the store's.
func (s *Store) Create() string {
	id := uuid.New().String()
	e := &entry{sess: s.eng.NewSession()}
	e.touched.Store(time.Now().UnixNano())

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()
	return id
}

// With runs fn against the session under its lock, refreshing the idle
// timer. It returns false when no session has that id.
func (s *Store) With(id string, fn func(*selector.Session)) bool {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	e.touched.Store(time.Now().UnixNano())
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	return true
}

// Delete removes a session. It reports whether one existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Janitor starts a background sweep that drops sessions idle longer
// than the TTL. Call the returned stop function to clean up.
func (s *Store) Janitor(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now())
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl).UnixNano()
	for id, e := range s.sessions {
		if e.touched.Load() < cutoff {
			delete(s.sessions, id)
		}
	}
}
