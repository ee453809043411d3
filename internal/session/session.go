package session

import (
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"cocktail-voucher/internal/models"
)

// Session is the server-side context of one browser: who identified and what
// the drinks page shows. Values are copied in and out of the Store.
type Session struct {
	ID           string
	Identity     models.IdentityToken
	State        models.SessionState
	Alert        string // Shown once on the next page render
	LastActivity time.Time
}

// Store keeps sessions in memory, keyed by an opaque random id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create starts a session for an identified participant.
func (s *Store) Create(identity models.IdentityToken, state models.SessionState) Session {
	sess := Session{
		ID:           uuid.NewString(),
		Identity:     identity,
		State:        state,
		LastActivity: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Get returns the session and refreshes its activity time.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	sess.LastActivity = s.now()
	s.sessions[id] = sess
	return sess, true
}

// Save replaces a live session. Sessions deleted in the meantime stay deleted.
func (s *Store) Save(sess Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return false
	}
	sess.LastActivity = s.now()
	s.sessions[sess.ID] = sess
	return true
}

// PopAlert returns and clears the pending alert.
func (s *Store) PopAlert(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Alert == "" {
		return ""
	}
	alert := sess.Alert
	sess.Alert = ""
	s.sessions[id] = sess
	return alert
}

// Delete discards the session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanUpInactive removes sessions idle for longer than ttl.
func (s *Store) CleanUpInactive(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Infof("Removed %d inactive sessions", removed)
	}
	return removed
}
