package session

import "sync"

// Store hands out one ReviewSession per user so concurrent instructors never
// share review state.
type Store struct {
	mu       sync.Mutex
	sessions map[uint]*ReviewSession
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: map[uint]*ReviewSession{}}
}

// Get returns the session for a user, creating it on first access.
func (s *Store) Get(userID uint) *ReviewSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[userID]; ok {
		return existing
	}
	created := New()
	s.sessions[userID] = created
	return created
}
