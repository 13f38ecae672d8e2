package bot

import "sync"

type Session struct {
	mu     sync.Mutex
	UserID int64
	State  State
}

// SessionStore keeps one conversation per user. It is owned by the Bot that
// was given it; nothing else reads it.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// Get returns the user's session, creating an idle one on first contact.
func (s *SessionStore) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID}
		s.sessions[userID] = sess
	}
	return sess
}

// Reset returns the user's conversation to idle.
func (s *SessionStore) Reset(userID int64) {
	sess := s.Get(userID)
	sess.mu.Lock()
	sess.State = State{}
	sess.mu.Unlock()
}

// Snapshot returns a copy of the user's current state.
func (s *SessionStore) Snapshot(userID int64) State {
	sess := s.Get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.State
}
