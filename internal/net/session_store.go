package net

import "sync"

// SessionStore holds all open sessions, keyed by session id. Accept and
// close happen on different goroutines, so it is locked.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (ss *SessionStore) Add(s *Session) {
	ss.mu.Lock()
	ss.sessions[s.ID] = s
	ss.mu.Unlock()
}

func (ss *SessionStore) Remove(id uint64) {
	ss.mu.Lock()
	delete(ss.sessions, id)
	ss.mu.Unlock()
}

func (ss *SessionStore) Get(id uint64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[id]
}

func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// ForEach iterates a snapshot of the sessions. Safe to call Terminate() on
// sessions during iteration.
func (ss *SessionStore) ForEach(fn func(*Session)) {
	ss.mu.RLock()
	list := make([]*Session, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		list = append(list, s)
	}
	ss.mu.RUnlock()
	for _, s := range list {
		fn(s)
	}
}
