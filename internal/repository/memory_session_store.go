package repository

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// MemorySessionStore is an in-process session store for tests and
// single-node development runs without Redis.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[model.SessionKey]*model.SessionState
	ended    map[model.SessionKey]model.SessionStatus
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[model.SessionKey]*model.SessionState),
		ended:    make(map[model.SessionKey]model.SessionStatus),
	}
}

func (s *MemorySessionStore) Load(_ context.Context, key model.SessionKey) (*model.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.sessions[key]; ok {
		return st.Clone(), nil
	}
	return model.NewSessionState(), nil
}

func (s *MemorySessionStore) Save(_ context.Context, key model.SessionKey, patch model.SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[key]
	if !ok {
		st = model.NewSessionState()
		s.sessions[key] = st
	}
	st.Apply(patch)
	return nil
}

func (s *MemorySessionStore) Finish(_ context.Context, key model.SessionKey, status model.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	s.ended[key] = status
	return nil
}

func (s *MemorySessionStore) Ended(_ context.Context, key model.SessionKey) (model.SessionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended[key], nil
}

// Exists reports whether anything is stored for key.
func (s *MemorySessionStore) Exists(key model.SessionKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[key]
	return ok
}
