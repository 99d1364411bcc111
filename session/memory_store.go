package session

import (
	"context"
	"sync"
	"time"

	"github.com/room4-2/callintake/callflow"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]callflow.CallSession
	now      func() time.Time
	closed   bool
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		sessions: make(map[string]callflow.CallSession),
		now:      now,
	}
}

func (s *memoryStore) Create(_ context.Context, sess *callflow.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return ErrAlreadyExists
	}

	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.Version = 1

	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (callflow.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return callflow.CallSession{}, ErrClosed
	}

	stored, ok := s.sessions[id]
	if !ok {
		return callflow.CallSession{}, ErrNotFound
	}
	return stored.Clone(), nil
}

func (s *memoryStore) Update(_ context.Context, sess *callflow.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	stored, ok := s.sessions[sess.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != sess.Version {
		return ErrVersionConflict
	}

	sess.Version++
	sess.CreatedAt = stored.CreatedAt
	sess.UpdatedAt = s.now()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) Expire(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var expired []string
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *memoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.sessions), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}
