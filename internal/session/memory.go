package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memorySession struct {
	attrs   map[string][]byte
	expires time.Time
}

// MemoryStore is a process-local Backend. Expired sessions are dropped
// lazily on access and by Purge.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty store. A non-positive ttl means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// lookup returns the live session, dropping it if expired. Caller holds mu.
func (s *MemoryStore) lookup(sessionID string) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !s.now().Before(sess.expires) {
		delete(s.sessions, sessionID)
		return nil
	}
	return sess
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	if sessionID == "" {
		return nil, false, ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	if sess == nil {
		return nil, false, nil
	}
	v, ok := sess.attrs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID, key string, value []byte) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	if sess == nil {
		sess = &memorySession{attrs: make(map[string][]byte)}
		s.sessions[sessionID] = sess
	}
	v := make([]byte, len(value))
	copy(v, value)
	sess.attrs[key] = v
	sess.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, sessionID, key string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.lookup(sessionID); sess != nil {
		delete(sess.attrs, key)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	if sess == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(sess.attrs))
	for k := range sess.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.lookup(sessionID); sess != nil {
		sess.expires = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Purge drops every expired session and returns how many were removed.
func (s *MemoryStore) Purge(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.expires) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of sessions held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error { return nil }
