// internal/session/store.go
package session

import (
	"context"
	"sync"
	"time"

	"splitbill-bot/internal/common/metrics"
	"splitbill-bot/internal/models"
)

// Store persists conversation state between webhook deliveries. Get
// returns (nil, nil) when no live session exists for the key, so
// callers treat absence and expiry the same way.
type Store interface {
	Get(ctx context.Context, key string) (*models.Session, error)
	Put(ctx context.Context, sess *models.Session) error
	Clear(ctx context.Context, key string) error
}

// MemoryStore keeps sessions in a mutex-guarded map. Entries past
// their TTL are dropped lazily on read.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	ttl      time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		ttl:      ttl,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	if sess.IsExpired(s.ttl) {
		delete(s.sessions, key)
		metrics.ActiveSessions.Dec()
		return nil, nil
	}

	copied := *sess
	return &copied, nil
}

func (s *MemoryStore) Put(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.Key]; !exists {
		metrics.ActiveSessions.Inc()
	}
	copied := *sess
	s.sessions[sess.Key] = &copied
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; exists {
		delete(s.sessions, key)
		metrics.ActiveSessions.Dec()
	}
	return nil
}
