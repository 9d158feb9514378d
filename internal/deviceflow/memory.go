package deviceflow

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory; entries expire with their session
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-memory store purging expired sessions every cleanupInterval
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// SaveSession stores a copy of the session until its expiry
func (s *MemoryStore) SaveSession(ctx context.Context, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	stored := *session
	s.cache.Set(session.ChatID, &stored, ttl)
	return nil
}

// GetSession returns a copy of the stored session
func (s *MemoryStore) GetSession(ctx context.Context, chatID string) (*Session, error) {
	v, ok := s.cache.Get(chatID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	session := *v.(*Session)
	return &session, nil
}

// DeleteSession removes the session for a chat
func (s *MemoryStore) DeleteSession(ctx context.Context, chatID string) error {
	s.cache.Delete(chatID)
	return nil
}

// CheckHealth always succeeds for the in-memory store
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
