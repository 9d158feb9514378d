package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"

// RedisStore implements the Store interface using Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// SaveSession stores a session with expiration, overwriting any previous one
func (s *RedisStore) SaveSession(ctx context.Context, session *Session) error {
	// Calculate TTL based on expiry time
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.client.Set(ctx, sessionPrefix+session.ChatID, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	return nil
}

// GetSession retrieves the session for a chat
func (s *RedisStore) GetSession(ctx context.Context, chatID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+chatID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes the session for a chat
func (s *RedisStore) DeleteSession(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, sessionPrefix+chatID).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
