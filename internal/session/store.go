package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionPrefix is the Redis key prefix for all session hashes.
const SessionPrefix = "session:"

// RedisStore keeps each session as a hash at session:<id>, one field per
// attribute.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store connected to Redis at addr.
func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client. A non-positive ttl means
// DefaultTTL.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return SessionPrefix + sessionID
}

// Get returns one attribute.
func (s *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	if sessionID == "" {
		return nil, false, ErrInvalidSessionID
	}
	data, err := s.client.HGet(ctx, sessionKey(sessionID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session: hget %s: %w", key, err)
	}
	return data, true, nil
}

// Put stores one attribute and refreshes the TTL.
func (s *RedisStore) Put(ctx context.Context, sessionID, key string, value []byte) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	k := sessionKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, k, key, value)
	pipe.Expire(ctx, k, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: hset %s: %w", key, err)
	}
	return nil
}

// Remove deletes one attribute.
func (s *RedisStore) Remove(ctx context.Context, sessionID, key string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	if err := s.client.HDel(ctx, sessionKey(sessionID), key).Err(); err != nil {
		return fmt.Errorf("session: hdel %s: %w", key, err)
	}
	return nil
}

// Keys lists the session's attribute names.
func (s *RedisStore) Keys(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	keys, err := s.client.HKeys(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: hkeys: %w", err)
	}
	return keys, nil
}

// Touch extends the session's TTL.
func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	return s.client.Expire(ctx, sessionKey(sessionID), s.ttl).Err()
}

// Delete removes a session from Redis.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
