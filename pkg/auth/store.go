package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	coreerrors "github.com/milan604/restfetch/pkg/errors"
)

// TokenStore keeps the refresh token between refreshes.
type TokenStore interface {
	RefreshToken(ctx context.Context) (string, error)
	SaveRefreshToken(ctx context.Context, token string) error
}

// MemoryStore keeps the refresh token in process.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{token: initial}
}

func (s *MemoryStore) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SaveRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// RedisStore shares the refresh token between processes under one key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisStore stores the token under key. A ttl of 0 means no expiry.
func NewRedisStore(client redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "restfetch:refresh-token"
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", coreerrors.Wrapf(err, "read refresh token %s", s.key)
	}
	return token, nil
}

func (s *RedisStore) SaveRefreshToken(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return coreerrors.Wrapf(err, "save refresh token %s", s.key)
	}
	return nil
}

var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*RedisStore)(nil)
)
