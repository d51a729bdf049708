package guest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0x360x36/miauhome.cl/pkg/redis"
)

type redisClient interface {
	GetEx(ctx context.Context, key string, ttl time.Duration) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	GuestCartKey(profileID string) string
}

// RedisStore keeps guest carts in Redis. Reads and writes both push the
// entry's expiry out to ttl.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStore binds the store to an initialized client.
func NewRedisStore(client redisClient, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, profileID string) ([]byte, error) {
	if err := ValidateProfileID(profileID); err != nil {
		return nil, err
	}
	value, err := s.client.GetEx(ctx, s.client.GuestCartKey(profileID), s.ttl)
	if redis.IsNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getex guest cart: %w", err)
	}
	return []byte(value), nil
}

func (s *RedisStore) Save(ctx context.Context, profileID string, payload []byte) error {
	if err := ValidateProfileID(profileID); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.client.GuestCartKey(profileID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("redis set guest cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, profileID string) error {
	if err := ValidateProfileID(profileID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.client.GuestCartKey(profileID)); err != nil {
		return fmt.Errorf("redis del guest cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
