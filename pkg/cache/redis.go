package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/scancat/scancat/pkg/errors"
)

// RedisStore keeps the cache index in redis, for deployments where
// several hosts share one blob store (e.g. over a network mount) and
// need a consistent view of what is cached.
//
// Only the small index entries live in redis; bulk data stays in the
// blob store on disk.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds connection settings for the redis index.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connecting to redis at %s", cfg.Addr)
	}
	return &RedisStore{client: client}, nil
}

// Get retrieves an entry.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeNetwork, err, "redis get %s", key)
	}
	return data, true, nil
}

// Set stores an entry. Entries never expire; cached field values are
// immutable.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "redis set %s", key)
	}
	return nil
}

// Delete removes an entry.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "redis del %s", key)
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
