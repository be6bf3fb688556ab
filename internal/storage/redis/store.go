// Package redis implements the session-scoped key-value store on Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/booklify-checkout/internal/kv"
)

var _ kv.Store = (*Store)(nil)

// Options configures the connection.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	// TTL bounds the lifetime of every key. Zero keeps keys forever.
	TTL time.Duration
}

// Store is a kv.Store whose entries expire after a fixed TTL, the way a
// browser session ends.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New connects to Redis. Keys are namespaced under "session:".
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Store{client: client, ttl: opts.TTL, prefix: "session:"}
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return data, nil
}

// Set stores value under key, refreshing its TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "redis del %q", key)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
