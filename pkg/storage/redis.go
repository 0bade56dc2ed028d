package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

// maxUpdateAttempts bounds optimistic-transaction retries in Update.
const maxUpdateAttempts = 16

// RedisStore keeps status records as JSON strings in Redis. Finished
// records get the configured TTL; running records never expire.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := storage.NewRedisStore(client, storage.WithRedisTTL(24*time.Hour))
//	if err := s.Ping(ctx); err != nil { ... }
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var (
	_ jobs.StatusStore = (*RedisStore)(nil)
	_ jobs.Updater     = (*RedisStore)(nil)
)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisTTL expires finished records after ttl.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Put stores st under key.
func (s *RedisStore) Put(ctx context.Context, key jobs.Key, st *jobs.Status) error {
	data, err := encodeStatus(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(s.prefix, key), data, s.expiration(st)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get returns the record under key.
func (s *RedisStore) Get(ctx context.Context, key jobs.Key) (*jobs.Status, error) {
	data, err := s.client.Get(ctx, redisKey(s.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, NewNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeStatus(data)
}

// Update runs fn inside a WATCH/MULTI transaction, retrying when another
// writer touched the key in between.
func (s *RedisStore) Update(ctx context.Context, key jobs.Key, fn func(*jobs.Status) error) error {
	rk := redisKey(s.prefix, key)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			return NewNotFoundError(key)
		}
		if err != nil {
			return err
		}

		st, err := decodeStatus(data)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}

		next, err := encodeStatus(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, next, s.expiration(st))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis update %s: %w", key, ErrConflict)
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) expiration(st *jobs.Status) time.Duration {
	if s.ttl > 0 && st.State.Terminal() {
		return s.ttl
	}
	return 0
}
