package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobrunner/pkg/backoff"
	"github.com/vulntor/jobrunner/pkg/jobs"
)

// Store is a status store with atomic updates that owns resources.
type Store interface {
	jobs.StatusStore
	jobs.Updater
	Close() error
}

// Factory creates a Store from validated configuration.
type Factory func(ctx context.Context, cfg *Config) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		BackendMemory: newMemoryFromConfig,
		BackendFile:   newFileFromConfig,
		BackendRedis:  newRedisFromConfig,
		BackendNATS:   newNATSFromConfig,
	}

	// ConnectRetry is the retry policy used when dialing remote backends.
	ConnectRetry = backoff.DefaultRetryConfig()
)

// Register installs or replaces the factory for a backend name.
func Register(backend string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[backend] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStatusStore validates cfg and builds the configured backend.
//
// Example:
//
//	store, err := storage.NewStatusStore(ctx, &storage.Config{
//	    Backend: storage.BackendFile,
//	    Dir:     "~/.local/share/jobrunner/status",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewStatusStore(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, NewInvalidInputError("config", "storage configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Backend, err)
	}

	log.Debug().
		Str("component", "storage").
		Str("backend", cfg.Backend).
		Dur("status_ttl", cfg.StatusTTL).
		Msg("Status store ready")

	return store, nil
}

func newMemoryFromConfig(_ context.Context, cfg *Config) (Store, error) {
	return NewMemoryStore(WithTTL(cfg.StatusTTL)), nil
}

func newFileFromConfig(_ context.Context, cfg *Config) (Store, error) {
	return NewFileStore(cfg.Dir)
}

func newRedisFromConfig(ctx context.Context, cfg *Config) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := NewRedisStore(client, WithRedisPrefix(cfg.Redis.Prefix), WithRedisTTL(cfg.StatusTTL))

	if err := backoff.Retry(ctx, ConnectRetry, store.Ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	return store, nil
}

func newNATSFromConfig(ctx context.Context, cfg *Config) (Store, error) {
	var nc *nats.Conn
	err := backoff.Retry(ctx, ConnectRetry, func(context.Context) error {
		conn, err := ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return err
		}
		nc = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.NATS.URL, err)
	}

	store, err := NewNATSStore(ctx, nc, cfg.NATS.Bucket, cfg.StatusTTL)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return store, nil
}
