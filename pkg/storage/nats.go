package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

// NATSStore keeps status records in a JetStream key/value bucket. Updates
// use the entry revision as a compare-and-set guard.
//
// A bucket TTL applies to every key, running or not, so it has to exceed the
// longest expected job.
type NATSStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

var (
	_ jobs.StatusStore = (*NATSStore)(nil)
	_ jobs.Updater     = (*NATSStore)(nil)
)

// ConnectNATS dials url with the reconnect policy used by long-running workers.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
}

// NewNATSStore creates (or updates) bucket and returns a store on it. The
// store takes ownership of nc and drains it on Close.
func NewNATSStore(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (*NATSStore, error) {
	if bucket == "" {
		return nil, NewInvalidInputError("bucket", "bucket name is required")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "jobrunner job status",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create key/value bucket %s: %w", bucket, err)
	}

	return &NATSStore{nc: nc, kv: kv, bucket: bucket}, nil
}

// Put stores st under key.
func (s *NATSStore) Put(ctx context.Context, key jobs.Key, st *jobs.Status) error {
	data, err := encodeStatus(st)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, natsKey(key), data); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Get returns the record under key.
func (s *NATSStore) Get(ctx context.Context, key jobs.Key) (*jobs.Status, error) {
	entry, err := s.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, NewNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return decodeStatus(entry.Value())
}

// Update applies fn and writes back only if nobody wrote in between,
// retrying on revision conflicts.
func (s *NATSStore) Update(ctx context.Context, key jobs.Key, fn func(*jobs.Status) error) error {
	k := natsKey(key)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		entry, err := s.kv.Get(ctx, k)
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return NewNotFoundError(key)
		}
		if err != nil {
			return fmt.Errorf("kv get %s: %w", key, err)
		}

		st, err := decodeStatus(entry.Value())
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		data, err := encodeStatus(st)
		if err != nil {
			return err
		}

		_, err = s.kv.Update(ctx, k, data, entry.Revision())
		if err == nil {
			return nil
		}
		if !isRevisionConflict(err) {
			return fmt.Errorf("kv update %s: %w", key, err)
		}
	}
	return fmt.Errorf("kv update %s: %w", key, ErrConflict)
}

// Close drains the connection.
func (s *NATSStore) Close() error {
	if s.nc != nil {
		return s.nc.Drain()
	}
	return nil
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
