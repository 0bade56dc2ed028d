package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

const (
	statusExt = ".json"
	lockExt   = ".lock"
)

// FileStore keeps one JSON file per status record. Every access holds a file
// lock, so several processes can share one directory.
//
// Storage layout:
//
//	{dir}/
//	  {kind}/
//	    {job-id}.json
//	    {job-id}.json.lock
type FileStore struct {
	dir    string
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

var (
	_ jobs.StatusStore = (*FileStore)(nil)
	_ jobs.Updater     = (*FileStore)(nil)
)

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, NewInvalidInputError("dir", "store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:    dir,
		logger: log.With().Str("component", "storage.file").Logger(),
	}, nil
}

// Dir returns the store root.
func (s *FileStore) Dir() string { return s.dir }

// Put writes st under key, replacing the previous file atomically.
func (s *FileStore) Put(_ context.Context, key jobs.Key, st *jobs.Status) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := encodeStatus(st)
	if err != nil {
		return err
	}

	path := s.statusPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create kind directory: %w", err)
	}

	lock := flock.New(path + lockExt)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return writeFileAtomic(path, data)
}

// Get reads the record under key.
func (s *FileStore) Get(_ context.Context, key jobs.Key) (*jobs.Status, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	path := s.statusPath(key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewNotFoundError(key)
	}

	lock := flock.New(path + lockExt)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return readStatusFile(key, path)
}

// Update applies fn while holding the record's write lock.
func (s *FileStore) Update(_ context.Context, key jobs.Key, fn func(*jobs.Status) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	path := s.statusPath(key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewNotFoundError(key)
	}

	lock := flock.New(path + lockExt)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	st, err := readStatusFile(key, path)
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
	return writeFileAtomic(path, data)
}

// Watch streams the record under key every time its file changes. The
// current record is sent first when it exists. The channel is closed after a
// terminal record was sent or when ctx ends.
func (s *FileStore) Watch(ctx context.Context, key jobs.Key) (<-chan *jobs.Status, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	path := s.statusPath(key)
	kindDir := filepath.Dir(path)
	if err := os.MkdirAll(kindDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create kind directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(kindDir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", kindDir, err)
	}

	out := make(chan *jobs.Status, 8)
	go func() {
		defer close(out)
		defer func() {
			if err := watcher.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("Error closing watcher")
			}
		}()

		// emit reports whether watching should stop.
		emit := func() bool {
			st, err := s.Get(ctx, key)
			if err != nil {
				if !IsNotFound(err) {
					s.logger.Debug().Err(err).Str("key", key.String()).Msg("Failed to read watched status")
				}
				return false
			}
			select {
			case out <- st:
			case <-ctx.Done():
				return true
			}
			return st.State.Terminal()
		}

		if emit() {
			return
		}

		target := filepath.Base(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if emit() {
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error().Err(err).Msg("File watcher error")
			}
		}
	}()

	return out, nil
}

// GCOptions control garbage collection of finished records.
type GCOptions struct {
	// MaxAge removes finished records older than this. Zero removes nothing.
	MaxAge time.Duration

	// DryRun reports what would be removed without deleting.
	DryRun bool
}

// GCResult summarizes a GC run.
type GCResult struct {
	Scanned int
	Removed []jobs.Key
}

// GC removes finished records whose FinishedAt is older than opts.MaxAge.
// Running records are never removed.
func (s *FileStore) GC(ctx context.Context, opts GCOptions) (*GCResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	result := &GCResult{}
	if opts.MaxAge <= 0 {
		return result, nil
	}
	cutoff := time.Now().Add(-opts.MaxAge)

	kinds, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	for _, kindEntry := range kinds {
		if !kindEntry.IsDir() {
			continue
		}
		kind := jobs.StatusKind(kindEntry.Name())
		files, err := os.ReadDir(filepath.Join(s.dir, kindEntry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read kind directory: %w", err)
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			key, ok := keyFromFileName(kind, f.Name())
			if !ok {
				continue
			}
			result.Scanned++

			st, err := s.Get(ctx, key)
			if err != nil {
				s.logger.Warn().Err(err).Str("key", key.String()).Msg("Skipping unreadable status")
				continue
			}
			if !st.State.Terminal() || st.FinishedAt == nil || st.FinishedAt.After(cutoff) {
				continue
			}

			result.Removed = append(result.Removed, key)
			if opts.DryRun {
				continue
			}
			if err := s.remove(key); err != nil {
				return result, err
			}
		}
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("removed", len(result.Removed)).
		Bool("dry_run", opts.DryRun).
		Msg("Status garbage collection finished")

	return result, nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) remove(key jobs.Key) error {
	path := s.statusPath(key)

	lock := flock.New(path + lockExt)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	err := os.Remove(path)
	_ = lock.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	if err := os.Remove(path + lockExt); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (s *FileStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *FileStore) statusPath(key jobs.Key) string {
	return filepath.Join(s.dir, string(key.Kind), key.JobID.String()+statusExt)
}

func keyFromFileName(kind jobs.StatusKind, name string) (jobs.Key, bool) {
	if !strings.HasSuffix(name, statusExt) {
		return jobs.Key{}, false
	}
	id, err := parseJobID(strings.TrimSuffix(name, statusExt))
	if err != nil {
		return jobs.Key{}, false
	}
	return jobs.Key{JobID: id, Kind: kind}, true
}

func readStatusFile(key jobs.Key, path string) (*jobs.Status, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, NewNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	return decodeStatus(data)
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so readers never see a partial record.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace status: %w", err)
	}
	return nil
}
