package jobs

import (
	"context"
	"errors"
	"fmt"
)

// StatusStore persists status records by key. Implementations synchronize
// internally and may be shared across processes; each Put replaces the whole
// record and each Get returns a whole record.
type StatusStore interface {
	// Put stores st under key, replacing any previous record.
	Put(ctx context.Context, key Key, st *Status) error

	// Get returns the record for key or an error matching ErrNotFound.
	Get(ctx context.Context, key Key) (*Status, error)
}

// Updater is implemented by stores that can apply a read-modify-write
// atomically. fn receives a copy of the stored record and mutates it in
// place; returning SkipWrite() leaves the record untouched.
type Updater interface {
	Update(ctx context.Context, key Key, fn func(*Status) error) error
}

// errSkip tells update that fn decided not to write.
var errSkip = errors.New("skip write")

// SkipWrite is returned from an update function to abandon the write without
// failing. Store implementations of Updater must honor it.
func SkipWrite() error { return errSkip }

// IsSkipWrite reports whether err is the SkipWrite sentinel.
func IsSkipWrite(err error) bool { return errors.Is(err, errSkip) }

// update applies fn to the record at key using the store's atomic path when
// available and a plain Get/Put otherwise.
func update(ctx context.Context, store StatusStore, key Key, fn func(*Status) error) error {
	if u, ok := store.(Updater); ok {
		err := u.Update(ctx, key, fn)
		if IsSkipWrite(err) {
			return nil
		}
		return err
	}

	st, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	st = st.Clone()
	if err := fn(st); err != nil {
		if IsSkipWrite(err) {
			return nil
		}
		return err
	}
	if err := store.Put(ctx, key, st); err != nil {
		return fmt.Errorf("publish status %s: %w", key, err)
	}
	return nil
}
