package storage

import "context"

type ctxKey string

const storeKey ctxKey = "storage.store"

// WithStore attaches an open store to ctx for commands further down the
// cobra tree.
func WithStore(ctx context.Context, s Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeKey, s)
}

// FromContext returns the store attached by WithStore.
func FromContext(ctx context.Context) (Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(storeKey).(Store)
	return s, ok && s != nil
}
