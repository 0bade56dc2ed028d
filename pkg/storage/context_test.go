package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithStore(t *testing.T) {
	t.Run("stores store in context", func(t *testing.T) {
		s := NewMemoryStore()
		ctx := WithStore(context.Background(), s)

		got, ok := FromContext(ctx)
		require.True(t, ok)
		require.Same(t, s, got)
	})

	t.Run("handles nil context", func(t *testing.T) {
		s := NewMemoryStore()
		//nolint:staticcheck // Testing nil context handling
		ctx := WithStore(nil, s)
		require.NotNil(t, ctx)

		got, ok := FromContext(ctx)
		require.True(t, ok)
		require.Same(t, s, got)
	})
}

func TestFromContext(t *testing.T) {
	t.Run("returns false for nil context", func(t *testing.T) {
		//nolint:staticcheck // Testing nil context handling
		_, ok := FromContext(nil)
		require.False(t, ok)
	})

	t.Run("returns false when store not in context", func(t *testing.T) {
		_, ok := FromContext(context.Background())
		require.False(t, ok)
	})

	t.Run("returns false for wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), storeKey, "not a store")
		_, ok := FromContext(ctx)
		require.False(t, ok)
	})
}
