package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/registry/service"
	"certledger/internal/registry/store"
)

// txRecordingStore stands in for a store with native transaction support.
type txRecordingStore struct {
	store.Store
	runs int
}

func (s *txRecordingStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.runs++
	return fn(ctx)
}

func TestCachingStoreForwardsRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("decorating keeps the transaction capability visible", func(t *testing.T) {
		inner := &txRecordingStore{Store: store.NewInMemoryStore()}
		cached := New(inner, nil, time.Minute, nil)

		runner, ok := any(cached).(service.TxRunner)
		require.True(t, ok)

		called := false
		require.NoError(t, runner.RunInTx(ctx, func(ctx context.Context) error {
			called = true
			return nil
		}))
		assert.True(t, called)
		assert.Equal(t, 1, inner.runs, "inner store must own the transaction")
	})

	t.Run("inner store without transactions falls back to direct execution", func(t *testing.T) {
		cached := New(store.NewInMemoryStore(), nil, time.Minute, nil)

		called := false
		require.NoError(t, cached.RunInTx(ctx, func(ctx context.Context) error {
			called = true
			return nil
		}))
		assert.True(t, called)
	})
}
