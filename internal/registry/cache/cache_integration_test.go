//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/registry/models"
	"certledger/internal/registry/store"
	"certledger/pkg/testutil/containers"
)

func TestCachingStoreAgainstRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := store.NewInMemoryStore()
	cached := New(inner, rc.Client, time.Minute, nil)

	doc := models.Document{
		ID:           "doc-1",
		Issuer:       common.HexToAddress("0xaa"),
		Recipient:    common.HexToAddress("0xbb"),
		DocumentHash: "0xabc",
		IssuedAt:     time.Now().UTC().Truncate(time.Second),
		Valid:        true,
	}
	require.NoError(t, inner.CreateDocument(ctx, doc))

	t.Run("read-through primes the cache", func(t *testing.T) {
		got, err := cached.Document(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)

		exists, err := rc.Client.Exists(ctx, "certledger:doc:"+doc.ID).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})

	t.Run("cached entry answers without the inner store", func(t *testing.T) {
		got, err := cached.Document(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.DocumentHash, got.DocumentHash)
	})

	t.Run("update invalidates so revocation is read immediately", func(t *testing.T) {
		doc.Revoked = true
		doc.Valid = false
		require.NoError(t, cached.UpdateDocument(ctx, doc))

		exists, err := rc.Client.Exists(ctx, "certledger:doc:"+doc.ID).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists)

		got, err := cached.Document(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, got.Revoked)
	})
}
