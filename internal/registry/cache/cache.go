// Package cache wraps a registry store with a Redis read-through cache for
// document lookups. The cache is an optimization only: on any Redis failure
// the inner store answers, and a revocation invalidates the cached entry
// before the write commits its way back to readers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/internal/registry/models"
	"certledger/internal/registry/store"
)

const keyPrefix = "certledger:doc:"

// CachingStore decorates a store.Store. Only document reads are cached;
// roles and verification requests go straight through, as do listings
// (their ordering contract makes them cheap to serve from the store).
type CachingStore struct {
	store.Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(inner store.Store, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachingStore {
	return &CachingStore{Store: inner, rdb: rdb, ttl: ttl, logger: logger}
}

// RunInTx forwards transactional execution to the inner store. Without this
// the decorator would hide the inner store's transaction support from the
// service's capability check.
func (c *CachingStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if runner, ok := c.Store.(interface {
		RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	}); ok {
		return runner.RunInTx(ctx, fn)
	}
	return fn(ctx)
}

func (c *CachingStore) Document(ctx context.Context, id string) (models.Document, error) {
	if cached, ok := c.lookup(ctx, id); ok {
		return cached, nil
	}

	doc, err := c.Store.Document(ctx, id)
	if err != nil {
		return models.Document{}, err
	}
	c.prime(ctx, doc)
	return doc, nil
}

func (c *CachingStore) UpdateDocument(ctx context.Context, doc models.Document) error {
	// Invalidate before the write so a racing read can at worst re-cache
	// the committed state, never the stale one.
	c.invalidate(ctx, doc.ID)
	if err := c.Store.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx, doc.ID)
	return nil
}

func (c *CachingStore) lookup(ctx context.Context, id string) (models.Document, bool) {
	payload, err := c.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Document{}, false
	}
	if err != nil {
		c.warn(ctx, "redis get failed", err)
		return models.Document{}, false
	}
	var doc models.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		c.warn(ctx, "cached document corrupt, dropping", err)
		c.invalidate(ctx, id)
		return models.Document{}, false
	}
	return doc, true
}

func (c *CachingStore) prime(ctx context.Context, doc models.Document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		c.warn(ctx, "marshal document for cache", err)
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+doc.ID, payload, c.ttl).Err(); err != nil {
		c.warn(ctx, "redis set failed", err)
	}
}

func (c *CachingStore) invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		c.warn(ctx, "redis del failed", err)
	}
}

func (c *CachingStore) warn(ctx context.Context, msg string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "error", err)
	}
}
