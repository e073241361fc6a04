// Package predcache stores prediction results in a key-value store, keyed by
// artifact identity and image content.
package predcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/tierscore/internal/db"
	"github.com/ecolens/tierscore/internal/domain/score"
)

const keyPrefix = "tierscore:pred:"

// store is the consumer interface for the cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache implements inference.ResultCache. Store failures are logged and treated as misses.
type Cache struct {
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a cache. ttl <= 0 keeps entries until evicted by the store.
func New(s store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, logger: logger}
}

// Get returns the cached result of image under artifactID.
func (c *Cache) Get(ctx context.Context, artifactID string, image []byte) (score.Result, bool) {
	key := Key(artifactID, image)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached prediction", zap.String("key", key), zap.Error(err))
		}
		return score.Result{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Label == "" {
		c.logger.Warn("Failed to parse cached prediction", zap.String("key", key), zap.Error(err))
		return score.Result{}, false
	}
	return e.toResult(), true
}

// Put stores r for image under artifactID.
func (c *Cache) Put(ctx context.Context, artifactID string, image []byte, r score.Result) {
	key := Key(artifactID, image)

	data, err := json.Marshal(fromResult(r))
	if err != nil {
		c.logger.Warn("Failed to encode prediction", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache prediction", zap.String("key", key), zap.Error(err))
	}
}

// Key derives the cache key. Results never leak across artifact versions.
func Key(artifactID string, image []byte) string {
	h := sha256.Sum256(image)
	return keyPrefix + artifactID + ":" + hex.EncodeToString(h[:])
}
