// Package cached decorates an embeddings.Embedder with a ristretto cache.
// Reconciliation embeds the same fact text repeatedly (evaluate, store,
// update), so a small cache removes most round-trips to the model.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/embeddings"
)

const (
	defaultMaxCostBytes = 64 << 20
	defaultNumCounters  = 100_000
)

// Embedder caches embeddings keyed by (mode, text).
type Embedder struct {
	inner  embeddings.Embedder
	cache  *ristretto.Cache
	logger *zap.Logger
}

// Config holds cache sizing. Zero values use sensible defaults.
type Config struct {
	// MaxCostBytes bounds the cache by approximate embedding size.
	MaxCostBytes int64
}

// NewEmbedder wraps inner with a cache.
func NewEmbedder(inner embeddings.Embedder, cfg Config, logger *zap.Logger) (*Embedder, error) {
	maxCost := cfg.MaxCostBytes
	if maxCost <= 0 {
		maxCost = defaultMaxCostBytes
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &Embedder{
		inner:  inner,
		cache:  cache,
		logger: logger,
	}, nil
}

func cacheKey(text string, mode embeddings.Mode) string {
	return string(mode) + "\x00" + text
}

// Embed returns a cached embedding when available, otherwise delegates.
func (e *Embedder) Embed(ctx context.Context, text string, mode embeddings.Mode) ([]float32, error) {
	key := cacheKey(text, mode)

	if v, ok := e.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text, mode)
	if err != nil {
		return nil, err
	}

	cost := int64(len(vec) * 4)
	if !e.cache.Set(key, vec, cost) {
		e.logger.Debug("embedding cache rejected entry", zap.Int64("cost", cost))
	}

	return vec, nil
}

// Close releases the cache and the wrapped embedder.
func (e *Embedder) Close() error {
	e.cache.Close()
	return e.inner.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
