// Package mock provides a deterministic embedder for tests.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/parchmentco/engram/pkg/embeddings"
)

// DefaultDimensions is the size of generated embeddings.
const DefaultDimensions = 8

// Embedder returns scripted embeddings when configured, otherwise a stable
// hash-derived unit vector. Identical text always embeds identically.
type Embedder struct {
	mu sync.Mutex

	// Embeddings maps exact text to a fixed embedding.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches.
	FailOn string

	// Calls records every embedded text in order.
	Calls []string

	// Dimensions of generated vectors. Defaults to DefaultDimensions.
	Dimensions int
}

// NewEmbedder creates an empty mock embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		Embeddings: make(map[string][]float32),
	}
}

// Embed returns the scripted or derived embedding for text.
func (m *Embedder) Embed(_ context.Context, text string, _ embeddings.Mode) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: scripted failure for: %s", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return m.derive(text), nil
}

// derive builds a unit vector from the text hash so distinct texts land in
// distinct directions.
func (m *Embedder) derive(text string) []float32 {
	dims := m.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>32)) / float64(math.MaxInt32)
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec
}

// Close is a no-op.
func (m *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
