// Package embeddings defines the text embedding contract shared by the
// memory pipelines.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding indicates an embedding operation failed.
var ErrEmbedding = errors.New("embedding error")

// Mode hints at why an embedding is being produced. Asymmetric models
// (instruction-tuned retrievers) encode queries and documents differently.
type Mode string

const (
	// ModeAdd embeds a fact that is about to be stored.
	ModeAdd Mode = "add"

	// ModeSearch embeds a recall query.
	ModeSearch Mode = "search"

	// ModeUpdate embeds replacement text for an existing memory.
	ModeUpdate Mode = "update"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding. Mode is a hint and may
	// be ignored by symmetric models.
	Embed(ctx context.Context, text string, mode Mode) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
