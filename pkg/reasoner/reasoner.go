// Package reasoner defines the language-model contract used for fact
// extraction, reconciliation decisions and identity synthesis.
package reasoner

import (
	"context"
	"errors"
)

// ErrReasoner indicates a generation request failed.
var ErrReasoner = errors.New("reasoner error")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation with the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single generation request.
type Options struct {
	// JSONMode asks the model to emit a single JSON value.
	JSONMode bool

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int
}

// Reasoner is the collaborator contract for text generation.
type Reasoner interface {
	// Generate produces a completion for the conversation.
	Generate(ctx context.Context, msgs []Message, opts *Options) (string, error)

	// Close releases any resources held by the reasoner.
	Close() error
}
