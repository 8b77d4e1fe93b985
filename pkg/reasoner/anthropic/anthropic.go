// Package anthropic implements the reasoner contract on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parchmentco/engram/pkg/reasoner"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-0"

	// DefaultMaxTokens caps responses when the caller does not.
	DefaultMaxTokens = 4096
)

// Reasoner wraps the Anthropic SDK client.
type Reasoner struct {
	client    anthropicsdk.Client
	model     string
	maxTokens int64
}

// Config holds configuration for the Anthropic reasoner.
type Config struct {
	// APIKey authenticates against the API. Falls back to the
	// ANTHROPIC_API_KEY environment variable when empty.
	APIKey string

	// Model defaults to DefaultModel when empty.
	Model string

	// MaxTokens defaults to DefaultMaxTokens when zero.
	MaxTokens int
}

// NewReasoner creates a reasoner backed by the Anthropic API.
func NewReasoner(cfg Config) (*Reasoner, error) {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Reasoner{
		client:    anthropicsdk.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Generate sends the conversation through the Messages API and returns the
// concatenated text blocks.
func (r *Reasoner) Generate(ctx context.Context, msgs []reasoner.Message, opts *reasoner.Options) (string, error) {
	var (
		system   []string
		messages []anthropicsdk.MessageParam
	)

	for _, m := range msgs {
		switch m.Role {
		case reasoner.RoleSystem:
			system = append(system, m.Content)
		case reasoner.RoleAssistant:
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	maxTokens := r.maxTokens
	if opts != nil && opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}

	if opts != nil && opts.JSONMode {
		system = append(system, "Respond with a single valid JSON value and nothing else.")
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(r.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: strings.Join(system, "\n\n")},
		}
	}
	if opts != nil && opts.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*opts.Temperature)
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", reasoner.ErrReasoner, err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	return out.String(), nil
}

// Close is a no-op for the HTTP client.
func (r *Reasoner) Close() error {
	return nil
}

var _ reasoner.Reasoner = (*Reasoner)(nil)
