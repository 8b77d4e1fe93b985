// Package persona synthesizes a first-person identity sketch from an
// agent's stored memories, used to prime recall responses with a sense of
// who the agent has become. Entirely best-effort.
package persona

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/reasoner"
)

// Fallbacks returned when synthesis is impossible.
const (
	emptyIdentity    = "I am still forming a sense of who I am; nothing memorable has happened yet."
	degradedIdentity = "I hold memories I cannot articulate right now."
)

const synthesisPrompt = `Below are memories an AI agent has accumulated. Write a short first-person identity sketch (2-4 sentences) describing who this agent is, what it cares about, and how it behaves, grounded only in the memories. No preamble.`

// maxMemories bounds how many memories feed one synthesis call.
const maxMemories = 50

// Engine synthesizes identity text through the reasoner.
type Engine struct {
	reasoner reasoner.Reasoner
	logger   *zap.Logger
}

// NewEngine creates a persona engine.
func NewEngine(r reasoner.Reasoner, logger *zap.Logger) *Engine {
	return &Engine{reasoner: r, logger: logger}
}

// Synthesize distills memories into an identity sketch. Never fails: with
// no memories or a dead reasoner it returns a fixed fallback line.
func (e *Engine) Synthesize(ctx context.Context, memories []string) string {
	if len(memories) == 0 {
		return emptyIdentity
	}

	if len(memories) > maxMemories {
		memories = memories[:maxMemories]
	}

	var b strings.Builder
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}

	resp, err := e.reasoner.Generate(ctx, []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: synthesisPrompt},
		{Role: reasoner.RoleUser, Content: b.String()},
	}, nil)
	if err != nil {
		e.logger.Warn("identity synthesis failed", zap.Error(err))
		return degradedIdentity
	}

	identity := strings.TrimSpace(resp)
	if identity == "" {
		return degradedIdentity
	}

	return identity
}
