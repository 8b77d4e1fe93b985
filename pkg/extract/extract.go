// Package extract turns raw conversation into structured intermediates:
// atomic fact strings, graph triples, and entity lists. Everything here is
// best-effort; a failing or malformed model response yields empty output
// rather than an error, so a bad extraction never sinks an add() call.
package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/graph"
	"github.com/parchmentco/engram/pkg/reasoner"
)

// maxEntities caps how many entities an associative jump may fan out to.
const maxEntities = 3

// Message is one conversation turn handed to Add or Search.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Extractor runs extraction prompts through the reasoner.
type Extractor struct {
	reasoner reasoner.Reasoner
	logger   *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(r reasoner.Reasoner, logger *zap.Logger) *Extractor {
	return &Extractor{reasoner: r, logger: logger}
}

// RenderConversation flattens messages into prompt-ready text.
func RenderConversation(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		role := m.Role
		if m.Name != "" {
			role = fmt.Sprintf("%s (%s)", m.Role, m.Name)
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// HasAssistantAuthor reports whether any message was written by the
// assistant, used to pick the agent-memory extraction template.
func HasAssistantAuthor(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == reasoner.RoleAssistant {
			return true
		}
	}
	return false
}

// Facts extracts atomic candidate facts from a conversation. The agent
// template is used when the memories are being recorded on the agent's
// behalf. Never fails: unusable responses produce an empty list.
func (e *Extractor) Facts(ctx context.Context, conversation string, agentMemory bool) []string {
	prompt := factExtractionUserPrompt
	if agentMemory {
		prompt = factExtractionAgentPrompt
	}

	resp, err := e.reasoner.Generate(ctx, []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: prompt},
		{Role: reasoner.RoleUser, Content: conversation},
	}, &reasoner.Options{JSONMode: true})
	if err != nil {
		e.logger.Warn("fact extraction failed", zap.Error(err))
		return nil
	}

	payload, err := ExtractJSON(resp)
	if err != nil {
		e.logger.Warn("fact extraction returned non-JSON", zap.Error(err))
		return nil
	}

	var parsed struct {
		Facts []string `json:"facts"`
	}
	if err := unmarshal(payload, &parsed); err != nil {
		e.logger.Warn("fact extraction returned unexpected shape", zap.Error(err))
		return nil
	}

	facts := make([]string, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			facts = append(facts, trimmed)
		}
	}

	return facts
}

// GraphElements extracts relationship triples from a conversation.
// Best-effort like Facts.
func (e *Extractor) GraphElements(ctx context.Context, conversation string) []graph.Association {
	resp, err := e.reasoner.Generate(ctx, []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: graphExtractionPrompt},
		{Role: reasoner.RoleUser, Content: conversation},
	}, &reasoner.Options{JSONMode: true})
	if err != nil {
		e.logger.Warn("graph extraction failed", zap.Error(err))
		return nil
	}

	payload, err := ExtractJSON(resp)
	if err != nil {
		e.logger.Warn("graph extraction returned non-JSON", zap.Error(err))
		return nil
	}

	var parsed struct {
		Entities []graph.Association `json:"entities"`
	}
	if err := unmarshal(payload, &parsed); err != nil {
		e.logger.Warn("graph extraction returned unexpected shape", zap.Error(err))
		return nil
	}

	assocs := make([]graph.Association, 0, len(parsed.Entities))
	for _, a := range parsed.Entities {
		if a.Source == "" || a.Relation == "" || a.Target == "" {
			continue
		}
		assocs = append(assocs, a)
	}

	return graph.Dedupe(assocs)
}

// Entities extracts up to maxEntities entity names from one fact text for
// the associative jump. Errors propagate so the caller can fall back to
// querying with the raw text.
func (e *Extractor) Entities(ctx context.Context, text string) ([]string, error) {
	resp, err := e.reasoner.Generate(ctx, []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: entityExtractionPrompt},
		{Role: reasoner.RoleUser, Content: text},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("extracting entities: %w", err)
	}

	line := strings.TrimSpace(RemoveCodeBlocks(resp))
	if line == "" {
		return nil, nil
	}

	parts := strings.Split(line, ",")
	entities := make([]string, 0, maxEntities)
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			entities = append(entities, trimmed)
		}
		if len(entities) == maxEntities {
			break
		}
	}

	return entities, nil
}
