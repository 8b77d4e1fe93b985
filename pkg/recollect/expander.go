package recollect

import (
	"context"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/graph"
)

// maxJumpCandidates bounds how many top results seed the associative jump.
const maxJumpCandidates = 2

// EntityExtractor names entities in a fact text for graph lookups.
// *extract.Extractor satisfies this.
type EntityExtractor interface {
	Entities(ctx context.Context, text string) ([]string, error)
}

// Expander widens a recall result with associations reachable from the top
// ranked memories. Every step is best-effort: a failing extraction falls
// back to the raw text, a failing graph lookup just yields fewer triples.
type Expander struct {
	store     graph.Store
	extractor EntityExtractor
	logger    *zap.Logger
}

// NewExpander creates an expander. A nil store disables expansion.
func NewExpander(store graph.Store, extractor EntityExtractor, logger *zap.Logger) *Expander {
	return &Expander{
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

// Expand jumps from the top ranked candidates into the graph and merges
// what it finds with the initial associations, deduplicated by exact
// triple, first-seen order preserved. Disabled expansion returns the
// initial associations unchanged.
func (e *Expander) Expand(ctx context.Context, top []Ranked, initial []graph.Association, filters graph.Filters, enabled bool) []graph.Association {
	if !enabled || e.store == nil {
		return initial
	}

	combined := make([]graph.Association, 0, len(initial))
	combined = append(combined, initial...)

	seeds := top
	if len(seeds) > maxJumpCandidates {
		seeds = seeds[:maxJumpCandidates]
	}

	for _, candidate := range seeds {
		queries := e.queriesFor(ctx, candidate)

		for _, q := range queries {
			assocs, err := e.store.Search(ctx, q, filters, 0)
			if err != nil {
				e.logger.Warn("associative jump query failed",
					zap.String("memory_id", candidate.ID),
					zap.String("query", q),
					zap.Error(err),
				)
				continue
			}
			combined = append(combined, assocs...)
		}
	}

	return graph.Dedupe(combined)
}

// queriesFor derives graph queries from one candidate: its extracted
// entities, or the raw text when extraction is unavailable or fails.
func (e *Expander) queriesFor(ctx context.Context, candidate Ranked) []string {
	if e.extractor == nil {
		return []string{candidate.Text}
	}

	entities, err := e.extractor.Entities(ctx, candidate.Text)
	if err != nil || len(entities) == 0 {
		if err != nil {
			e.logger.Debug("entity extraction failed, querying with raw text",
				zap.String("memory_id", candidate.ID),
				zap.Error(err),
			)
		}
		return []string{candidate.Text}
	}

	return entities
}
