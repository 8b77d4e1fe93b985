package engram

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/embeddings"
	"github.com/parchmentco/engram/pkg/graph"
	"github.com/parchmentco/engram/pkg/recollect"
	"github.com/parchmentco/engram/pkg/vector"
)

// DefaultSearchLimit caps search results when the caller does not.
const DefaultSearchLimit = 10

// recollectOverfetch widens raw retrieval before re-ranking so the blend
// can promote hits the pure similarity ordering would have cut off.
const recollectOverfetch = 2

// Search recalls memories relevant to the query. Vector retrieval and
// graph retrieval run concurrently and join before ranking; a vector
// failure is the caller's problem, a graph failure just means fewer
// associations. Persona identity and resonance are best-effort extras.
func (m *Memory) Search(ctx context.Context, query string, session Session, opts *SearchOptions) (*SearchResult, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmptyInput)
	}
	if opts == nil {
		opts = &SearchOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		wg        sync.WaitGroup
		hits      []vector.Hit
		vectorErr error
		initial   []graph.Association
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		hits, vectorErr = m.retrieve(ctx, query, session, limit)
	}()

	if m.graphEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assocs, err := m.graph.Search(ctx, query, session.GraphFilters(), limit)
			if err != nil {
				m.logger.Warn("graph retrieval failed", zap.Error(err))
				return
			}
			initial = assocs
		}()
	}

	wg.Wait()

	if vectorErr != nil {
		return nil, vectorErr
	}

	if opts.Threshold != nil {
		kept := hits[:0]
		for _, h := range hits {
			if h.Score >= *opts.Threshold {
				kept = append(kept, h)
			}
		}
		hits = kept
	}

	ranked := m.ranker.Rank(candidatesFromHits(hits), limit)
	assocs := m.expander.Expand(ctx, ranked, initial, session.GraphFilters(), m.graphEnabled)

	result := &SearchResult{Results: ranked, Associations: assocs}
	m.enrich(result)

	return result, nil
}

// Recollect is recall with a deliberately widened retrieval: it overfetches
// from the store and lets the blended ranking pick the final cut.
func (m *Memory) Recollect(ctx context.Context, query string, session Session, limit int) ([]recollect.Ranked, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmptyInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	hits, err := m.retrieve(ctx, query, session, limit*recollectOverfetch)
	if err != nil {
		return nil, err
	}

	return m.ranker.Rank(candidatesFromHits(hits), limit), nil
}

// retrieve embeds the query and runs the raw similarity search.
func (m *Memory) retrieve(ctx context.Context, query string, session Session, limit int) ([]vector.Hit, error) {
	vec, err := m.embedder.Embed(ctx, query, embeddings.ModeSearch)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := m.store.Search(ctx, query, vec, limit, session.Filters())
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	return hits, nil
}

// enrich attaches the optional layers: identity sketch and resonance.
// Neither can fail the search.
func (m *Memory) enrich(result *SearchResult) {
	if m.personaEnabled {
		if identity := m.Identity(); identity != "" {
			result.PersonaIdentity = identity
		}
	}

	if recent := m.buffer.Recent(); len(recent) > 0 {
		result.Resonance = recent
	}
}

// candidatesFromHits adapts store hits into ranker candidates, reading the
// optional signals out of each payload.
func candidatesFromHits(hits []vector.Hit) []recollect.Candidate {
	candidates := make([]recollect.Candidate, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		candidates = append(candidates, recollect.Candidate{
			ID:         h.ID,
			Text:       h.Text(),
			Similarity: &score,
			Importance: optionalFloat(h.Payload, vector.PayloadImportance),
			CreatedAt:  payloadString(h.Payload, vector.PayloadCreatedAt),
		})
	}
	return candidates
}
