// Package memgraph provides an in-process graph.Store. Matching is lexical:
// a query is tokenized and associations whose endpoints mention a token are
// returned. Suitable for tests and single-process deployments.
package memgraph

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/graph"
)

type entry struct {
	assoc graph.Association
	scope graph.Filters
}

// Store keeps associations in memory, scoped by filters.
type Store struct {
	mu      sync.RWMutex
	entries []entry
	logger  *zap.Logger
}

// NewStore creates an empty in-memory graph store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

func scopeMatches(scope, filters graph.Filters) bool {
	for k, v := range filters {
		if v == "" {
			continue
		}
		if scope[k] != v {
			return false
		}
	}
	return true
}

// Add stores associations, skipping triples already present in the scope.
func (s *Store) Add(ctx context.Context, assocs []graph.Association, filters graph.Filters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{})
	for _, e := range s.entries {
		if scopeMatches(e.scope, filters) {
			existing[e.assoc.Key()] = struct{}{}
		}
	}

	scope := make(graph.Filters, len(filters))
	for k, v := range filters {
		scope[k] = v
	}

	added := 0
	for _, a := range graph.Dedupe(assocs) {
		if _, dup := existing[a.Key()]; dup {
			continue
		}
		existing[a.Key()] = struct{}{}
		s.entries = append(s.entries, entry{assoc: a, scope: scope})
		added++
	}

	if added > 0 {
		s.logger.Debug("added associations", zap.Int("count", added))
	}

	return nil
}

// Search returns scoped associations whose source or target mentions a
// query token. Results preserve insertion order.
func (s *Store) Search(ctx context.Context, query string, filters graph.Filters, limit int) ([]graph.Association, error) {
	tokens := tokenize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Association
	for _, e := range s.entries {
		if !scopeMatches(e.scope, filters) {
			continue
		}
		if len(tokens) > 0 && !mentions(e.assoc, tokens) {
			continue
		}
		out = append(out, e.assoc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

// DeleteAll removes every association in the scope.
func (s *Store) DeleteAll(ctx context.Context, filters graph.Filters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !scopeMatches(e.scope, filters) {
			kept = append(kept, e)
		}
	}
	s.entries = kept

	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	// Short tokens like "a" or "is" match everything and add noise.
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

func mentions(a graph.Association, tokens []string) bool {
	source := strings.ToLower(a.Source)
	target := strings.ToLower(a.Target)
	for _, t := range tokens {
		if strings.Contains(source, t) || strings.Contains(target, t) {
			return true
		}
	}
	return false
}
