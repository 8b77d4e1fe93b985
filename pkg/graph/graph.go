// Package graph defines the associative-memory contract. Associations are
// directed (source, relation, target) triples scoped to a session, used to
// answer entity-centric lookups alongside vector recall.
package graph

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates no associations matched.
var ErrNotFound = errors.New("association not found")

// Association is a directed relation between two entities.
type Association struct {
	Source   string `json:"source"`
	Relation string `json:"relationship"`
	Target   string `json:"destination"`
}

// Key returns a case-insensitive identity for exact-triple deduplication.
func (a Association) Key() string {
	return strings.ToLower(a.Source) + "\x00" + strings.ToLower(a.Relation) + "\x00" + strings.ToLower(a.Target)
}

// Filters scope graph operations, typically by user_id, agent_id and run_id.
type Filters map[string]string

// Store is the collaborator contract for associative storage.
type Store interface {
	// Add inserts associations under the given scope. Triples already
	// present in the scope are left untouched.
	Add(ctx context.Context, assocs []Association, filters Filters) error

	// Search returns associations in scope relevant to the query text.
	Search(ctx context.Context, query string, filters Filters, limit int) ([]Association, error)

	// DeleteAll removes every association in scope.
	DeleteAll(ctx context.Context, filters Filters) error

	Close() error
}

// Dedupe removes exact duplicate triples, case-insensitively, preserving
// first-seen order.
func Dedupe(assocs []Association) []Association {
	seen := make(map[string]struct{}, len(assocs))
	out := make([]Association, 0, len(assocs))
	for _, a := range assocs {
		k := a.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}
