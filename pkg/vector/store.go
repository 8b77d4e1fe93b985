// Package vector defines the contract between the memory core and the vector
// store that holds persisted memory records. The core never sees a store's
// indexing internals; it speaks only in records, payloads and ranked hits.
package vector

import "context"

// Payload keys the core reads and writes on every record. Everything else in
// a payload is caller metadata and passes through untouched.
const (
	PayloadData            = "data"
	PayloadHash            = "hash"
	PayloadCreatedAt       = "created_at"
	PayloadUpdatedAt       = "updated_at"
	PayloadUserID          = "user_id"
	PayloadAgentID         = "agent_id"
	PayloadRunID           = "run_id"
	PayloadActorID         = "actor_id"
	PayloadRole            = "role"
	PayloadImportance      = "importance_score"
	PayloadReinforceCount  = "reinforce_count"
	PayloadLastAccessedAt  = "last_accessed_at"
	PayloadVisibility      = "visibility"
	PayloadIsFlashbulb     = "is_flashbulb"
	PayloadMemoryType      = "memory_type"
)

// Record is a stored memory: an id, its embedding and an open payload map.
type Record struct {
	// ID is the unique identifier for the record.
	ID string

	// Vector is the embedding for the record's text.
	Vector []float32

	// Payload holds the record's text (under PayloadData) plus scoping and
	// caller metadata.
	Payload map[string]any
}

// Hit is a search result: a record plus its similarity score.
// Higher scores mean more similar.
type Hit struct {
	Record

	Score float64
}

// Filters are exact-match constraints over payload values. A record matches
// when every filter key is present in its payload with an equal value.
type Filters map[string]any

// Store handles persistence and similarity retrieval of memory records.
// Implementations delegate indexing to their backend; the core only relies
// on the contract below.
type Store interface {
	// Insert stores new records. Implementations may assume ids are fresh.
	Insert(ctx context.Context, records []Record) error

	// Update overwrites a record's payload, and its vector when rec.Vector
	// is non-nil. A nil vector keeps the stored embedding (metadata-only
	// updates).
	Update(ctx context.Context, rec Record) error

	// Delete removes a record by id.
	Delete(ctx context.Context, id string) error

	// Get retrieves a single record by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records matching the filters, up to limit.
	// A limit <= 0 means no limit.
	List(ctx context.Context, filters Filters, limit int) ([]Record, error)

	// Search returns the records most similar to the query vector, filtered
	// and ranked by descending score.
	Search(ctx context.Context, query string, vec []float32, limit int, filters Filters) ([]Hit, error)

	// Reset drops all records.
	Reset(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Text returns the record's stored text, or "" when absent.
func (r Record) Text() string {
	if r.Payload == nil {
		return ""
	}
	s, _ := r.Payload[PayloadData].(string)
	return s
}

// Matches reports whether the record's payload satisfies every filter.
func (r Record) Matches(filters Filters) bool {
	for k, want := range filters {
		got, ok := r.Payload[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
