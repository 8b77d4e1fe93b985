// Package memvec provides an in-process implementation of vector.Store.
//
// Records live in a plain map guarded by a RWMutex and similarity is exact
// cosine over all stored vectors. This is the local-dev and test story;
// production deployments use the sqlitevec, qdrantvec or chromemvec drivers.
package memvec

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/vector"
)

// Store implements vector.Store using in-process data structures.
type Store struct {
	logger *zap.Logger

	mu      sync.RWMutex
	records map[string]vector.Record
	order   []string
}

// NewStore creates an empty in-process vector store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:  logger,
		records: make(map[string]vector.Record),
	}
}

// Insert stores new records.
func (s *Store) Insert(_ context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if _, exists := s.records[rec.ID]; !exists {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = cloneRecord(rec)
	}

	return nil
}

// Update overwrites a record's payload, keeping the stored vector when
// rec.Vector is nil.
func (s *Store) Update(_ context.Context, rec vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.ID]
	if !ok {
		return vector.ErrNotFound
	}

	updated := cloneRecord(rec)
	if updated.Vector == nil {
		updated.Vector = existing.Vector
	}
	s.records[rec.ID] = updated

	return nil
}

// Delete removes a record by id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return vector.ErrNotFound
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(_ context.Context, id string) (*vector.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, vector.ErrNotFound
	}

	out := cloneRecord(rec)
	return &out, nil
}

// List returns records matching the filters in insertion order.
func (s *Store) List(_ context.Context, filters vector.Filters, limit int) ([]vector.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []vector.Record
	for _, id := range s.order {
		rec := s.records[id]
		if !rec.Matches(filters) {
			continue
		}
		out = append(out, cloneRecord(rec))
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

// Search ranks matching records by cosine similarity to the query vector.
func (s *Store) Search(_ context.Context, _ string, vec []float32, limit int, filters vector.Filters) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []vector.Hit
	for _, id := range s.order {
		rec := s.records[id]
		if !rec.Matches(filters) {
			continue
		}
		hits = append(hits, vector.Hit{
			Record: cloneRecord(rec),
			Score:  cosine(vec, rec.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

// Reset drops all records.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]vector.Record)
	s.order = nil

	return nil
}

// Close is a no-op for the in-process store.
func (s *Store) Close() error {
	return nil
}

// cosine returns the cosine similarity of two vectors, 0 on dimension
// mismatch or zero magnitude.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cloneRecord copies a record so callers cannot mutate internal state.
func cloneRecord(rec vector.Record) vector.Record {
	out := vector.Record{ID: rec.ID}
	if rec.Vector != nil {
		out.Vector = make([]float32, len(rec.Vector))
		copy(out.Vector, rec.Vector)
	}
	if rec.Payload != nil {
		out.Payload = make(map[string]any, len(rec.Payload))
		for k, v := range rec.Payload {
			out.Payload[k] = v
		}
	}
	return out
}
