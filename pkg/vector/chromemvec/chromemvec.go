// Package chromemvec provides an embedded, pure-Go vector.Store backed by
// chromem-go. Useful when cgo or an external vector service is unavailable.
package chromemvec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/vector"
)

// DefaultCollectionName is the chromem collection used for memory records.
const DefaultCollectionName = "engram"

// metadata keys mirrored out of the payload so chromem can filter
// server-side on scope.
var filterableKeys = []string{
	vector.PayloadUserID,
	vector.PayloadAgentID,
	vector.PayloadRunID,
	vector.PayloadActorID,
}

// Store implements vector.Store on an in-process chromem collection.
//
// chromem has no listing API, so the store keeps its own insertion-order
// index of ids alongside the collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger

	mu    sync.RWMutex
	order []string
	known map[string]struct{}
}

// Config holds configuration for the chromem store.
type Config struct {
	// Path persists the database to disk when set. Empty means in-memory
	// only.
	Path string

	// CollectionName defaults to DefaultCollectionName when empty.
	CollectionName string
}

// NewStore opens or creates the chromem collection.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if c.Path != "" {
		db, err = chromem.NewPersistentDB(c.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", c.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := c.CollectionName
	if name == "" {
		name = DefaultCollectionName
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", name, err)
	}

	s := &Store{
		db:         db,
		collection: col,
		logger:     logger,
		known:      make(map[string]struct{}),
	}

	logger.Debug("opened chromem store",
		zap.String("collection", name),
		zap.Bool("persistent", c.Path != ""),
	)

	return s, nil
}

func toDocument(rec vector.Record) (chromem.Document, error) {
	content, err := json.Marshal(rec.Payload)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("marshaling payload for %s: %w", rec.ID, err)
	}

	metadata := make(map[string]string)
	for _, k := range filterableKeys {
		if v, ok := rec.Payload[k]; ok {
			metadata[k] = fmt.Sprintf("%v", v)
		}
	}

	return chromem.Document{
		ID:        rec.ID,
		Content:   string(content),
		Embedding: rec.Vector,
		Metadata:  metadata,
	}, nil
}

func toRecord(id string, content string, embedding []float32) (vector.Record, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return vector.Record{}, fmt.Errorf("unmarshaling payload for %s: %w", id, err)
	}

	return vector.Record{ID: id, Vector: embedding, Payload: payload}, nil
}

// Insert adds records to the collection.
func (s *Store) Insert(ctx context.Context, records []vector.Record) error {
	for _, rec := range records {
		doc, err := toDocument(rec)
		if err != nil {
			return err
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("adding document %s: %w", rec.ID, err)
		}

		s.mu.Lock()
		if _, seen := s.known[rec.ID]; !seen {
			s.known[rec.ID] = struct{}{}
			s.order = append(s.order, rec.ID)
		}
		s.mu.Unlock()
	}

	return nil
}

// Update overwrites a record. A nil Vector keeps the stored embedding.
func (s *Store) Update(ctx context.Context, rec vector.Record) error {
	existing, err := s.Get(ctx, rec.ID)
	if err != nil {
		return err
	}

	if rec.Vector == nil {
		rec.Vector = existing.Vector
	}

	doc, err := toDocument(rec)
	if err != nil {
		return err
	}

	// AddDocument replaces the document with the same id.
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("replacing document %s: %w", rec.ID, err)
	}

	return nil
}

// Delete removes a record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	_, seen := s.known[id]
	s.mu.RUnlock()
	if !seen {
		return vector.ErrNotFound
	}

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.known, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*vector.Record, error) {
	s.mu.RLock()
	_, seen := s.known[id]
	s.mu.RUnlock()
	if !seen {
		return nil, vector.ErrNotFound
	}

	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return nil, vector.ErrNotFound
	}

	rec, err := toRecord(doc.ID, doc.Content, doc.Embedding)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// List returns records matching the filters in insertion order.
func (s *Store) List(ctx context.Context, filters vector.Filters, limit int) ([]vector.Record, error) {
	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	out := make([]vector.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if !rec.Matches(filters) {
			continue
		}
		out = append(out, *rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

// Search queries the collection by embedding similarity.
func (s *Store) Search(ctx context.Context, _ string, vec []float32, limit int, filters vector.Filters) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem rejects nResults larger than the collection.
	if count := s.collection.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	where := make(map[string]string)
	for _, k := range filterableKeys {
		if v, ok := filters[k]; ok {
			where[k] = fmt.Sprintf("%v", v)
		}
	}

	results, err := s.collection.QueryEmbedding(ctx, vec, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]vector.Hit, 0, len(results))
	for _, res := range results {
		rec, err := toRecord(res.ID, res.Content, res.Embedding)
		if err != nil {
			s.logger.Warn("skipping undecodable search result",
				zap.String("id", res.ID),
				zap.Error(err),
			)
			continue
		}
		if !rec.Matches(filters) {
			continue
		}
		hits = append(hits, vector.Hit{Record: rec, Score: float64(res.Similarity)})
	}

	return hits, nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	name := s.collection.Name

	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %q: %w", name, err)
	}

	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("recreating collection %q: %w", name, err)
	}
	s.collection = col

	s.mu.Lock()
	s.order = nil
	s.known = make(map[string]struct{})
	s.mu.Unlock()

	return nil
}

// Close is a no-op for the embedded database.
func (s *Store) Close() error {
	return nil
}
