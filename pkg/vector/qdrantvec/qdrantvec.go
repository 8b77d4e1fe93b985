// Package qdrantvec provides a Qdrant-backed vector.Store over the gRPC
// client. Payload filtering and ranking are delegated to the server.
package qdrantvec

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/vector"
)

// DefaultCollectionName is the default collection for memory records.
const DefaultCollectionName = "engram"

// Store implements vector.Store using a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant store.
type Config struct {
	// Host is the Qdrant gRPC host (e.g. "localhost").
	Host string

	// Port is the Qdrant gRPC port (typically 6334).
	Port int

	// APIKey authenticates against managed Qdrant deployments. Optional.
	APIKey string

	// CollectionName is the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the embedding vector size used when the collection has
	// to be created.
	Dimensions uint
}

// NewStore connects to Qdrant and ensures the collection exists.
func NewStore(ctx context.Context, c Config, logger *zap.Logger) (*Store, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.APIKey != "",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	s := &Store{
		client:     client,
		collection: collection,
		dimensions: uint64(c.Dimensions),
		logger:     logger,
	}

	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to qdrant",
		zap.String("host", c.Host),
		zap.String("collection", collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", s.collection, err)
	}

	return nil
}

// buildFilter converts exact-match payload filters to a Qdrant filter.
func buildFilter(filters vector.Filters) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}

	must := make([]*qdrant.Condition, 0, len(filters))
	for k, v := range filters {
		must = append(must, qdrant.NewMatch(k, fmt.Sprintf("%v", v)))
	}

	return &qdrant.Filter{Must: must}
}

// fromPayload converts a Qdrant payload map back to the open payload map the
// core works with. Only scalar kinds appear in memory payloads.
func fromPayload(p map[string]*qdrant.Value) map[string]any {
	if p == nil {
		return nil
	}

	out := make(map[string]any, len(p))
	for k, v := range p {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_NullValue:
			out[k] = nil
		default:
			out[k] = v.String()
		}
	}

	return out
}

// Insert upserts new records as Qdrant points.
func (s *Store) Insert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(rec.Payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	s.logger.Debug("inserted records into qdrant",
		zap.Int("count", len(records)),
	)

	return nil
}

// Update overwrites a record's payload, and its vector when provided.
func (s *Store) Update(ctx context.Context, rec vector.Record) error {
	if _, err := s.Get(ctx, rec.ID); err != nil {
		return err
	}

	if rec.Vector == nil {
		// Payload-only update keeps the stored embedding server-side.
		_, err := s.client.OverwritePayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: s.collection,
			Payload:        qdrant.NewValueMap(rec.Payload),
			PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(rec.ID)),
		})
		if err != nil {
			return fmt.Errorf("overwriting payload for %s: %w", rec.ID, err)
		}
		return nil
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(rec.Payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", rec.ID, err)
	}

	return nil
}

// Delete removes a record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return fmt.Errorf("deleting point %s: %w", id, err)
	}

	return nil
}

// Get retrieves a record with payload and vector.
func (s *Store) Get(ctx context.Context, id string) (*vector.Record, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving point %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, vector.ErrNotFound
	}

	point := points[0]
	rec := &vector.Record{
		ID:      id,
		Payload: fromPayload(point.GetPayload()),
	}
	if v := point.GetVectors().GetVector(); v != nil {
		rec.Vector = v.GetData()
	}

	return rec, nil
}

// List scrolls matching records.
func (s *Store) List(ctx context.Context, filters vector.Filters, limit int) ([]vector.Record, error) {
	scroll := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if limit > 0 {
		scroll.Limit = qdrant.PtrOf(uint32(limit))
	}

	points, err := s.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, fmt.Errorf("scrolling points: %w", err)
	}

	out := make([]vector.Record, 0, len(points))
	for _, point := range points {
		out = append(out, vector.Record{
			ID:      point.GetId().GetUuid(),
			Payload: fromPayload(point.GetPayload()),
		})
	}

	return out, nil
}

// Search runs a server-side similarity query.
func (s *Store) Search(ctx context.Context, _ string, vec []float32, limit int, filters vector.Filters) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Filter:         buildFilter(filters),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	hits := make([]vector.Hit, 0, len(points))
	for _, point := range points {
		hits = append(hits, vector.Hit{
			Record: vector.Record{
				ID:      point.GetId().GetUuid(),
				Payload: fromPayload(point.GetPayload()),
			},
			Score: float64(point.GetScore()),
		})
	}

	return hits, nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("deleting collection %q: %w", s.collection, err)
	}

	return s.ensureCollection(ctx)
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
