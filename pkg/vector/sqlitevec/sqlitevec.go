// Package sqlitevec provides a SQLite-backed vector.Store using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/vector"
)

// knnOverfetch widens KNN queries so payload filtering applied after the
// vector scan still fills the requested limit.
const knnOverfetch = 4

// Store implements vector.Store using SQLite with the sqlite-vec extension.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the sqlite-vec store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewStore creates a SQLite vector store backed by sqlite-vec.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// vec0 virtual tables use integer rowids, so record ids and payloads
	// live in a mapping table keyed by the same rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec store initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Store{db: db, logger: logger}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func marshalPayload(p map[string]any) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}
	return string(b), nil
}

func unmarshalPayload(s string) (map[string]any, error) {
	var p map[string]any
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	return p, nil
}

// Insert stores new records with their embeddings.
func (s *Store) Insert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		payload, err := marshalPayload(rec.Payload)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO memory_records(record_id, payload) VALUES (?, ?)`,
			rec.ID, payload,
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for record %s: %w", rec.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(rec.Vector),
		); err != nil {
			return fmt.Errorf("inserting embedding for record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("inserted records into sqlite-vec",
		zap.Int("count", len(records)),
	)

	return nil
}

// Update overwrites a record's payload and, when a vector is provided, its
// embedding. vec0 does not support UPDATE so embeddings are replaced via
// DELETE + INSERT.
func (s *Store) Update(ctx context.Context, rec vector.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM memory_records WHERE record_id = ?`, rec.ID,
	).Scan(&rowID)
	if err == sql.ErrNoRows {
		return vector.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up record %s: %w", rec.ID, err)
	}

	payload, err := marshalPayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE memory_records SET payload = ? WHERE rowid = ?`,
		payload, rowID,
	); err != nil {
		return fmt.Errorf("updating record %s: %w", rec.ID, err)
	}

	if rec.Vector != nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM memory_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for record %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(rec.Vector),
		); err != nil {
			return fmt.Errorf("re-inserting embedding for record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// Delete removes a record and its embedding.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM memory_records WHERE record_id = ?`, id,
	).Scan(&rowID)
	if err == sql.ErrNoRows {
		return vector.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up record %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_embeddings WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting embedding for record %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_records WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}

	return tx.Commit()
}

// Get retrieves a record with its embedding.
func (s *Store) Get(ctx context.Context, id string) (*vector.Record, error) {
	var rowID int64
	var payloadJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT rowid, payload FROM memory_records WHERE record_id = ?`, id,
	).Scan(&rowID, &payloadJSON)
	if err == sql.ErrNoRows {
		return nil, vector.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up record %s: %w", id, err)
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}

	rec := &vector.Record{ID: id, Payload: payload}

	var embBlob []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT embedding FROM memory_embeddings WHERE rowid = ?`, rowID,
	).Scan(&embBlob)
	if err == nil && len(embBlob) > 0 {
		rec.Vector, _ = deserializeFloat32(embBlob)
	}

	return rec, nil
}

// List returns records matching the filters in rowid order.
func (s *Store) List(ctx context.Context, filters vector.Filters, limit int) ([]vector.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, payload FROM memory_records ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []vector.Record
	for rows.Next() {
		var id, payloadJSON string
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		payload, err := unmarshalPayload(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}

		rec := vector.Record{ID: id, Payload: payload}
		if !rec.Matches(filters) {
			continue
		}

		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, rows.Err()
}

// Search runs a KNN query via vec0 MATCH and filters payloads afterwards.
func (s *Store) Search(ctx context.Context, _ string, vec []float32, limit int, filters vector.Filters) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	k := limit
	if len(filters) > 0 {
		k = limit * knnOverfetch
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			r.record_id,
			r.payload,
			e.distance
		FROM memory_embeddings e
		INNER JOIN memory_records r ON r.rowid = e.rowid
		WHERE e.embedding MATCH ?
			AND e.k = ?
		ORDER BY e.distance
	`, serializeFloat32(vec), k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var id, payloadJSON string
		var distance float64
		if err := rows.Scan(&id, &payloadJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		payload, err := unmarshalPayload(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}

		rec := vector.Record{ID: id, Payload: payload}
		if !rec.Matches(filters) {
			continue
		}

		hits = append(hits, vector.Hit{
			Record: rec,
			// Convert distance to similarity score: lower distance = higher similarity
			Score: 1.0 / (1.0 + distance),
		})

		if len(hits) >= limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	s.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

// Reset drops all records and embeddings.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_embeddings`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_records`); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	return tx.Commit()
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	return s.db.Close()
}
