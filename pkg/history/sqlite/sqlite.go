// Package sqlite persists the audit trail in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_history (
	id             TEXT PRIMARY KEY,
	memory_id      TEXT NOT NULL,
	previous_value TEXT,
	new_value      TEXT,
	event          TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT,
	is_deleted     INTEGER NOT NULL DEFAULT 0,
	actor_id       TEXT,
	role           TEXT
);
CREATE INDEX IF NOT EXISTS idx_memory_history_memory_id ON memory_history(memory_id);
`

// Log implements history.Log on SQLite.
type Log struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLog opens (or creates) the history database at dbPath.
// Use ":memory:" for an ephemeral trail.
func NewLog(dbPath string, logger *zap.Logger) (*Log, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("history database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db at %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	logger.Debug("opened history log", zap.String("path", dbPath))

	return &Log{db: db, logger: logger}, nil
}

// Append records a mutation, assigning an id and timestamp when missing.
func (l *Log) Append(ctx context.Context, entry history.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var updatedAt any
	if !entry.UpdatedAt.IsZero() {
		updatedAt = entry.UpdatedAt.Format(time.RFC3339Nano)
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO memory_history
			(id, memory_id, previous_value, new_value, event, created_at, updated_at, is_deleted, actor_id, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.MemoryID,
		entry.PreviousValue,
		entry.NewValue,
		entry.Event,
		entry.CreatedAt.Format(time.RFC3339Nano),
		updatedAt,
		entry.IsDeleted,
		entry.ActorID,
		entry.Role,
	)
	if err != nil {
		return fmt.Errorf("appending history for %s: %w", entry.MemoryID, err)
	}

	return nil
}

// List returns entries for a memory, oldest first.
func (l *Log) List(ctx context.Context, memoryID string) ([]history.Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, memory_id, previous_value, new_value, event, created_at, updated_at, is_deleted, actor_id, role
		FROM memory_history
		WHERE memory_id = ?
		ORDER BY created_at ASC, id ASC`,
		memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history for %s: %w", memoryID, err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e          history.Entry
			createdAt  string
			updatedAt  sql.NullString
			prev, next sql.NullString
			actor      sql.NullString
			role       sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.MemoryID, &prev, &next, &e.Event, &createdAt, &updatedAt, &e.IsDeleted, &actor, &role); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		e.PreviousValue = prev.String
		e.NewValue = next.String
		e.ActorID = actor.String
		e.Role = role.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		if updatedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, updatedAt.String); err == nil {
				e.UpdatedAt = t
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Reset drops all entries.
func (l *Log) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM memory_history`); err != nil {
		return fmt.Errorf("resetting history: %w", err)
	}
	return nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

var _ history.Log = (*Log)(nil)
