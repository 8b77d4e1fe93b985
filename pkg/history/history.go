// Package history defines the audit trail contract. Every mutation of a
// memory record appends an entry, including tombstones for deletions.
package history

import (
	"context"
	"time"
)

// Event names recorded in the audit trail.
const (
	EventAdd    = "ADD"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Entry is one audit record for a memory mutation.
type Entry struct {
	ID            string    `json:"id"`
	MemoryID      string    `json:"memory_id"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	Event         string    `json:"event"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
	IsDeleted     bool      `json:"is_deleted"`
	ActorID       string    `json:"actor_id,omitempty"`
	Role          string    `json:"role,omitempty"`
}

// Log is the collaborator contract for the audit trail.
type Log interface {
	// Append records a mutation.
	Append(ctx context.Context, entry Entry) error

	// List returns entries for a memory, oldest first.
	List(ctx context.Context, memoryID string) ([]Entry, error)

	// Reset drops the whole trail.
	Reset(ctx context.Context) error

	Close() error
}
