// Package pulse emits memory lifecycle events to an event stream backend
// and keeps a short resonance buffer of recent reinforcements for recall.
package pulse

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeStored is emitted when a new memory is created.
	EventTypeStored = "engram.memory.stored"

	// EventTypeReinforced is emitted when an incoming fact restates an
	// existing memory.
	EventTypeReinforced = "engram.memory.reinforced"

	// EventTypeFlashbulb is emitted when a memory is stored with flashbulb
	// salience.
	EventTypeFlashbulb = "engram.memory.flashbulb"

	// EventTypeForgotten is emitted when a memory is tombstoned.
	EventTypeForgotten = "engram.memory.forgotten"
)

// Event is a transport-neutral payload for a memory lifecycle change.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Source        Source    `json:"source"`

	MemoryID       string  `json:"memory_id"`
	Text           string  `json:"text,omitempty"`
	Importance     float64 `json:"importance,omitempty"`
	ReinforceCount int     `json:"reinforce_count,omitempty"`
}

// Source identifies the session that produced the event.
type Source struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}
