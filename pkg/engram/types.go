package engram

import (
	"github.com/parchmentco/engram/pkg/graph"
	"github.com/parchmentco/engram/pkg/pulse"
	"github.com/parchmentco/engram/pkg/recollect"
	"github.com/parchmentco/engram/pkg/vector"
)

// Session scopes every memory operation to its owner. At least one of
// UserID, AgentID or RunID must be set.
type Session struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`

	// ActorID attributes mutations in the audit trail. Optional.
	ActorID string `json:"actor_id,omitempty"`
}

// Validate checks that the session carries at least one scoping identifier.
func (s Session) Validate() error {
	if s.UserID == "" && s.AgentID == "" && s.RunID == "" {
		return ErrMissingScope
	}
	return nil
}

// Filters returns the session's non-empty identifiers as vector store
// filters.
func (s Session) Filters() vector.Filters {
	f := vector.Filters{}
	if s.UserID != "" {
		f[vector.PayloadUserID] = s.UserID
	}
	if s.AgentID != "" {
		f[vector.PayloadAgentID] = s.AgentID
	}
	if s.RunID != "" {
		f[vector.PayloadRunID] = s.RunID
	}
	return f
}

// GraphFilters returns the session scope as graph store filters.
func (s Session) GraphFilters() graph.Filters {
	f := graph.Filters{}
	if s.UserID != "" {
		f["user_id"] = s.UserID
	}
	if s.AgentID != "" {
		f["agent_id"] = s.AgentID
	}
	if s.RunID != "" {
		f["run_id"] = s.RunID
	}
	return f
}

// AddOptions tunes one Add call.
type AddOptions struct {
	// Raw stores the messages verbatim, skipping fact extraction and
	// reconciliation entirely.
	Raw bool

	// Procedural summarizes the whole conversation into a single
	// procedural memory record instead of extracting atomic facts.
	Procedural bool

	// Metadata is caller metadata merged into every created record's
	// payload. Keys the core owns (data, hash, timestamps, scoping) cannot
	// be overridden.
	Metadata map[string]any
}

// Mutation describes one persisted change produced by an Add call.
type Mutation struct {
	ID           string `json:"id"`
	Text         string `json:"memory"`
	Event        string `json:"event"`
	PreviousText string `json:"previous_memory,omitempty"`
}

// AddResult is the merged outcome of the vector and graph branches of one
// Add call.
type AddResult struct {
	Results      []Mutation          `json:"results"`
	Associations []graph.Association `json:"relations,omitempty"`
}

// SearchOptions tunes one Search call.
type SearchOptions struct {
	// Limit caps the ranked results. Non-positive uses DefaultSearchLimit.
	Limit int

	// Threshold drops hits scoring below it before ranking, when non-nil.
	Threshold *float64
}

// SearchResult is a ranked, graph-expanded recall response. The identity
// and resonance fields are best-effort enrichment and may be empty.
type SearchResult struct {
	Results      []recollect.Ranked  `json:"results"`
	Associations []graph.Association `json:"relations,omitempty"`

	// PersonaIdentity is the agent's synthesized identity sketch.
	PersonaIdentity string `json:"persona_identity,omitempty"`

	// Resonance is what the session keeps reinforcing lately.
	Resonance []pulse.Event `json:"resonance,omitempty"`
}

// Item is one stored memory with its scoping promoted out of the payload.
type Item struct {
	ID             string         `json:"id"`
	Text           string         `json:"memory"`
	Hash           string         `json:"hash,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	ActorID        string         `json:"actor_id,omitempty"`
	Role           string         `json:"role,omitempty"`
	Importance     float64        `json:"importance_score,omitempty"`
	ReinforceCount int            `json:"reinforce_count,omitempty"`
	Flashbulb      bool           `json:"is_flashbulb,omitempty"`
	MemoryType     string         `json:"memory_type,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// promotedKeys are payload keys lifted onto Item fields; everything else
// passes through under Metadata.
var promotedKeys = map[string]struct{}{
	vector.PayloadData:           {},
	vector.PayloadHash:           {},
	vector.PayloadCreatedAt:      {},
	vector.PayloadUpdatedAt:      {},
	vector.PayloadUserID:         {},
	vector.PayloadAgentID:        {},
	vector.PayloadRunID:          {},
	vector.PayloadActorID:        {},
	vector.PayloadRole:           {},
	vector.PayloadImportance:     {},
	vector.PayloadReinforceCount: {},
	vector.PayloadLastAccessedAt: {},
	vector.PayloadIsFlashbulb:    {},
	vector.PayloadMemoryType:     {},
}

// itemFromRecord promotes the record's well-known payload keys onto the
// item and keeps the remainder as caller metadata.
func itemFromRecord(rec vector.Record) Item {
	item := Item{
		ID:             rec.ID,
		Text:           rec.Text(),
		Hash:           payloadString(rec.Payload, vector.PayloadHash),
		CreatedAt:      payloadString(rec.Payload, vector.PayloadCreatedAt),
		UpdatedAt:      payloadString(rec.Payload, vector.PayloadUpdatedAt),
		UserID:         payloadString(rec.Payload, vector.PayloadUserID),
		AgentID:        payloadString(rec.Payload, vector.PayloadAgentID),
		RunID:          payloadString(rec.Payload, vector.PayloadRunID),
		ActorID:        payloadString(rec.Payload, vector.PayloadActorID),
		Role:           payloadString(rec.Payload, vector.PayloadRole),
		Importance:     payloadFloat(rec.Payload, vector.PayloadImportance),
		ReinforceCount: payloadInt(rec.Payload, vector.PayloadReinforceCount),
		Flashbulb:      payloadBool(rec.Payload, vector.PayloadIsFlashbulb),
		MemoryType:     payloadString(rec.Payload, vector.PayloadMemoryType),
	}

	for k, v := range rec.Payload {
		if _, owned := promotedKeys[k]; owned {
			continue
		}
		if item.Metadata == nil {
			item.Metadata = map[string]any{}
		}
		item.Metadata[k] = v
	}

	return item
}

func payloadString(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func payloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func payloadBool(p map[string]any, key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// optionalFloat extracts a payload value as a *float64, nil when absent.
func optionalFloat(p map[string]any, key string) *float64 {
	if _, present := p[key]; !present {
		return nil
	}
	v := payloadFloat(p, key)
	return &v
}
