// Package lifecycle applies reinforcement side effects to stored memories:
// importance bumps, access counters and pulse events. Kept separate from
// reconciliation so the planner stays pure.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/pulse"
	"github.com/parchmentco/engram/pkg/vector"
)

// ReinforceBoost is added to importance on each reinforcement.
const ReinforceBoost = 0.1

// Hook is the collaborator contract consumed by REINFORCE actions.
type Hook interface {
	// Reinforce bumps an existing record's importance and access metadata.
	Reinforce(ctx context.Context, id string) error

	// SetImportance clamps and writes an explicit importance score.
	SetImportance(ctx context.Context, id string, score float64) error
}

// StoreHook implements Hook against the vector store, emitting a pulse
// event and feeding the resonance buffer on every reinforcement.
type StoreHook struct {
	store     vector.Store
	publisher pulse.Publisher
	buffer    *pulse.ResonanceBuffer
	logger    *zap.Logger
	now       func() time.Time
}

// NewStoreHook creates a hook. Publisher and buffer may be nil.
func NewStoreHook(store vector.Store, publisher pulse.Publisher, buffer *pulse.ResonanceBuffer, logger *zap.Logger) *StoreHook {
	return &StoreHook{
		store:     store,
		publisher: publisher,
		buffer:    buffer,
		logger:    logger,
		now:       time.Now,
	}
}

// Reinforce increments the record's reinforcement counter, boosts its
// importance and refreshes the access timestamp.
func (h *StoreHook) Reinforce(ctx context.Context, id string) error {
	rec, err := h.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading record %s for reinforcement: %w", id, err)
	}

	importance := clamp(payloadFloat(rec.Payload, vector.PayloadImportance, 1.0) + ReinforceBoost)
	count := payloadInt(rec.Payload, vector.PayloadReinforceCount) + 1

	rec.Payload[vector.PayloadImportance] = importance
	rec.Payload[vector.PayloadReinforceCount] = count
	rec.Payload[vector.PayloadLastAccessedAt] = h.now().UTC().Format(time.RFC3339)

	if err := h.store.Update(ctx, vector.Record{ID: id, Payload: rec.Payload}); err != nil {
		return fmt.Errorf("reinforcing record %s: %w", id, err)
	}

	h.logger.Debug("reinforced memory",
		zap.String("memory_id", id),
		zap.Float64("importance", importance),
		zap.Int("reinforce_count", count),
	)

	h.emit(ctx, rec, importance, count)

	return nil
}

// SetImportance writes an explicit importance score, clamped to [0,1].
func (h *StoreHook) SetImportance(ctx context.Context, id string, score float64) error {
	rec, err := h.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading record %s: %w", id, err)
	}

	rec.Payload[vector.PayloadImportance] = clamp(score)

	if err := h.store.Update(ctx, vector.Record{ID: id, Payload: rec.Payload}); err != nil {
		return fmt.Errorf("setting importance on %s: %w", id, err)
	}

	return nil
}

// emit publishes the reinforcement event. Best-effort: a failing publisher
// never fails the reinforcement itself.
func (h *StoreHook) emit(ctx context.Context, rec *vector.Record, importance float64, count int) {
	event := pulse.Event{
		SchemaVersion: pulse.SchemaVersionV1,
		EventType:     pulse.EventTypeReinforced,
		EventID:       uuid.NewString(),
		EmittedAt:     h.now().UTC(),
		Source: pulse.Source{
			UserID:  payloadString(rec.Payload, vector.PayloadUserID),
			AgentID: payloadString(rec.Payload, vector.PayloadAgentID),
			RunID:   payloadString(rec.Payload, vector.PayloadRunID),
		},
		MemoryID:       rec.ID,
		Text:           rec.Text(),
		Importance:     importance,
		ReinforceCount: count,
	}

	if h.buffer != nil {
		h.buffer.Absorb(event)
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, &event); err != nil {
			h.logger.Warn("failed to publish reinforcement event",
				zap.String("memory_id", rec.ID),
				zap.Error(err),
			)
		}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func payloadFloat(p map[string]any, key string, fallback float64) float64 {
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
		return fallback
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

func payloadString(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

var _ Hook = (*StoreHook)(nil)
