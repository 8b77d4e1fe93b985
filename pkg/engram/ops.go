package engram

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/history"
	"github.com/parchmentco/engram/pkg/reconcile"
)

// Get retrieves one memory by id.
func (m *Memory) Get(ctx context.Context, id string) (*Item, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting memory %s: %w", id, err)
	}

	item := itemFromRecord(*rec)
	return &item, nil
}

// GetAll lists every memory in scope, up to limit. A non-positive limit
// returns all.
func (m *Memory) GetAll(ctx context.Context, session Session, limit int) ([]Item, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	records, err := m.store.List(ctx, session.Filters(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, itemFromRecord(rec))
	}
	return items, nil
}

// Update overwrites a memory's text directly, outside reconciliation.
// Scoping and protected metadata carry forward; importance resets to 1.0.
func (m *Memory) Update(ctx context.Context, id, text string, session Session) (*Mutation, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty replacement text", ErrEmptyInput)
	}

	previous, err := m.updateRecord(ctx, id, text, session, nil)
	if err != nil {
		return nil, err
	}

	return &Mutation{
		ID:           id,
		Text:         text,
		Event:        string(reconcile.OpUpdate),
		PreviousText: previous,
	}, nil
}

// Delete tombstones one memory.
func (m *Memory) Delete(ctx context.Context, id string, session Session) error {
	_, err := m.deleteRecord(ctx, id, session)
	return err
}

// DeleteAll tombstones every memory in scope, including its graph
// associations. Per-record delete failures abort the sweep.
func (m *Memory) DeleteAll(ctx context.Context, session Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	records, err := m.store.List(ctx, session.Filters(), 0)
	if err != nil {
		return fmt.Errorf("listing memories for deletion: %w", err)
	}

	for _, rec := range records {
		if _, err := m.deleteRecord(ctx, rec.ID, session); err != nil {
			return err
		}
	}

	if m.graphEnabled {
		if err := m.graph.DeleteAll(ctx, session.GraphFilters()); err != nil {
			m.logger.Warn("deleting graph associations failed", zap.Error(err))
		}
	}

	return nil
}

// History returns the audit trail for one memory, oldest first.
func (m *Memory) History(ctx context.Context, memoryID string) ([]history.Entry, error) {
	entries, err := m.history.List(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("listing history for %s: %w", memoryID, err)
	}
	return entries, nil
}

// Reset drops every memory, the audit trail, all graph associations and
// the cached identity. The store and history errors are fatal; the rest
// degrade with a warning.
func (m *Memory) Reset(ctx context.Context) error {
	if err := m.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	if err := m.history.Reset(ctx); err != nil {
		return fmt.Errorf("resetting history: %w", err)
	}

	if m.graph != nil {
		if err := m.graph.DeleteAll(ctx, nil); err != nil {
			m.logger.Warn("resetting graph failed", zap.Error(err))
		}
	}

	m.identityMu.Lock()
	m.identity = ""
	m.identityMu.Unlock()

	if m.snapshots != nil {
		if err := m.snapshots.ClearIdentity(m.snapshotDir); err != nil {
			m.logger.Warn("clearing identity snapshot failed", zap.Error(err))
		}
	}

	m.logger.Info("memory reset")

	return nil
}
