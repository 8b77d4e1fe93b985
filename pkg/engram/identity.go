package engram

import (
	"context"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/dotdir"
)

// SynthesizeIdentity distills the session's memories into a first-person
// identity sketch and caches it for injection into later searches. The
// sketch is also snapshotted to disk when a snapshot manager is configured,
// so a restart does not need a reasoner call before its first recall.
func (m *Memory) SynthesizeIdentity(ctx context.Context, session Session) (string, error) {
	if err := session.Validate(); err != nil {
		return "", err
	}

	items, err := m.GetAll(ctx, session, 0)
	if err != nil {
		return "", err
	}

	memories := make([]string, 0, len(items))
	for _, item := range items {
		if item.Text != "" {
			memories = append(memories, item.Text)
		}
	}

	identity := m.persona.Synthesize(ctx, memories)

	m.identityMu.Lock()
	m.identity = identity
	m.identityMu.Unlock()

	if m.snapshots != nil {
		snapshot := &dotdir.IdentitySnapshot{
			Identity:      identity,
			SynthesizedAt: m.now().UTC(),
			MemoryCount:   len(memories),
		}
		if err := m.snapshots.SaveIdentity(snapshot, m.snapshotDir); err != nil {
			m.logger.Warn("saving identity snapshot failed", zap.Error(err))
		}
	}

	return identity, nil
}

// Identity returns the last synthesized identity sketch, or "".
func (m *Memory) Identity() string {
	m.identityMu.RLock()
	defer m.identityMu.RUnlock()
	return m.identity
}

// restoreIdentity loads the cached identity snapshot at construction.
func (m *Memory) restoreIdentity() {
	if m.snapshots == nil {
		return
	}

	snapshot, err := m.snapshots.LoadIdentity(m.snapshotDir)
	if err != nil {
		m.logger.Warn("loading identity snapshot failed", zap.Error(err))
		return
	}
	if snapshot == nil {
		return
	}

	m.identityMu.Lock()
	m.identity = snapshot.Identity
	m.identityMu.Unlock()
}
