package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	identityFile = "identity.json"
)

// IdentitySnapshot is the persisted result of the last identity synthesis,
// cached so restarts do not have to re-run the reasoner before the first
// recall.
type IdentitySnapshot struct {
	// Identity is the synthesized first-person identity sketch.
	Identity string `json:"identity"`

	// SynthesizedAt is when the sketch was produced.
	SynthesizedAt time.Time `json:"synthesized_at"`

	// MemoryCount is how many memories fed the synthesis.
	MemoryCount int `json:"memory_count"`
}

// LoadIdentity loads the cached identity snapshot from .engram/identity.json.
// Returns nil, nil when no snapshot exists.
// If overrideDir is non-empty, it is used instead of the default ~/.engram/ location.
func (m *Manager) LoadIdentity(overrideDir string) (*IdentitySnapshot, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, identityFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading identity snapshot: %w", err)
	}

	snapshot := &IdentitySnapshot{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("parsing identity snapshot: %w", err)
	}

	return snapshot, nil
}

// SaveIdentity persists the identity snapshot to .engram/identity.json.
func (m *Manager) SaveIdentity(snapshot *IdentitySnapshot, overrideDir string) error {
	if snapshot == nil {
		return errors.New("cannot save nil identity snapshot")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling identity snapshot: %w", err)
	}

	path := filepath.Join(dir, identityFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing identity snapshot: %w", err)
	}

	return nil
}

// ClearIdentity removes the identity snapshot file.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearIdentity(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, identityFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing identity snapshot: %w", err)
	}

	return nil
}
