// Package mock provides a scripted reasoner for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/parchmentco/engram/pkg/reasoner"
)

// Reasoner replays scripted responses in order and records every request.
type Reasoner struct {
	mu sync.Mutex

	// Responses are returned one per Generate call. When exhausted,
	// Generate returns Fallback.
	Responses []string

	// Fallback is returned once Responses run out.
	Fallback string

	// Err, when set, fails every Generate call.
	Err error

	// Requests records the conversations passed to Generate.
	Requests [][]reasoner.Message

	calls int
}

// NewReasoner creates an empty mock.
func NewReasoner(responses ...string) *Reasoner {
	return &Reasoner{Responses: responses}
}

// Generate returns the next scripted response.
func (m *Reasoner) Generate(_ context.Context, msgs []reasoner.Message, _ *reasoner.Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]reasoner.Message, len(msgs))
	copy(copied, msgs)
	m.Requests = append(m.Requests, copied)

	if m.Err != nil {
		return "", fmt.Errorf("%w: %v", reasoner.ErrReasoner, m.Err)
	}

	if m.calls < len(m.Responses) {
		resp := m.Responses[m.calls]
		m.calls++
		return resp, nil
	}

	return m.Fallback, nil
}

// CallCount reports how many times Generate ran.
func (m *Reasoner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Close is a no-op.
func (m *Reasoner) Close() error {
	return nil
}

var _ reasoner.Reasoner = (*Reasoner)(nil)
