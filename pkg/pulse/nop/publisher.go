// Package nop provides a no-op pulse publisher used for tests and
// disabled mode.
package nop

import (
	"context"

	"github.com/parchmentco/engram/pkg/pulse"
)

// Publisher discards events after validating them.
type Publisher struct{}

// NewPublisher creates a new no-op pulse publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish validates input and otherwise does nothing.
func (p *Publisher) Publish(_ context.Context, event *pulse.Event) error {
	if event == nil {
		return pulse.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

var _ pulse.Publisher = (*Publisher)(nil)
