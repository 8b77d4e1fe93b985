// Package nop provides a history.Log that discards everything, for callers
// that opt out of auditing.
package nop

import (
	"context"

	"github.com/parchmentco/engram/pkg/history"
)

// Log discards all entries.
type Log struct{}

// NewLog creates a discarding log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(context.Context, history.Entry) error { return nil }

func (l *Log) List(context.Context, string) ([]history.Entry, error) { return nil, nil }

func (l *Log) Reset(context.Context) error { return nil }

func (l *Log) Close() error { return nil }

var _ history.Log = (*Log)(nil)
