package pulse

import "context"

// Publisher publishes memory lifecycle events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
