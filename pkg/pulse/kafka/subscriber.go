package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/pulse"
)

// Subscriber reads pulse events from a Kafka topic and hands them to a
// callback, typically Memory.Absorb. Malformed messages are logged and
// skipped so one bad payload cannot stall the consumer group.
type Subscriber struct {
	reader *segmentio.Reader
	logger *zap.Logger
}

// SubscriberConfig holds configuration for the Kafka subscriber.
type SubscriberConfig struct {
	// Brokers lists bootstrap addresses, e.g. ["localhost:9092"].
	Brokers []string

	// Topic defaults to DefaultTopic when empty.
	Topic string

	// GroupID names the consumer group. Required so offsets are tracked
	// across restarts.
	GroupID string
}

// NewSubscriber creates a Kafka-backed pulse subscriber.
func NewSubscriber(cfg SubscriberConfig, logger *zap.Logger) (*Subscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("a kafka consumer group id is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	reader := segmentio.NewReader(segmentio.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: time.Second,
	})

	logger.Info("created kafka pulse subscriber",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
		zap.String("group_id", cfg.GroupID),
	)

	return &Subscriber{reader: reader, logger: logger}, nil
}

// Run consumes events until the context is cancelled or the reader is
// closed, invoking handle for each decoded event.
func (s *Subscriber) Run(ctx context.Context, handle func(pulse.Event)) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading pulse event: %w", err)
		}

		var event pulse.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			s.logger.Warn("skipping malformed pulse event",
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
			continue
		}
		if event.SchemaVersion != pulse.SchemaVersionV1 {
			s.logger.Warn("skipping pulse event with unknown schema version",
				zap.Int("schema_version", event.SchemaVersion),
			)
			continue
		}

		handle(event)
	}
}

// Close shuts down the underlying reader, unblocking Run.
func (s *Subscriber) Close() error {
	return s.reader.Close()
}
