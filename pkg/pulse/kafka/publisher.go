// Package kafka publishes pulse events to a Kafka topic so downstream
// consumers (analytics, replication) can observe memory lifecycle changes.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/pulse"
)

// DefaultTopic is the Kafka topic used when none is configured.
const DefaultTopic = "engram.memory.events"

// Publisher writes events to Kafka, keyed by memory id so all events for a
// memory land on one partition in order.
type Publisher struct {
	writer *segmentio.Writer
	logger *zap.Logger
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers lists bootstrap addresses, e.g. ["localhost:9092"].
	Brokers []string

	// Topic defaults to DefaultTopic when empty.
	Topic string
}

// NewPublisher creates a Kafka-backed pulse publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &segmentio.Writer{
		Addr:                   segmentio.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &segmentio.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}

	logger.Info("created kafka pulse publisher",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{writer: writer, logger: logger}, nil
}

// Publish writes one event.
func (p *Publisher) Publish(ctx context.Context, event *pulse.Event) error {
	if event == nil {
		return pulse.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling pulse event %s: %w", event.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(event.MemoryID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing pulse event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published pulse event",
		zap.String("event_type", event.EventType),
		zap.String("memory_id", event.MemoryID),
	)

	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ pulse.Publisher = (*Publisher)(nil)
