// Package kafka provides a Kafka-backed eventstream publisher using kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/engram/pkg/eventstream"
)

// DefaultTopic is the topic mutation events are published to when none is configured.
const DefaultTopic = "engram.memory"

// Publisher implements eventstream.Publisher on top of a kafka-go Writer.
type Publisher struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is a comma-separated list of broker addresses.
	Brokers string

	// Topic is the topic to publish mutation events to.
	// Defaults to DefaultTopic if empty.
	Topic string
}

// NewPublisher creates a Kafka eventstream publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if c.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(strings.Split(c.Brokers, ",")...),
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	}

	logger.Info("kafka eventstream publisher initialized",
		zap.String("brokers", c.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishMutation writes the event to the configured topic, keyed by uid so
// mutations for one user land on one partition in order.
func (p *Publisher) PublishMutation(ctx context.Context, event *eventstream.MemoryMutatedEvent) error {
	if event == nil {
		return eventstream.ErrNilMutationEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling mutation event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.UID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing mutation event: %w", err)
	}

	p.logger.Debug("published mutation event",
		zap.String("event_id", event.EventID),
		zap.String("op", event.Op),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
