// Package notify publishes traffic index updates to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/trafficpulse/trafficpulse/internal/traffic"
)

const (
	// EventSource identifies this service as the event producer.
	EventSource = "trafficpulse"

	// EventIndexUpdated is the event type for a freshly computed index.
	EventIndexUpdated = "traffic.index.updated"

	// DefaultTopic is used when no topic is configured.
	DefaultTopic = "traffic.index.updated"
)

// Envelope wraps every published payload in a CloudEvents-style structure.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// IndexUpdated is the payload announcing a new snapshot.
type IndexUpdated struct {
	Index          int       `json:"index"`
	AvgIncreasePct int       `json:"avgIncreasePct"`
	OKRoutes       int       `json:"okRoutes"`
	FailedRoutes   int       `json:"failedRoutes"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewIndexUpdated builds the payload for a snapshot.
func NewIndexUpdated(s *traffic.Snapshot) IndexUpdated {
	ok, failed := s.Counts()
	return IndexUpdated{
		Index:          s.Index,
		AvgIncreasePct: s.AvgIncreasePct,
		OKRoutes:       ok,
		FailedRoutes:   failed,
		UpdatedAt:      s.UpdatedAt,
	}
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig holds configuration for the Kafka publisher.
type PublisherConfig struct {
	// Brokers is the Kafka bootstrap list. Ignored when Writer is set.
	Brokers []string

	// Topic receives index updates (default: DefaultTopic).
	Topic string

	// Writer overrides the Kafka writer (optional).
	Writer MessageWriter

	// Logger for publisher operations.
	Logger zerolog.Logger
}

// Publisher sends IndexUpdated events to a Kafka topic.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger zerolog.Logger
}

// NewPublisher creates a new publisher.
func NewPublisher(cfg PublisherConfig) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := cfg.Writer
	if writer == nil {
		writer = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		}
	}

	return &Publisher{
		writer: writer,
		topic:  topic,
		logger: cfg.Logger,
	}
}

// PublishSnapshot publishes an IndexUpdated event for the snapshot.
func (p *Publisher) PublishSnapshot(ctx context.Context, s *traffic.Snapshot) error {
	data, err := json.Marshal(NewIndexUpdated(s))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Source:          EventSource,
		Type:            EventIndexUpdated,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(EventIndexUpdated),
		Value: value,
		Time:  env.Time,
		Headers: []kafka.Header{
			{Key: "ce_type", Value: []byte(EventIndexUpdated)},
			{Key: "ce_id", Value: []byte(env.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("event_id", env.ID).
		Int("index", s.Index).
		Msg("published index update")

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
