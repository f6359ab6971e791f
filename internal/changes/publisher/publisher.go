// Package publisher emits detected changes to a Kafka topic, one message per
// change record keyed by service key.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"tlwatch/internal/trustlist/models"
)

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Event is the message body. Status values are the verbatim URIs; the labels
// are for consumers that only display them.
type Event struct {
	EventID        string            `json:"event_id"`
	EventType      models.ChangeKind `json:"event_type"`
	RunID          int64             `json:"run_id"`
	ServiceKey     string            `json:"service_key"`
	CountryCode    string            `json:"country_code"`
	OldStatus      *string           `json:"old_status"`
	NewStatus      *string           `json:"new_status"`
	OldStatusLabel string            `json:"old_status_label,omitempty"`
	NewStatusLabel string            `json:"new_status_label,omitempty"`
	DetectedAt     time.Time         `json:"detected_at"`
}

type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	newID    func() uuid.UUID
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(p *Publisher) {
		if newID != nil {
			p.newID = newID
		}
	}
}

func New(producer Producer, topic string, opts ...Option) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	p := &Publisher{
		producer: producer,
		topic:    topic,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish sends every record and waits for acknowledgement. Delivery is at least
// once: a retried cycle republishes the same changes under new event ids.
func (p *Publisher) Publish(ctx context.Context, records []models.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]*kgo.Record, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(p.event(r))
		if err != nil {
			return fmt.Errorf("encode change %s %s: %w", r.Kind, r.ServiceKey, err)
		}
		msgs = append(msgs, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(r.ServiceKey),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(r.Kind)},
				{Key: "country_code", Value: []byte(r.CountryCode)},
			},
		})
	}

	if err := p.producer.ProduceSync(ctx, msgs...).FirstErr(); err != nil {
		return fmt.Errorf("publish %d changes: %w", len(msgs), err)
	}
	p.logger.InfoContext(ctx, "changes published", "topic", p.topic, "count", len(msgs))
	return nil
}

func (p *Publisher) event(r models.ChangeRecord) Event {
	e := Event{
		EventID:     p.newID().String(),
		EventType:   r.Kind,
		RunID:       r.RunID,
		ServiceKey:  r.ServiceKey,
		CountryCode: r.CountryCode,
		OldStatus:   r.OldValue,
		NewStatus:   r.NewValue,
		DetectedAt:  r.DetectedAt,
	}
	if r.OldValue != nil {
		e.OldStatusLabel = models.StatusLabel(*r.OldValue)
	}
	if r.NewValue != nil {
		e.NewStatusLabel = models.StatusLabel(*r.NewValue)
	}
	return e
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, admin *kadm.Client, topic string, partitions int32, replicationFactor int16) error {
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
