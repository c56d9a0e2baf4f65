package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

const (
	// StreamName is the name of the community events stream.
	StreamName = "COMMUNITY"

	// SubjectPrefix is the prefix for all community subjects.
	SubjectPrefix = "community"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream creates or updates the community stream.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	_, err := m.client.JetStream().CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Community domain events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject of an event about subjectID.
func EventSubject(eventType model.EventType, subjectID string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, eventType, subjectToken(subjectID))
}

// EventFilter matches every event of one type.
func EventFilter(eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, eventType)
}

// subjectToken makes an id safe to use as a single subject token.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

// Publish publishes a domain event to JetStream. The event id doubles as
// the JetStream message id so retried publishes are deduplicated.
func (m *StreamManager) Publish(ctx context.Context, event *model.Event) error {
	if event.ID == "" {
		event.ID = uuid.Must(uuid.NewV7()).String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.Type, event.SubjectID), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	event.Sequence = ack.Sequence
	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
	return nil
}

// EventHandler processes one delivered event. A returned error redelivers it.
type EventHandler func(ctx context.Context, event *model.Event) error

// Consume attaches a durable consumer for eventType and dispatches every
// delivery to handle until ctx is done.
func (m *StreamManager) Consume(ctx context.Context, durable string, eventType model.EventType, handle EventHandler) (jetstream.ConsumeContext, error) {
	consumer, err := m.client.JetStream().CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: EventFilter(eventType),
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	log := m.client.logger.With(zap.String("consumer", durable))
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var event model.Event
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			log.Warn("dropping malformed event", zap.String("subject", msg.Subject()), zap.Error(err))
			_ = msg.Term()
			return
		}
		if meta, err := msg.Metadata(); err == nil {
			event.Sequence = meta.Sequence.Stream
		}
		if err := handle(ctx, &event); err != nil {
			log.Warn("event handler failed", zap.String("event_id", event.ID), zap.Error(err))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()
	return cc, nil
}
