package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type EventType string

const (
	EventTypeSpaceCreated    EventType = "space_created"
	EventTypeSpaceDeleted    EventType = "space_deleted"
	EventTypeStreamAdded     EventType = "stream_added"
	EventTypeStreamUpvoted   EventType = "stream_upvoted"
	EventTypeStreamDownvoted EventType = "stream_downvoted"
	EventTypeStreamRemoved   EventType = "stream_removed"
	EventTypeQueueEmptied    EventType = "queue_emptied"
	EventTypeStreamAdvanced  EventType = "stream_advanced"
)

type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	SpaceID   string          `json:"space_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(t EventType, spaceID, userID string, payload interface{}) (Event, error) {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      t,
		SpaceID:   spaceID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal payload: %w", err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Publisher delivers domain events after the change they describe committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type KafkaClient struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
}

// NewKafkaClient writes asynchronously; delivery failures are logged from the
// writer's completion callback.
func NewKafkaClient(brokers []string, topic string, groupID string, log *zap.Logger) *KafkaClient {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("failed to deliver events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}

	return &KafkaClient{
		writer:  writer,
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
	}
}

// Publish keys messages by space so one space's events stay ordered.
func (k *KafkaClient) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.SpaceID),
		Value: value,
		Time:  ev.Timestamp,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ConsumeEvents reads from the consumer group until ctx ends. Undecodable
// messages are passed to onBad and skipped.
func (k *KafkaClient) ConsumeEvents(ctx context.Context, handler func(Event) error, onBad func(kafka.Message, error)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		Topic:       k.topic,
		GroupID:     k.groupID,
		StartOffset: kafka.LastOffset,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		event, err := Decode(msg.Value)
		if err != nil {
			if onBad != nil {
				onBad(msg, err)
			}
			continue
		}

		if err := handler(event); err != nil {
			return fmt.Errorf("failed to handle event: %w", err)
		}
	}
}

func Decode(value []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("event has no type")
	}
	return event, nil
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Emit builds and publishes an event. Failures are logged and never
// returned; the change the event describes has already committed.
func Emit(ctx context.Context, p Publisher, log *zap.Logger, t EventType, spaceID, userID string, payload interface{}) {
	ev, err := NewEvent(t, spaceID, userID, payload)
	if err == nil {
		err = p.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn("failed to publish event",
			zap.String("type", string(t)),
			zap.String("space_id", spaceID),
			zap.Error(err))
	}
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Event payload types

type StreamPayload struct {
	StreamID string `json:"stream_id"`
	Title    string `json:"title,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type VotePayload struct {
	StreamID string `json:"stream_id"`
	Upvotes  int64  `json:"upvotes"`
}

type QueueEmptiedPayload struct {
	Removed int64  `json:"removed"`
	Scope   string `json:"scope"`
}

type AdvancedPayload struct {
	StreamID string `json:"stream_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Previous string `json:"previous,omitempty"`
}
