package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"circle-go/internal/models"
)

// Relationship event types.
const (
	EventFriendRequestCreated  = "friend_request.created"
	EventFriendRequestAccepted = "friend_request.accepted"
)

// RelationshipEvent is the payload published after a friend-request
// transition commits.
type RelationshipEvent struct {
	Type        string    `json:"type"`
	RequestID   uint      `json:"requestId"`
	SenderID    uint      `json:"senderId"`
	RecipientID uint      `json:"recipientId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// PartitionKey keys events by the unordered pair, so every event about
// the same two users lands on one partition in commit order.
func (e RelationshipEvent) PartitionKey() []byte {
	low, high := models.CanonicalPair(e.SenderID, e.RecipientID)
	return []byte(fmt.Sprintf("%d:%d", low, high))
}

// EventPublisher publishes relationship events.
type EventPublisher interface {
	Publish(ctx context.Context, event RelationshipEvent) error
}

// RelationshipPublisher writes events as JSON to a single topic.
type RelationshipPublisher struct {
	producer MessageProducer
	topic    string
}

func NewRelationshipPublisher(producer MessageProducer, topic string) *RelationshipPublisher {
	return &RelationshipPublisher{producer: producer, topic: topic}
}

func (p *RelationshipPublisher) Publish(ctx context.Context, event RelationshipEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if err := p.producer.SendMessage(ctx, p.topic, event.PartitionKey(), payload); err != nil {
		return fmt.Errorf("publish %s event for request %d: %w", event.Type, event.RequestID, err)
	}
	return nil
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, RelationshipEvent) error { return nil }
