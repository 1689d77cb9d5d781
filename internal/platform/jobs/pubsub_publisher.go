package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/printhouse/orders-api/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)

type orderEventMessage struct {
	Type             string         `json:"type"`
	OrderID          string         `json:"orderId"`
	OrderNumber      int64          `json:"orderNumber"`
	PreviousStatusID *int           `json:"previousStatusId,omitempty"`
	StatusID         int            `json:"statusId"`
	ActorID          string         `json:"actorId,omitempty"`
	OccurredAt       time.Time      `json:"occurredAt"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent sends the event and waits for the server to acknowledge it.
// Messages are keyed by order id so subscribers with ordering enabled see one
// order's events in sequence.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(orderEventMessage{
		Type:             event.Type,
		OrderID:          event.OrderID,
		OrderNumber:      event.OrderNumber,
		PreviousStatusID: event.PreviousStatusID,
		StatusID:         event.StatusID,
		ActorID:          event.ActorID,
		OccurredAt:       event.OccurredAt.UTC(),
		Metadata:         event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "actorId", event.ActorID)
	if event.StatusID > 0 {
		attrs["statusId"] = strconv.Itoa(event.StatusID)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = strings.TrimSpace(event.OrderID)
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
