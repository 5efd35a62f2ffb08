package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	domain "github.com/roastline/api/internal/domain"
)

const (
	eventOrderCompleted = "order.completed"
	eventOrderRefunded  = "order.refunded"
)

// OrderEventMessage is the Pub/Sub payload for an order lifecycle transition.
// Downstream consumers (fulfilment dashboards, analytics) read this rather
// than Firestore.
type OrderEventMessage struct {
	EventID         string `json:"eventId"`
	Event           string `json:"event"`
	PaymentIntentID string `json:"paymentIntentId"`
	Total           int64  `json:"total"`
	Currency        string `json:"currency"`
	ItemCount       int    `json:"itemCount"`
	CustomerEmail   string `json:"customerEmail,omitempty"`
	CompletedAt     string `json:"completedAt,omitempty"`
	RefundedAt      string `json:"refundedAt,omitempty"`
}

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic.
// Event ids are ULIDs so consumers can deduplicate redeliveries.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	clock   func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
		clock:   time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// PublishOrderCompleted enqueues an order-completed message on the topic.
func (p *PubSubOrderPublisher) PublishOrderCompleted(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, eventOrderCompleted, order)
}

// PublishOrderRefunded enqueues an order-refunded message on the topic.
func (p *PubSubOrderPublisher) PublishOrderRefunded(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, eventOrderRefunded, order)
}

func (p *PubSubOrderPublisher) publish(ctx context.Context, event string, order domain.Order) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	message := OrderEventMessage{
		EventID:         p.nextEventID(),
		Event:           event,
		PaymentIntentID: order.PaymentIntentID,
		Total:           order.Total,
		Currency:        order.Currency,
		ItemCount:       len(order.Items),
	}
	if order.Client != nil {
		message.CustomerEmail = order.Client.Email
	}
	if order.CompletedAt != nil {
		message.CompletedAt = order.CompletedAt.UTC().Format(time.RFC3339)
	}
	if order.RefundedAt != nil {
		message.RefundedAt = order.RefundedAt.UTC().Format(time.RFC3339)
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := map[string]string{
		"event":   event,
		"eventId": message.EventID,
	}
	if id := strings.TrimSpace(order.PaymentIntentID); id != "" {
		attrs["paymentIntentId"] = id
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *PubSubOrderPublisher) nextEventID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(p.clock()), p.entropy).String()
}
