package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Event types published on the domain topic.
const (
	EventOrderCreated     = "order.created"
	EventOrderConfirmed   = "order.confirmed"
	EventOrderPaid        = "order.paid"
	EventOrderDelivered   = "order.delivered"
	EventOrderCancelled   = "order.cancelled"
	EventNumberDisconnect = "number.disconnected"
	EventInvoiceGenerated = "invoice.generated"
	EventWalletEntry      = "wallet.transaction"
)

// Event is the envelope for every domain message.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PublishEvent wraps payload in an Event and publishes it under key.
func PublishEvent(ctx context.Context, client Client, eventType, key string, occurredAt time.Time, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(Event{Type: eventType, OccurredAt: occurredAt, Payload: body})
	if err != nil {
		return err
	}
	return client.Publish(ctx, []byte(key), value, Header{Key: HeaderEventType, Value: eventType})
}

// DecodeEvent parses a message value into an Event.
func DecodeEvent(msg Message) (Event, error) {
	var ev Event
	err := json.Unmarshal(msg.Value, &ev)
	return ev, err
}
