package notification

import (
	"context"
	"time"
)

type EventType string

const (
	TypeNewOrder    EventType = "NEW_ORDER"
	TypeOrderUpdate EventType = "ORDER_UPDATE"
)

// Event is a transient UI-freshness notification. The order ledger is the
// system of record; events are advisory and delivered at most once to
// currently-connected subscribers.
type Event struct {
	Channel   string    `json:"channel"`
	Type      EventType `json:"type"`
	OrderID   string    `json:"order_id"`
	Message   string    `json:"message"`
	EmittedAt time.Time `json:"emitted_at"`
}

func New(channel string, eventType EventType, orderID, message string) Event {
	return Event{
		Channel:   channel,
		Type:      eventType,
		OrderID:   orderID,
		Message:   message,
		EmittedAt: time.Now().UTC(),
	}
}

// Channel identifiers are derived deterministically so subscribers can
// self-select without a central registry.

func VendorChannel(vendorID string) string { return "vendor:" + vendorID }

func CustomerChannel(customerID string) string { return "customer:" + customerID }

// Publisher fans an event out to the listeners on its channel. Publishing
// never blocks order persistence; errors are advisory.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
