package adapter

import (
	"context"
	"time"
)

const (
	EventSubscriptionGranted = "subscription.granted"
	EventSubscriptionRevoked = "subscription.revoked"
	EventDemoGranted         = "demo.granted"
	EventPaymentSucceeded    = "payment.succeeded"
	EventPaymentFailed       = "payment.failed"
)

type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// EventPublisher emits domain events after the state change is committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
