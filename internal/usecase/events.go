package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
)

// publishEvent emits ev after commit. A failed publish never undoes the state change.
func publishEvent(ctx context.Context, pub adapter.EventPublisher, log *zerolog.Logger, typ string, payload any, at time.Time) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, adapter.Event{Type: typ, OccurredAt: at, Payload: payload}); err != nil {
		log.Warn().Err(err).Str("event", typ).Msg("failed to publish event")
	}
}
