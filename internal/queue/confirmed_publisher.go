package queue

import (
    "context"

    "go.uber.org/zap"
)

// ConfirmedPublisher adapts PublishReservationConfirmed to the
// handler-side EventPublisher interface.
type ConfirmedPublisher struct {
    Log *zap.Logger
}

// ReservationConfirmed publishes the event to the broker, best effort.
func (p *ConfirmedPublisher) ReservationConfirmed(ctx context.Context, event ReservationConfirmedEvent) error {
    return PublishReservationConfirmed(ctx, p.Log, event)
}
