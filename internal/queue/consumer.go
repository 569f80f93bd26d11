package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/model"
    "github.com/openlodge/reservations/internal/service"
)

const paymentQueueName = "payment.succeeded"

// Confirmer is the slice of the reservation service the consumer drives.
type Confirmer interface {
    Confirm(ctx context.Context, reservationID, attendeeID string) ([]model.ReservationHold, error)
}

// StartPaymentConsumer connects to RabbitMQ, declares the
// payment.succeeded queue (durable), and confirms the referenced
// reservation for each message.  The function runs a reconnect loop with
// exponential backoff until ctx is cancelled; it is intended to run in
// its own goroutine.
//
// Acknowledgement policy: a transient store failure nacks with requeue
// so the payment signal is not lost; every other outcome acks, because
// redelivering a message that hit a terminal state (expired, conflict,
// unknown reservation) can never succeed and would loop forever.
func StartPaymentConsumer(ctx context.Context, confirmer Confirmer, log *zap.Logger) {
    backoff := time.Second
    for {
        select {
        case <-ctx.Done():
            return
        default:
        }
        conn, err := amqp.Dial(brokerURL())
        if err != nil {
            log.Warn("payment consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            select {
            case <-ctx.Done():
                return
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(ctx, conn, confirmer, log); err != nil {
            log.Warn("payment consume loop ended", zap.Error(err))
            _ = conn.Close()
            select {
            case <-ctx.Done():
                return
            case <-time.After(2 * time.Second):
            }
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, confirmer Confirmer, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(10, 0, false); err != nil {
        log.Warn("payment consumer set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(paymentQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(paymentQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return nil
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            requeue, err := handlePayment(ctx, confirmer, log, d.Body)
            if err != nil && requeue {
                _ = d.Nack(false, true)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// handlePayment maps one payment message to a confirm call.  The bool
// result reports whether a failure is worth redelivering.
func handlePayment(ctx context.Context, confirmer Confirmer, log *zap.Logger, body []byte) (bool, error) {
    var ev PaymentSucceededEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        log.Error("undecodable payment event", zap.Error(err))
        return false, err
    }
    holds, err := confirmer.Confirm(ctx, ev.ReservationID, ev.AttendeeID)
    if err != nil {
        switch {
        case errors.Is(err, service.ErrStoreUnavailable):
            log.Warn("payment confirm deferred, store unavailable",
                zap.String("reservation_id", ev.ReservationID), zap.Error(err))
            return true, err
        case errors.Is(err, service.ErrReservationExpired):
            // Payment landed after the hold lapsed.  The charge must be
            // refunded out of band; record everything needed to do so.
            log.Error("payment received for expired reservation",
                zap.String("reservation_id", ev.ReservationID),
                zap.String("payment_ref", ev.PaymentRef))
            return false, err
        default:
            log.Error("payment confirm failed",
                zap.String("reservation_id", ev.ReservationID),
                zap.String("payment_ref", ev.PaymentRef),
                zap.Error(err))
            return false, err
        }
    }

    unitIDs := make([]string, 0, len(holds))
    for _, h := range holds {
        unitIDs = append(unitIDs, h.UnitID)
    }
    _ = PublishReservationConfirmed(ctx, log, ReservationConfirmedEvent{
        ReservationID: ev.ReservationID,
        AttendeeID:    ev.AttendeeID,
        UnitIDs:       unitIDs,
        HoldCount:     len(holds),
        PaymentRef:    ev.PaymentRef,
        ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
    })
    return false, nil
}
