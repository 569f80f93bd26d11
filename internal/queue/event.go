// Package queue defines message payloads exchanged over the message broker.
package queue

// PaymentSucceededEvent is the payment processor's confirmation signal.
// It carries enough identifying information to map the charge back to a
// reservation; the payment protocol itself is the processor's business.
type PaymentSucceededEvent struct {
    ReservationID string `json:"reservation_id"`
    AttendeeID    string `json:"attendee_id"`
    PaymentRef    string `json:"payment_ref"`
    AmountCents   uint64 `json:"amount_cents"`
    PaidAt        string `json:"paid_at"`
}

// ReservationConfirmedEvent is published after a reservation's holds are
// all marked sold.  It contains enough information for downstream
// consumers (badge printing, dining counts, notifications) to act
// without querying the primary database.
type ReservationConfirmedEvent struct {
    ReservationID string   `json:"reservation_id"`
    AttendeeID    string   `json:"attendee_id"`
    UnitIDs       []string `json:"unit_ids"`
    HoldCount     int      `json:"hold_count"`
    PaymentRef    string   `json:"payment_ref,omitempty"`
    ConfirmedAt   string   `json:"confirmed_at"`
}
