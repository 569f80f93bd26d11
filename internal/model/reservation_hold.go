package model

import "time"

// HoldStatus enumerates the lifecycle of a single held unit instance.
// RESERVED is the only non-terminal state; a row never moves back out of
// SOLD, CANCELLED or EXPIRED.
type HoldStatus string

const (
    HoldStatusReserved  HoldStatus = "RESERVED"
    HoldStatusSold      HoldStatus = "SOLD"
    HoldStatusCancelled HoldStatus = "CANCELLED"
    HoldStatusExpired   HoldStatus = "EXPIRED"
)

// Terminal reports whether the status permits no further transitions.
func (s HoldStatus) Terminal() bool {
    return s == HoldStatusSold || s == HoldStatusCancelled || s == HoldStatusExpired
}

// ReservationHold mirrors the reservation_holds table.  One row is written
// per reserved unit instance; rows created by the same user action share a
// ReservationID.  Every lifecycle transition of a row is mirrored by
// exactly one compensating counter mutation on its capacity unit:
// reserve increments reserved_count, sold moves reserved_count to
// sold_count, cancel/expire decrement reserved_count.
type ReservationHold struct {
    ID            uint64     // reservation_holds.id
    ReservationID string     // reservation_holds.reservation_id (UUID, groups the batch)
    UnitID        string     // reservation_holds.unit_id
    AttendeeID    *string    // reservation_holds.attendee_id (set on confirm)
    Status        HoldStatus // reservation_holds.status
    ExpiresAt     time.Time  // reservation_holds.expires_at
    CreatedAt     time.Time  // reservation_holds.created_at
    UpdatedAt     time.Time  // reservation_holds.updated_at
}

// Expired reports whether the hold's soft timeout has passed at the given
// instant.  Expiry is enforced by status-guarded updates, not by this
// check alone.
func (h ReservationHold) Expired(now time.Time) bool {
    return !h.ExpiresAt.After(now)
}
