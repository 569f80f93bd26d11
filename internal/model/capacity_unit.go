package model

import "time"

// UnitType classifies a sellable unit.  Every unit belongs to exactly one
// type; the type has no influence on capacity arithmetic and exists for
// reporting and admin listings.
type UnitType string

const (
    UnitTypeTicket  UnitType = "TICKET"  // an event ticket type (e.g. banquet seat)
    UnitTypePackage UnitType = "PACKAGE" // a multi-event package slot
    UnitTypeVAS     UnitType = "VAS"     // a value-added service item (regalia, parking, ...)
)

// CapacityUnit mirrors the capacity_units table.  It is the single shared
// mutable resource of the system: reserved_count and sold_count are only
// ever changed through atomic conditional updates, never via read-modify-
// write from application code.
//
// Invariant: ReservedCount + SoldCount <= MaxCapacity at all times.
type CapacityUnit struct {
    UnitID        string    // capacity_units.unit_id (opaque key)
    UnitType      UnitType  // capacity_units.unit_type
    Name          string    // capacity_units.name (display label)
    MaxCapacity   int       // capacity_units.max_capacity
    ReservedCount int       // capacity_units.reserved_count
    SoldCount     int       // capacity_units.sold_count
    CreatedAt     time.Time // capacity_units.created_at
    UpdatedAt     time.Time // capacity_units.updated_at
}

// Available derives the sellable remainder.  It is never stored.
func (u CapacityUnit) Available() int {
    avail := u.MaxCapacity - u.ReservedCount - u.SoldCount
    if avail < 0 {
        return 0
    }
    return avail
}

// Availability is the read model returned to clients and published to
// subscribers.  Timestamp orders snapshots delivered at-least-once over
// the broadcast channel: the newer timestamp always wins.
type Availability struct {
    UnitID    string    `json:"unit_id"`
    Max       int       `json:"max"`
    Reserved  int       `json:"reserved"`
    Sold      int       `json:"sold"`
    Available int       `json:"available"`
    Timestamp time.Time `json:"timestamp"`
}
