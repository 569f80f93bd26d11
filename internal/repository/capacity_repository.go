package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/openlodge/reservations/internal/model"
)

// CapacityRepo provides the atomic counter operations over the
// capacity_units table.  Every mutation is a single conditional UPDATE
// whose WHERE clause re-checks the capacity invariant inside the
// database, so concurrent callers can never oversell a unit.  The
// application layer must never read counters and write them back.
type CapacityRepo struct {
    db *sql.DB
}

// NewCapacityRepo returns a new CapacityRepo bound to the given database.
func NewCapacityRepo(db *sql.DB) *CapacityRepo { return &CapacityRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span the ledger and other tables.
func (r *CapacityRepo) DB() *sql.DB { return r.db }

// Reserve atomically increments reserved_count by one iff the unit still
// has headroom.  It returns (false, nil) when the unit is sold out at
// transaction time; that is a normal negative result, not an error.  A
// missing unit returns ErrUnitNotFound so callers can tell "unknown unit"
// from "sold out".
func (r *CapacityRepo) Reserve(ctx context.Context, unitID string) (bool, error) {
    const q = `UPDATE capacity_units
               SET reserved_count = reserved_count + 1
               WHERE unit_id = ? AND reserved_count + sold_count < max_capacity`
    res, err := r.db.ExecContext(ctx, q, unitID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    if n > 0 {
        return true, nil
    }
    // Distinguish sold-out from a unit that does not exist at all.
    if err := r.exists(ctx, unitID); err != nil {
        return false, err
    }
    return false, nil
}

// ConfirmPurchase atomically moves one unit from reserved to sold.  It
// returns (false, nil) when reserved_count is already zero, which always
// indicates an upstream logic bug (double confirm or a lost pairing
// between the ledger and the counters) and must be surfaced loudly by
// the caller.
func (r *CapacityRepo) ConfirmPurchase(ctx context.Context, unitID string) (bool, error) {
    const q = `UPDATE capacity_units
               SET reserved_count = reserved_count - 1, sold_count = sold_count + 1
               WHERE unit_id = ? AND reserved_count > 0`
    res, err := r.db.ExecContext(ctx, q, unitID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    if n == 0 {
        if err := r.exists(ctx, unitID); err != nil {
            return false, err
        }
        return false, nil
    }
    return true, nil
}

// Release atomically returns one reserved unit to the pool.  Like
// ConfirmPurchase, a zero reserved_count yields (false, nil).
func (r *CapacityRepo) Release(ctx context.Context, unitID string) (bool, error) {
    const q = `UPDATE capacity_units
               SET reserved_count = reserved_count - 1
               WHERE unit_id = ? AND reserved_count > 0`
    res, err := r.db.ExecContext(ctx, q, unitID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    if n == 0 {
        if err := r.exists(ctx, unitID); err != nil {
            return false, err
        }
        return false, nil
    }
    return true, nil
}

// GetAvailability reads the current counters for a unit.  The available
// figure is derived here, never stored.
func (r *CapacityRepo) GetAvailability(ctx context.Context, unitID string) (model.Availability, error) {
    const q = `SELECT unit_id, max_capacity, reserved_count, sold_count
               FROM capacity_units WHERE unit_id = ?`
    var u model.CapacityUnit
    err := r.db.QueryRowContext(ctx, q, unitID).Scan(
        &u.UnitID, &u.MaxCapacity, &u.ReservedCount, &u.SoldCount,
    )
    if err == sql.ErrNoRows {
        return model.Availability{}, ErrUnitNotFound
    }
    if err != nil {
        return model.Availability{}, err
    }
    return model.Availability{
        UnitID:    u.UnitID,
        Max:       u.MaxCapacity,
        Reserved:  u.ReservedCount,
        Sold:      u.SoldCount,
        Available: u.Available(),
        Timestamp: time.Now().UTC(),
    }, nil
}

// CreateUnit inserts a new capacity_units row with zeroed counters.
// Duplicate unit IDs return ErrUnitExists.
func (r *CapacityRepo) CreateUnit(ctx context.Context, unit model.CapacityUnit) error {
    const q = `INSERT INTO capacity_units (unit_id, unit_type, name, max_capacity, reserved_count, sold_count)
               VALUES (?, ?, ?, ?, 0, 0)`
    _, err := r.db.ExecContext(ctx, q, unit.UnitID, unit.UnitType, unit.Name, unit.MaxCapacity)
    if err != nil {
        if strings.Contains(err.Error(), "Duplicate entry") {
            return ErrUnitExists
        }
        return err
    }
    return nil
}

// SetMaxCapacity changes a unit's ceiling.  The guard in the WHERE
// clause refuses to shrink max_capacity below the units already
// committed, keeping the invariant intact without a read-then-write.
func (r *CapacityRepo) SetMaxCapacity(ctx context.Context, unitID string, maxCapacity int) error {
    const q = `UPDATE capacity_units
               SET max_capacity = ?
               WHERE unit_id = ? AND reserved_count + sold_count <= ?`
    res, err := r.db.ExecContext(ctx, q, maxCapacity, unitID, maxCapacity)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        if err := r.exists(ctx, unitID); err != nil {
            return err
        }
        return ErrCapacityBelowCommitted
    }
    return nil
}

// ListUnits returns all sellable units ordered by type then name, for the
// admin panel listing.
func (r *CapacityRepo) ListUnits(ctx context.Context) ([]model.CapacityUnit, error) {
    const q = `SELECT unit_id, unit_type, name, max_capacity, reserved_count, sold_count, created_at, updated_at
               FROM capacity_units ORDER BY unit_type, name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    units := make([]model.CapacityUnit, 0)
    for rows.Next() {
        var u model.CapacityUnit
        if err := rows.Scan(&u.UnitID, &u.UnitType, &u.Name, &u.MaxCapacity,
            &u.ReservedCount, &u.SoldCount, &u.CreatedAt, &u.UpdatedAt); err != nil {
            return nil, err
        }
        units = append(units, u)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return units, nil
}

// exists resolves a zero-rows-affected outcome: nil when the unit row is
// present (the conditional guard failed), ErrUnitNotFound when it is not.
func (r *CapacityRepo) exists(ctx context.Context, unitID string) error {
    var one int
    err := r.db.QueryRowContext(ctx, `SELECT 1 FROM capacity_units WHERE unit_id = ?`, unitID).Scan(&one)
    if err == sql.ErrNoRows {
        return ErrUnitNotFound
    }
    return err
}
