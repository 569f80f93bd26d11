package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/openlodge/reservations/internal/model"
)

// LedgerRepo provides data access to the reservation_holds table.  Every
// status transition is guarded on the row's current status in the WHERE
// clause, so a confirm racing an expiry sweep resolves inside the
// database: exactly one of them wins and the loser sees zero rows
// affected.  All timestamps are stored and compared in UTC.
type LedgerRepo struct {
    db *sql.DB
}

// NewLedgerRepo returns a new LedgerRepo bound to the provided database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// CreateHolds inserts one reservation_holds row per unit instance in a
// single statement.  All rows share the reservation ID and expiry the
// caller supplies.  Passing an empty slice has no effect and returns nil.
func (r *LedgerRepo) CreateHolds(ctx context.Context, holds []model.ReservationHold) error {
    if len(holds) == 0 {
        return nil
    }
    query := `INSERT INTO reservation_holds (reservation_id, unit_id, status, expires_at) VALUES `
    args := make([]interface{}, 0, len(holds)*4)
    for i, h := range holds {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, h.ReservationID, h.UnitID, h.Status, h.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
    }
    _, err := r.db.ExecContext(ctx, query, args...)
    return err
}

// HoldsByReservation returns every ledger row sharing the reservation ID,
// ordered by primary key for deterministic output.  An unknown
// reservation returns an empty slice and nil error; the service layer
// decides whether that is a not-found condition.
func (r *LedgerRepo) HoldsByReservation(ctx context.Context, reservationID string) ([]model.ReservationHold, error) {
    const q = `SELECT id, reservation_id, unit_id, attendee_id, status, expires_at, created_at, updated_at
               FROM reservation_holds WHERE reservation_id = ? ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanHolds(rows)
}

// MarkSold transitions a single hold from RESERVED to SOLD and attaches
// the attendee.  It reports whether the guarded update actually applied;
// false means another transition won the race and the caller must treat
// the pairing with the capacity counters as broken.
func (r *LedgerRepo) MarkSold(ctx context.Context, holdID uint64, attendeeID string) (bool, error) {
    const q = `UPDATE reservation_holds
               SET status = 'SOLD', attendee_id = ?
               WHERE id = ? AND status = 'RESERVED'`
    res, err := r.db.ExecContext(ctx, q, attendeeID, holdID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// MarkCancelled transitions a single hold from RESERVED to CANCELLED.
// Rows already in a terminal state are left alone and reported as false,
// which is what makes cancel idempotent per row.
func (r *LedgerRepo) MarkCancelled(ctx context.Context, holdID uint64) (bool, error) {
    const q = `UPDATE reservation_holds
               SET status = 'CANCELLED'
               WHERE id = ? AND status = 'RESERVED'`
    res, err := r.db.ExecContext(ctx, q, holdID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// MarkExpired transitions a single hold from RESERVED to EXPIRED.  The
// status guard makes the reclaimer skip holds that a concurrent confirm
// already moved out of RESERVED.
func (r *LedgerRepo) MarkExpired(ctx context.Context, holdID uint64) (bool, error) {
    const q = `UPDATE reservation_holds
               SET status = 'EXPIRED'
               WHERE id = ? AND status = 'RESERVED'`
    res, err := r.db.ExecContext(ctx, q, holdID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// FindDue returns up to limit holds that are still RESERVED but whose
// expiry has passed at the given instant.  The reclaimer processes each
// returned hold individually with MarkExpired so the guard, not this
// read, decides the outcome.
func (r *LedgerRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.ReservationHold, error) {
    const q = `SELECT id, reservation_id, unit_id, attendee_id, status, expires_at, created_at, updated_at
               FROM reservation_holds
               WHERE status = 'RESERVED' AND expires_at <= ?
               ORDER BY expires_at
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanHolds(rows)
}

// scanHolds reads reservation_holds rows into models, normalising the
// nullable attendee column.
func scanHolds(rows *sql.Rows) ([]model.ReservationHold, error) {
    holds := make([]model.ReservationHold, 0)
    for rows.Next() {
        var h model.ReservationHold
        var attendee sql.NullString
        if err := rows.Scan(&h.ID, &h.ReservationID, &h.UnitID, &attendee,
            &h.Status, &h.ExpiresAt, &h.CreatedAt, &h.UpdatedAt); err != nil {
            return nil, err
        }
        if attendee.Valid {
            a := attendee.String
            h.AttendeeID = &a
        }
        holds = append(holds, h)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return holds, nil
}
