// Package reclaim returns capacity held by expired, unconfirmed
// reservations to the pool.  The sweep runs on a fixed interval; expiry
// is a soft timeout, so the only thing standing between a late confirm
// and a sweep is the status guard on the ledger row, and exactly one of
// them wins.
package reclaim

import (
    "context"
    "time"

    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/clock"
    "github.com/openlodge/reservations/internal/model"
)

// Ledger is the slice of the reservation ledger the reclaimer needs.
type Ledger interface {
    FindDue(ctx context.Context, now time.Time, limit int) ([]model.ReservationHold, error)
    MarkExpired(ctx context.Context, holdID uint64) (bool, error)
}

// Capacity is the slice of the atomic counter ops the reclaimer needs.
type Capacity interface {
    Release(ctx context.Context, unitID string) (bool, error)
    GetAvailability(ctx context.Context, unitID string) (model.Availability, error)
}

// Broadcaster receives a fresh snapshot for every unit whose capacity a
// sweep released.
type Broadcaster interface {
    Publish(snapshot model.Availability)
}

// Reclaimer periodically expires due holds and releases their capacity.
type Reclaimer struct {
    ledger      Ledger
    capacity    Capacity
    broadcaster Broadcaster
    clk         clock.Clock
    log         *zap.Logger
    interval    time.Duration
    batchSize   int
}

// New constructs a Reclaimer.  broadcaster may be nil.
func New(ledger Ledger, capacity Capacity, broadcaster Broadcaster, clk clock.Clock, log *zap.Logger, interval time.Duration, batchSize int) *Reclaimer {
    if interval <= 0 {
        interval = time.Minute
    }
    if batchSize <= 0 {
        batchSize = 200
    }
    return &Reclaimer{
        ledger:      ledger,
        capacity:    capacity,
        broadcaster: broadcaster,
        clk:         clk,
        log:         log,
        interval:    interval,
        batchSize:   batchSize,
    }
}

// Run sweeps on the configured interval until ctx is cancelled.  It is
// intended to run in its own goroutine.
func (r *Reclaimer) Run(ctx context.Context) {
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if n, err := r.Sweep(ctx); err != nil {
                r.log.Warn("expiry sweep failed", zap.Error(err))
            } else if n > 0 {
                r.log.Info("expiry sweep released holds", zap.Int("released", n))
            }
        }
    }
}

// Sweep expires every due hold it can claim and releases the matching
// capacity.  It returns the number of holds it transitioned.  Holds that
// a concurrent confirm moved out of RESERVED first are skipped: the
// guarded MarkExpired reports that it did not apply and no counter is
// touched for them.
func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
    due, err := r.ledger.FindDue(ctx, r.clk.Now(), r.batchSize)
    if err != nil {
        return 0, err
    }
    released := 0
    touched := make(map[string]struct{})
    for _, h := range due {
        applied, err := r.ledger.MarkExpired(ctx, h.ID)
        if err != nil {
            r.log.Warn("could not expire hold", zap.Uint64("hold_id", h.ID), zap.Error(err))
            continue
        }
        if !applied {
            continue // confirm or cancel won the race
        }
        ok, err := r.capacity.Release(ctx, h.UnitID)
        if err != nil {
            r.log.Error("release failed for expired hold",
                zap.Uint64("hold_id", h.ID), zap.String("unit_id", h.UnitID), zap.Error(err))
            continue
        }
        if !ok {
            // The ledger row was RESERVED but the counter had nothing to
            // release: counts and ledger rows diverged upstream.
            r.log.Error("capacity and ledger disagree on expiry",
                zap.Uint64("hold_id", h.ID), zap.String("unit_id", h.UnitID))
            continue
        }
        released++
        touched[h.UnitID] = struct{}{}
    }
    if r.broadcaster != nil {
        for unitID := range touched {
            snap, err := r.capacity.GetAvailability(ctx, unitID)
            if err != nil {
                continue
            }
            r.broadcaster.Publish(snap)
        }
    }
    return released, nil
}
