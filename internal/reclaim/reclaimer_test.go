package reclaim

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/clock"
    "github.com/openlodge/reservations/internal/model"
)

var sweepStart = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

type fakeLedger struct {
    mu      sync.Mutex
    holds   []model.ReservationHold
    findErr error
}

func (f *fakeLedger) FindDue(ctx context.Context, now time.Time, limit int) ([]model.ReservationHold, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.findErr != nil {
        return nil, f.findErr
    }
    out := make([]model.ReservationHold, 0)
    for _, h := range f.holds {
        if h.Status == model.HoldStatusReserved && !h.ExpiresAt.After(now) {
            out = append(out, h)
            if len(out) == limit {
                break
            }
        }
    }
    return out, nil
}

func (f *fakeLedger) MarkExpired(ctx context.Context, holdID uint64) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for i := range f.holds {
        if f.holds[i].ID != holdID {
            continue
        }
        if f.holds[i].Status != model.HoldStatusReserved {
            return false, nil
        }
        f.holds[i].Status = model.HoldStatusExpired
        return true, nil
    }
    return false, errors.New("hold not found")
}

func (f *fakeLedger) status(holdID uint64) model.HoldStatus {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, h := range f.holds {
        if h.ID == holdID {
            return h.Status
        }
    }
    return ""
}

type fakeCapacity struct {
    mu       sync.Mutex
    reserved map[string]int
    max      map[string]int
}

func newFakeCapacity(unitID string, reserved, max int) *fakeCapacity {
    return &fakeCapacity{
        reserved: map[string]int{unitID: reserved},
        max:      map[string]int{unitID: max},
    }
}

func (f *fakeCapacity) Release(ctx context.Context, unitID string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.reserved[unitID] <= 0 {
        return false, nil
    }
    f.reserved[unitID]--
    return true, nil
}

func (f *fakeCapacity) GetAvailability(ctx context.Context, unitID string) (model.Availability, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    return model.Availability{
        UnitID:    unitID,
        Max:       f.max[unitID],
        Reserved:  f.reserved[unitID],
        Available: f.max[unitID] - f.reserved[unitID],
        Timestamp: time.Now().UTC(),
    }, nil
}

type recordingBroadcaster struct {
    mu    sync.Mutex
    snaps []model.Availability
}

func (r *recordingBroadcaster) Publish(snapshot model.Availability) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.snaps = append(r.snaps, snapshot)
}

func hold(id uint64, unitID string, status model.HoldStatus, expiresAt time.Time) model.ReservationHold {
    return model.ReservationHold{
        ID:            id,
        ReservationID: "res-1",
        UnitID:        unitID,
        Status:        status,
        ExpiresAt:     expiresAt,
    }
}

func TestSweepReleasesDueHolds(t *testing.T) {
    t.Parallel()
    clk := clock.NewFixed(sweepStart)
    ledger := &fakeLedger{holds: []model.ReservationHold{
        hold(1, "banquet", model.HoldStatusReserved, sweepStart.Add(-time.Minute)),
        hold(2, "banquet", model.HoldStatusReserved, sweepStart.Add(-time.Minute)),
        hold(3, "banquet", model.HoldStatusReserved, sweepStart.Add(10*time.Minute)), // not due
    }}
    capacity := newFakeCapacity("banquet", 3, 10)
    rec := &recordingBroadcaster{}
    r := New(ledger, capacity, rec, clk, zap.NewNop(), time.Minute, 200)

    n, err := r.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 2, n)

    assert.Equal(t, model.HoldStatusExpired, ledger.status(1))
    assert.Equal(t, model.HoldStatusExpired, ledger.status(2))
    assert.Equal(t, model.HoldStatusReserved, ledger.status(3), "unexpired holds stay live")
    assert.Equal(t, 1, capacity.reserved["banquet"])
    require.Len(t, rec.snaps, 1, "one snapshot per touched unit, not per hold")
    assert.Equal(t, 9, rec.snaps[0].Available)
}

func TestSweepSkipsHoldsConfirmWon(t *testing.T) {
    t.Parallel()
    clk := clock.NewFixed(sweepStart)
    ledger := &fakeLedger{holds: []model.ReservationHold{
        hold(1, "banquet", model.HoldStatusSold, sweepStart.Add(-time.Minute)),
        hold(2, "banquet", model.HoldStatusReserved, sweepStart.Add(-time.Minute)),
    }}
    capacity := newFakeCapacity("banquet", 1, 10)
    r := New(ledger, capacity, nil, clk, zap.NewNop(), time.Minute, 200)

    n, err := r.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    assert.Equal(t, model.HoldStatusSold, ledger.status(1), "sold rows are never expired")
    assert.Equal(t, 0, capacity.reserved["banquet"])
}

func TestSweepDivergenceDoesNotCount(t *testing.T) {
    t.Parallel()
    clk := clock.NewFixed(sweepStart)
    ledger := &fakeLedger{holds: []model.ReservationHold{
        hold(1, "banquet", model.HoldStatusReserved, sweepStart.Add(-time.Minute)),
    }}
    // Nothing reserved in the counter while the ledger says RESERVED.
    capacity := newFakeCapacity("banquet", 0, 10)
    rec := &recordingBroadcaster{}
    r := New(ledger, capacity, rec, clk, zap.NewNop(), time.Minute, 200)

    n, err := r.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 0, n)
    assert.Empty(t, rec.snaps)
}

func TestSweepRespectsBatchSize(t *testing.T) {
    t.Parallel()
    clk := clock.NewFixed(sweepStart)
    ledger := &fakeLedger{}
    for i := uint64(1); i <= 5; i++ {
        ledger.holds = append(ledger.holds, hold(i, "banquet", model.HoldStatusReserved, sweepStart.Add(-time.Minute)))
    }
    capacity := newFakeCapacity("banquet", 5, 10)
    r := New(ledger, capacity, nil, clk, zap.NewNop(), time.Minute, 2)

    n, err := r.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 2, n)
    assert.Equal(t, 3, capacity.reserved["banquet"])
}

func TestSweepPropagatesLedgerError(t *testing.T) {
    t.Parallel()
    ledger := &fakeLedger{findErr: errors.New("connection refused")}
    r := New(ledger, newFakeCapacity("banquet", 0, 10), nil, clock.NewFixed(sweepStart), zap.NewNop(), time.Minute, 200)

    _, err := r.Sweep(context.Background())
    assert.Error(t, err)
}

func TestHoldBecomesDueAfterClockAdvance(t *testing.T) {
    t.Parallel()
    clk := clock.NewFixed(sweepStart)
    ledger := &fakeLedger{holds: []model.ReservationHold{
        hold(1, "banquet", model.HoldStatusReserved, sweepStart.Add(15*time.Minute)),
    }}
    capacity := newFakeCapacity("banquet", 1, 10)
    r := New(ledger, capacity, nil, clk, zap.NewNop(), time.Minute, 200)

    n, err := r.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 0, n)

    clk.Advance(16 * time.Minute)
    n, err = r.Sweep(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    assert.Equal(t, 0, capacity.reserved["banquet"])
}
