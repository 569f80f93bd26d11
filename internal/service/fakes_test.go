package service

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/openlodge/reservations/internal/model"
    "github.com/openlodge/reservations/internal/repository"
)

// fakeCapacity is an in-memory CapacityOps whose mutations are atomic
// under a mutex, mirroring the conditional-update semantics of the real
// store.  Error injection simulates an unreachable store.
type fakeCapacity struct {
    mu    sync.Mutex
    units map[string]*model.CapacityUnit

    failReserve error // returned by Reserve when set
    failRelease error // returned by Release when set
    failConfirm error // returned by ConfirmPurchase when set
}

func newFakeCapacity(units ...model.CapacityUnit) *fakeCapacity {
    f := &fakeCapacity{units: make(map[string]*model.CapacityUnit)}
    for _, u := range units {
        copied := u
        f.units[u.UnitID] = &copied
    }
    return f
}

func (f *fakeCapacity) Reserve(ctx context.Context, unitID string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failReserve != nil {
        return false, f.failReserve
    }
    u, ok := f.units[unitID]
    if !ok {
        return false, repository.ErrUnitNotFound
    }
    if u.ReservedCount+u.SoldCount >= u.MaxCapacity {
        return false, nil
    }
    u.ReservedCount++
    return true, nil
}

func (f *fakeCapacity) ConfirmPurchase(ctx context.Context, unitID string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failConfirm != nil {
        return false, f.failConfirm
    }
    u, ok := f.units[unitID]
    if !ok {
        return false, repository.ErrUnitNotFound
    }
    if u.ReservedCount <= 0 {
        return false, nil
    }
    u.ReservedCount--
    u.SoldCount++
    return true, nil
}

func (f *fakeCapacity) Release(ctx context.Context, unitID string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failRelease != nil {
        return false, f.failRelease
    }
    u, ok := f.units[unitID]
    if !ok {
        return false, repository.ErrUnitNotFound
    }
    if u.ReservedCount <= 0 {
        return false, nil
    }
    u.ReservedCount--
    return true, nil
}

func (f *fakeCapacity) GetAvailability(ctx context.Context, unitID string) (model.Availability, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    u, ok := f.units[unitID]
    if !ok {
        return model.Availability{}, repository.ErrUnitNotFound
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

// counters returns the current counter triple for assertions.
func (f *fakeCapacity) counters(unitID string) (reserved, sold, max int) {
    f.mu.Lock()
    defer f.mu.Unlock()
    u := f.units[unitID]
    return u.ReservedCount, u.SoldCount, u.MaxCapacity
}

// drainReserved zeroes reserved_count to simulate counter/ledger
// divergence in conflict tests.
func (f *fakeCapacity) drainReserved(unitID string) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.units[unitID].ReservedCount = 0
}

// fakeLedger is an in-memory Ledger with status-guarded transitions.
type fakeLedger struct {
    mu     sync.Mutex
    nextID uint64
    holds  []model.ReservationHold

    failCreate error // returned by CreateHolds when set
}

func newFakeLedger() *fakeLedger { return &fakeLedger{} }

func (f *fakeLedger) CreateHolds(ctx context.Context, holds []model.ReservationHold) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failCreate != nil {
        return f.failCreate
    }
    for _, h := range holds {
        f.nextID++
        h.ID = f.nextID
        f.holds = append(f.holds, h)
    }
    return nil
}

func (f *fakeLedger) HoldsByReservation(ctx context.Context, reservationID string) ([]model.ReservationHold, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := make([]model.ReservationHold, 0)
    for _, h := range f.holds {
        if h.ReservationID == reservationID {
            out = append(out, h)
        }
    }
    return out, nil
}

func (f *fakeLedger) transition(holdID uint64, from, to model.HoldStatus, attendeeID *string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for i := range f.holds {
        if f.holds[i].ID != holdID {
            continue
        }
        if f.holds[i].Status != from {
            return false, nil
        }
        f.holds[i].Status = to
        if attendeeID != nil {
            f.holds[i].AttendeeID = attendeeID
        }
        return true, nil
    }
    return false, errors.New("hold not found")
}

func (f *fakeLedger) MarkSold(ctx context.Context, holdID uint64, attendeeID string) (bool, error) {
    return f.transition(holdID, model.HoldStatusReserved, model.HoldStatusSold, &attendeeID)
}

func (f *fakeLedger) MarkCancelled(ctx context.Context, holdID uint64) (bool, error) {
    return f.transition(holdID, model.HoldStatusReserved, model.HoldStatusCancelled, nil)
}

func (f *fakeLedger) MarkExpired(ctx context.Context, holdID uint64) (bool, error) {
    return f.transition(holdID, model.HoldStatusReserved, model.HoldStatusExpired, nil)
}

func (f *fakeLedger) FindDue(ctx context.Context, now time.Time, limit int) ([]model.ReservationHold, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
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

// statuses returns hold statuses for a reservation in insertion order.
func (f *fakeLedger) statuses(reservationID string) []model.HoldStatus {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := make([]model.HoldStatus, 0)
    for _, h := range f.holds {
        if h.ReservationID == reservationID {
            out = append(out, h.Status)
        }
    }
    return out
}

// recordingBroadcaster captures published snapshots.
type recordingBroadcaster struct {
    mu    sync.Mutex
    snaps []model.Availability
}

func (r *recordingBroadcaster) Publish(snapshot model.Availability) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.snaps = append(r.snaps, snapshot)
}

func (r *recordingBroadcaster) count() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.snaps)
}
