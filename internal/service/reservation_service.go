package service

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/clock"
    "github.com/openlodge/reservations/internal/model"
    "github.com/openlodge/reservations/internal/repository"
)

// CapacityOps is the set of atomic counter primitives the service builds
// on.  Implementations must make every mutation a single conditional
// update inside the store; the service never compensates for a racy
// implementation.
type CapacityOps interface {
    Reserve(ctx context.Context, unitID string) (bool, error)
    ConfirmPurchase(ctx context.Context, unitID string) (bool, error)
    Release(ctx context.Context, unitID string) (bool, error)
    GetAvailability(ctx context.Context, unitID string) (model.Availability, error)
}

// Ledger is the reservation ledger surface the service depends on.  All
// transition methods are status-guarded and report whether they applied.
type Ledger interface {
    CreateHolds(ctx context.Context, holds []model.ReservationHold) error
    HoldsByReservation(ctx context.Context, reservationID string) ([]model.ReservationHold, error)
    MarkSold(ctx context.Context, holdID uint64, attendeeID string) (bool, error)
    MarkCancelled(ctx context.Context, holdID uint64) (bool, error)
    MarkExpired(ctx context.Context, holdID uint64) (bool, error)
}

// Broadcaster receives an availability snapshot after every successful
// counter mutation.  A nil broadcaster disables publishing; it is an
// observer of the service, never a fork of its logic.
type Broadcaster interface {
    Publish(snapshot model.Availability)
}

// Reservation is the result of a successful reserve call: the generated
// grouping ID, one ledger row per held unit instance, and the shared
// expiry.
type Reservation struct {
    ReservationID string                  `json:"reservation_id"`
    Holds         []model.ReservationHold `json:"holds"`
    ExpiresAt     time.Time               `json:"expires_at"`
}

// ReservationService orchestrates multi-unit reservations over the atomic
// capacity ops and the ledger.  It owns rollback on partial failure, the
// all-or-nothing confirm per reservation, idempotent cancel, and lazy
// expiry of stale holds encountered on the confirm path.
type ReservationService struct {
    capacity    CapacityOps
    ledger      Ledger
    clk         clock.Clock
    log         *zap.Logger
    holdTTL     time.Duration
    broadcaster Broadcaster
    cache       *availabilityCache
}

const defaultHoldTTL = 15 * time.Minute

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithHoldTTL overrides the default 15 minute hold duration.
func WithHoldTTL(d time.Duration) Option {
    return func(s *ReservationService) {
        if d > 0 {
            s.holdTTL = d
        }
    }
}

// WithBroadcaster attaches an availability broadcaster.  Snapshots are
// published after reserve, confirm, cancel and lazy expiry.
func WithBroadcaster(b Broadcaster) Option {
    return func(s *ReservationService) { s.broadcaster = b }
}

// WithAvailabilityCache attaches a read cache used as a stale fallback
// when the store cannot serve a display read.
func WithAvailabilityCache(c *availabilityCache) Option {
    return func(s *ReservationService) { s.cache = c }
}

// NewReservationService constructs the service.  capacity, ledger, clk
// and log must be non-nil.
func NewReservationService(capacity CapacityOps, ledger Ledger, clk clock.Clock, log *zap.Logger, opts ...Option) *ReservationService {
    if capacity == nil || ledger == nil || clk == nil || log == nil {
        panic("nil dependency passed to NewReservationService")
    }
    s := &ReservationService{
        capacity: capacity,
        ledger:   ledger,
        clk:      clk,
        log:      log,
        holdTTL:  defaultHoldTTL,
    }
    for _, opt := range opts {
        opt(s)
    }
    return s
}

// Reserve attempts to hold quantity instances of the given unit.  Each
// instance is one independent atomic reserve call; the calls are
// dispatched concurrently and the outcome is decided only after all of
// them finish.  If any call fails, every prior success is released
// before returning, so partial success never escapes to the caller.
func (s *ReservationService) Reserve(ctx context.Context, unitID string, quantity int) (Reservation, error) {
    if unitID == "" {
        return Reservation{}, ErrInvalidArgument
    }
    if quantity <= 0 {
        return Reservation{}, ErrInvalidQuantity
    }

    type outcome struct {
        ok  bool
        err error
    }
    outcomes := make([]outcome, quantity)
    var wg sync.WaitGroup
    for i := 0; i < quantity; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            var ok bool
            err := retryStore(ctx, func() error {
                var e error
                ok, e = s.capacity.Reserve(ctx, unitID)
                return e
            })
            outcomes[i] = outcome{ok: ok, err: err}
        }(i)
    }
    wg.Wait()

    succeeded := 0
    var firstErr error
    for _, o := range outcomes {
        if o.err != nil && firstErr == nil {
            firstErr = o.err
        }
        if o.ok {
            succeeded++
        }
    }
    if firstErr != nil || succeeded < quantity {
        s.releaseN(ctx, unitID, succeeded)
        s.broadcast(ctx, unitID)
        if firstErr != nil {
            if errors.Is(firstErr, repository.ErrUnitNotFound) {
                return Reservation{}, firstErr
            }
            return Reservation{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, firstErr)
        }
        return Reservation{}, ErrSoldOut
    }

    reservationID := uuid.New().String()
    expiresAt := s.clk.Now().Add(s.holdTTL)
    holds := make([]model.ReservationHold, 0, quantity)
    for i := 0; i < quantity; i++ {
        holds = append(holds, model.ReservationHold{
            ReservationID: reservationID,
            UnitID:        unitID,
            Status:        model.HoldStatusReserved,
            ExpiresAt:     expiresAt,
        })
    }
    if err := retryStore(ctx, func() error { return s.ledger.CreateHolds(ctx, holds) }); err != nil {
        // The counters were incremented but no ledger rows exist; undo
        // the counters so the two never diverge.
        s.releaseN(ctx, unitID, quantity)
        s.broadcast(ctx, unitID)
        return Reservation{}, fmt.Errorf("%w: write holds: %v", ErrStoreUnavailable, err)
    }

    created, err := s.ledger.HoldsByReservation(ctx, reservationID)
    if err != nil || len(created) == 0 {
        // Rows exist; only the read back failed.  Return what we know.
        created = holds
    }
    s.broadcast(ctx, unitID)
    return Reservation{ReservationID: reservationID, Holds: created, ExpiresAt: expiresAt}, nil
}

// Confirm finalises a reservation after a successful payment.  Every
// hold in the reservation must still be RESERVED and unexpired; the
// confirm is all-or-nothing per reservation ID.  Holds found past their
// expiry are lazily reclaimed here and the call reports
// ErrReservationExpired.
func (s *ReservationService) Confirm(ctx context.Context, reservationID, attendeeID string) ([]model.ReservationHold, error) {
    if reservationID == "" || attendeeID == "" {
        return nil, ErrInvalidArgument
    }
    holds, err := s.ledger.HoldsByReservation(ctx, reservationID)
    if err != nil {
        return nil, fmt.Errorf("%w: load holds: %v", ErrStoreUnavailable, err)
    }
    if len(holds) == 0 {
        return nil, ErrReservationNotFound
    }

    now := s.clk.Now()
    expired := false
    for _, h := range holds {
        switch {
        case h.Status == model.HoldStatusExpired:
            expired = true
        case h.Status != model.HoldStatusReserved:
            s.log.Error("confirm attempted on non-reserved hold",
                zap.String("reservation_id", reservationID),
                zap.Uint64("hold_id", h.ID),
                zap.String("status", string(h.Status)))
            return nil, ErrConflict
        case h.Expired(now):
            expired = true
        }
    }
    if expired {
        s.reclaimReservation(ctx, holds)
        return nil, ErrReservationExpired
    }

    confirmed := make([]model.ReservationHold, 0, len(holds))
    for _, h := range holds {
        var ok bool
        err := retryStore(ctx, func() error {
            var e error
            ok, e = s.capacity.ConfirmPurchase(ctx, h.UnitID)
            return e
        })
        if err != nil {
            s.log.Error("confirm aborted mid-batch on store failure",
                zap.String("reservation_id", reservationID),
                zap.Uint64("hold_id", h.ID),
                zap.Error(err))
            return nil, fmt.Errorf("%w: confirm purchase: %v", ErrStoreUnavailable, err)
        }
        if !ok {
            // The ledger says RESERVED but the counters have nothing
            // reserved.  Counts and ledger rows have diverged; this must
            // never be papered over.
            s.log.Error("capacity and ledger disagree on confirm",
                zap.String("reservation_id", reservationID),
                zap.Uint64("hold_id", h.ID),
                zap.String("unit_id", h.UnitID))
            return nil, fmt.Errorf("%w: capacity counter empty for hold %d", ErrConflict, h.ID)
        }
        applied, err := s.ledger.MarkSold(ctx, h.ID, attendeeID)
        if err != nil {
            s.log.Error("ledger update failed after counter confirm",
                zap.String("reservation_id", reservationID),
                zap.Uint64("hold_id", h.ID),
                zap.Error(err))
            return nil, fmt.Errorf("%w: mark sold: %v", ErrStoreUnavailable, err)
        }
        if !applied {
            s.log.Error("hold left RESERVED state during confirm",
                zap.String("reservation_id", reservationID),
                zap.Uint64("hold_id", h.ID))
            return nil, fmt.Errorf("%w: hold %d transitioned concurrently", ErrConflict, h.ID)
        }
        h.Status = model.HoldStatusSold
        a := attendeeID
        h.AttendeeID = &a
        confirmed = append(confirmed, h)
    }

    for _, unitID := range distinctUnits(holds) {
        s.broadcast(ctx, unitID)
    }
    return confirmed, nil
}

// Cancel releases every hold of the reservation that is still RESERVED
// and marks it CANCELLED.  Rows already in a terminal state are per-row
// no-ops, so calling Cancel twice produces the same end state as calling
// it once.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) (bool, error) {
    if reservationID == "" {
        return false, ErrInvalidArgument
    }
    holds, err := s.ledger.HoldsByReservation(ctx, reservationID)
    if err != nil {
        return false, fmt.Errorf("%w: load holds: %v", ErrStoreUnavailable, err)
    }
    if len(holds) == 0 {
        return false, ErrReservationNotFound
    }
    touched := make(map[string]struct{})
    for _, h := range holds {
        if h.Status != model.HoldStatusReserved {
            continue
        }
        applied, err := s.ledger.MarkCancelled(ctx, h.ID)
        if err != nil {
            return false, fmt.Errorf("%w: mark cancelled: %v", ErrStoreUnavailable, err)
        }
        if !applied {
            continue // lost the race to confirm or expiry; nothing to release
        }
        var ok bool
        relErr := retryStore(ctx, func() error {
            var e error
            ok, e = s.capacity.Release(ctx, h.UnitID)
            return e
        })
        if relErr != nil || !ok {
            s.log.Error("failed to release capacity for cancelled hold",
                zap.String("reservation_id", reservationID),
                zap.Uint64("hold_id", h.ID),
                zap.String("unit_id", h.UnitID),
                zap.Error(relErr))
        }
        touched[h.UnitID] = struct{}{}
    }
    for unitID := range touched {
        s.broadcast(ctx, unitID)
    }
    return true, nil
}

// Lookup returns the ledger rows for a reservation ID so a client can
// validate a locally cached in-flight reservation after a reload.  The
// ledger, not the client cache, is the source of truth.
func (s *ReservationService) Lookup(ctx context.Context, reservationID string) ([]model.ReservationHold, error) {
    if reservationID == "" {
        return nil, ErrInvalidArgument
    }
    holds, err := s.ledger.HoldsByReservation(ctx, reservationID)
    if err != nil {
        return nil, fmt.Errorf("%w: load holds: %v", ErrStoreUnavailable, err)
    }
    if len(holds) == 0 {
        return nil, ErrReservationNotFound
    }
    return holds, nil
}

// Availability returns current counters for a unit.  When the store is
// unreachable the last cached snapshot is served instead, so display
// reads degrade rather than fail; mutations never take this path.
func (s *ReservationService) Availability(ctx context.Context, unitID string) (model.Availability, error) {
    if unitID == "" {
        return model.Availability{}, ErrInvalidArgument
    }
    snap, err := s.capacity.GetAvailability(ctx, unitID)
    if err == nil {
        if s.cache != nil {
            s.cache.Put(ctx, snap)
        }
        return snap, nil
    }
    if errors.Is(err, repository.ErrUnitNotFound) {
        return model.Availability{}, err
    }
    if s.cache != nil {
        if stale, ok := s.cache.Get(ctx, unitID); ok {
            s.log.Warn("serving stale availability snapshot",
                zap.String("unit_id", unitID), zap.Error(err))
            return stale, nil
        }
    }
    return model.Availability{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// reclaimReservation lazily expires holds discovered stale on the
// confirm path.  Transitions are status-guarded, so a hold that a
// concurrent sweep already expired is simply skipped.
func (s *ReservationService) reclaimReservation(ctx context.Context, holds []model.ReservationHold) {
    touched := make(map[string]struct{})
    for _, h := range holds {
        if h.Status != model.HoldStatusReserved {
            continue
        }
        applied, err := s.ledger.MarkExpired(ctx, h.ID)
        if err != nil || !applied {
            continue
        }
        var ok bool
        relErr := retryStore(ctx, func() error {
            var e error
            ok, e = s.capacity.Release(ctx, h.UnitID)
            return e
        })
        if relErr != nil || !ok {
            s.log.Error("failed to release capacity for expired hold",
                zap.Uint64("hold_id", h.ID),
                zap.String("unit_id", h.UnitID),
                zap.Error(relErr))
        }
        touched[h.UnitID] = struct{}{}
    }
    for unitID := range touched {
        s.broadcast(ctx, unitID)
    }
}

// releaseN undoes n successful atomic reserves for a unit.  A failed
// release here would strand capacity, so failures are logged loudly and
// retried by the bounded retry policy.
func (s *ReservationService) releaseN(ctx context.Context, unitID string, n int) {
    for i := 0; i < n; i++ {
        var ok bool
        err := retryStore(ctx, func() error {
            var e error
            ok, e = s.capacity.Release(ctx, unitID)
            return e
        })
        if err != nil || !ok {
            s.log.Error("rollback release failed; capacity may be stranded until reconciled",
                zap.String("unit_id", unitID), zap.Error(err))
        }
    }
}

// broadcast publishes the current snapshot for a unit to subscribers.
// Broadcast state is advisory; a failed read here is logged and dropped.
func (s *ReservationService) broadcast(ctx context.Context, unitID string) {
    if s.broadcaster == nil {
        return
    }
    snap, err := s.capacity.GetAvailability(ctx, unitID)
    if err != nil {
        s.log.Warn("skipping availability broadcast", zap.String("unit_id", unitID), zap.Error(err))
        return
    }
    if s.cache != nil {
        s.cache.Put(ctx, snap)
    }
    s.broadcaster.Publish(snap)
}

func distinctUnits(holds []model.ReservationHold) []string {
    seen := make(map[string]struct{}, len(holds))
    units := make([]string, 0, len(holds))
    for _, h := range holds {
        if _, ok := seen[h.UnitID]; !ok {
            seen[h.UnitID] = struct{}{}
            units = append(units, h.UnitID)
        }
    }
    return units
}
