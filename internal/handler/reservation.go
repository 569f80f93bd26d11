package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/model"
    "github.com/openlodge/reservations/internal/queue"
    "github.com/openlodge/reservations/internal/service"
)

// ReservationAPI is the slice of the reservation service the HTTP layer
// depends on.  Defining it here keeps handlers testable against a fake.
type ReservationAPI interface {
    Reserve(ctx context.Context, unitID string, quantity int) (service.Reservation, error)
    Confirm(ctx context.Context, reservationID, attendeeID string) ([]model.ReservationHold, error)
    Cancel(ctx context.Context, reservationID string) (bool, error)
    Lookup(ctx context.Context, reservationID string) ([]model.ReservationHold, error)
    Availability(ctx context.Context, unitID string) (model.Availability, error)
}

// EventPublisher emits downstream events after a successful confirm.  A
// nil publisher disables emission; publishing is best effort and never
// fails the request.
type EventPublisher interface {
    ReservationConfirmed(ctx context.Context, event queue.ReservationConfirmedEvent) error
}

// ReservationHandler serves the member-facing reservation endpoints.
// All methods assume JWT authentication has already been performed by
// middleware.
type ReservationHandler struct {
    Svc    ReservationAPI
    Log    *zap.Logger
    Events EventPublisher // may be nil
}

// NewReservationHandler constructs a ReservationHandler.  svc and log
// must be non-nil; events may be nil.
func NewReservationHandler(svc ReservationAPI, log *zap.Logger, events EventPublisher) *ReservationHandler {
    if svc == nil || log == nil {
        panic("nil dependency passed to NewReservationHandler")
    }
    return &ReservationHandler{Svc: svc, Log: log, Events: events}
}

// holdView is the wire shape of a ledger row.
type holdView struct {
    HoldID     uint64  `json:"hold_id"`
    UnitID     string  `json:"unit_id"`
    Status     string  `json:"status"`
    AttendeeID *string `json:"attendee_id,omitempty"`
    ExpiresAt  string  `json:"expires_at"`
}

func toHoldViews(holds []model.ReservationHold) []holdView {
    views := make([]holdView, 0, len(holds))
    for _, h := range holds {
        views = append(views, holdView{
            HoldID:     h.ID,
            UnitID:     h.UnitID,
            Status:     string(h.Status),
            AttendeeID: h.AttendeeID,
            ExpiresAt:  h.ExpiresAt.UTC().Format(time.RFC3339),
        })
    }
    return views
}

// Reserve handles POST /v1/units/:id/reserve.  The request body must
// contain a JSON object with a positive "quantity".  On success it
// returns 201 Created with the reservation ID, the held units and the
// shared expiry; a sold-out unit returns 409 with a plain negative
// result, not a fault.
func (h *ReservationHandler) Reserve(c echo.Context) error {
    unitID := c.Param("id")
    var body struct {
        Quantity int `json:"quantity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res, err := h.Svc.Reserve(c.Request().Context(), unitID, body.Quantity)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "reservation_id": res.ReservationID,
        "holds":          toHoldViews(res.Holds),
        "expires_at":     res.ExpiresAt.UTC().Format(time.RFC3339),
    })
}

// Confirm handles POST /v1/reservations/:id/confirm.  The body carries
// the attendee the holds are issued to plus the payment reference from
// the processor's success callback.  The confirm is all-or-nothing for
// the reservation; on success a reservation.confirmed event is published
// for downstream consumers, best effort.
func (h *ReservationHandler) Confirm(c echo.Context) error {
    reservationID := c.Param("id")
    var body struct {
        AttendeeID string `json:"attendee_id"`
        PaymentRef string `json:"payment_ref"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    holds, err := h.Svc.Confirm(c.Request().Context(), reservationID, body.AttendeeID)
    if err != nil {
        return writeServiceError(c, err)
    }

    if h.Events != nil {
        unitIDs := make([]string, 0, len(holds))
        for _, hold := range holds {
            unitIDs = append(unitIDs, hold.UnitID)
        }
        _ = h.Events.ReservationConfirmed(c.Request().Context(), queue.ReservationConfirmedEvent{
            ReservationID: reservationID,
            AttendeeID:    body.AttendeeID,
            UnitIDs:       unitIDs,
            HoldCount:     len(holds),
            PaymentRef:    body.PaymentRef,
            ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
        })
    }

    return c.JSON(http.StatusOK, echo.Map{
        "reservation_id":  reservationID,
        "confirmed_holds": toHoldViews(holds),
    })
}

// Cancel handles DELETE /v1/reservations/:id.  Cancel is idempotent:
// holds already sold, cancelled or expired are per-row no-ops and the
// second cancel of a reservation reports the same success as the first.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    cancelled, err := h.Svc.Cancel(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"cancelled": cancelled})
}

// Get handles GET /v1/reservations/:id.  Clients that cached a
// reservation ID locally call this after a reload to validate it
// against the ledger before trusting it; the ledger is the source of
// truth, the client cache only an optimisation.
func (h *ReservationHandler) Get(c echo.Context) error {
    holds, err := h.Svc.Lookup(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeServiceError(c, err)
    }
    status := overallStatus(holds)
    return c.JSON(http.StatusOK, echo.Map{
        "reservation_id": c.Param("id"),
        "status":         status,
        "holds":          toHoldViews(holds),
        "expires_at":     holds[0].ExpiresAt.UTC().Format(time.RFC3339),
    })
}

// overallStatus collapses per-hold statuses into one resumable state.
// Any live hold keeps the reservation resumable; otherwise the terminal
// states rank sold > cancelled > expired.
func overallStatus(holds []model.ReservationHold) string {
    counts := make(map[model.HoldStatus]int, 4)
    for _, h := range holds {
        counts[h.Status]++
    }
    switch {
    case counts[model.HoldStatusReserved] > 0:
        return string(model.HoldStatusReserved)
    case counts[model.HoldStatusSold] > 0:
        return string(model.HoldStatusSold)
    case counts[model.HoldStatusCancelled] > 0:
        return string(model.HoldStatusCancelled)
    default:
        return string(model.HoldStatusExpired)
    }
}
