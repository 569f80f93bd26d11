package handler

import (
    "encoding/json"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/openlodge/reservations/internal/broadcast"
    "github.com/openlodge/reservations/internal/model"
)

// AvailabilityHandler serves capacity read endpoints: the plain counter
// snapshot, a server-sent-events stream fed by the broadcaster, and the
// advisory presence endpoints.
type AvailabilityHandler struct {
    Svc         ReservationAPI
    Broadcaster *broadcast.Broadcaster
    Presence    *broadcast.PresenceTracker // may be nil when Redis is absent
}

// NewAvailabilityHandler constructs an AvailabilityHandler.  Presence
// may be nil; the heartbeat endpoints then report presence as disabled.
func NewAvailabilityHandler(svc ReservationAPI, b *broadcast.Broadcaster, p *broadcast.PresenceTracker) *AvailabilityHandler {
    if svc == nil || b == nil {
        panic("nil dependency passed to NewAvailabilityHandler")
    }
    return &AvailabilityHandler{Svc: svc, Broadcaster: b, Presence: p}
}

// Get handles GET /v1/units/:id/availability.  When the store is down
// this may serve the last cached snapshot rather than fail the UI.
func (h *AvailabilityHandler) Get(c echo.Context) error {
    snap, err := h.Svc.Availability(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, snap)
}

// Stream handles GET /v1/units/:id/availability/stream.  It bridges the
// broadcaster to browsers over server-sent events: the current snapshot
// is delivered immediately, then every subsequent update until the
// client disconnects.  Duplicates are possible; the timestamp field lets
// clients keep only the newest.
func (h *AvailabilityHandler) Stream(c echo.Context) error {
    unitID := c.Param("id")
    // Prime the broadcaster's latest snapshot so even the first
    // subscriber on a unit gets an immediate event.
    snap, err := h.Svc.Availability(c.Request().Context(), unitID)
    if err != nil {
        return writeServiceError(c, err)
    }
    h.Broadcaster.Publish(snap)

    resp := c.Response()
    resp.Header().Set(echo.HeaderContentType, "text/event-stream")
    resp.Header().Set("Cache-Control", "no-cache")
    resp.Header().Set("Connection", "keep-alive")
    resp.WriteHeader(http.StatusOK)

    events := make(chan model.Availability, 16)
    unsubscribe := h.Broadcaster.Subscribe(unitID, func(snap model.Availability) {
        select {
        case events <- snap:
        default: // a slow client drops intermediate snapshots; newest wins anyway
        }
    })
    defer unsubscribe()

    ctx := c.Request().Context()
    for {
        select {
        case <-ctx.Done():
            return nil
        case snap := <-events:
            payload, err := json.Marshal(snap)
            if err != nil {
                continue
            }
            if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
                return nil
            }
            resp.Flush()
        }
    }
}

// Heartbeat handles POST /v1/units/:id/presence.  The body carries an
// opaque client_id; repeated heartbeats keep the client counted among
// current viewers.  Purely advisory.
func (h *AvailabilityHandler) Heartbeat(c echo.Context) error {
    if h.Presence == nil {
        return c.JSON(http.StatusOK, echo.Map{"presence": "disabled"})
    }
    var body struct {
        ClientID string `json:"client_id"`
    }
    if err := c.Bind(&body); err != nil || body.ClientID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "client_id is required"})
    }
    if err := h.Presence.Heartbeat(c.Request().Context(), c.Param("id"), body.ClientID); err != nil {
        return c.JSON(http.StatusOK, echo.Map{"presence": "unavailable"})
    }
    return c.NoContent(http.StatusNoContent)
}

// Viewers handles GET /v1/units/:id/presence.  It returns the number of
// clients currently viewing the unit's availability.
func (h *AvailabilityHandler) Viewers(c echo.Context) error {
    if h.Presence == nil {
        return c.JSON(http.StatusOK, echo.Map{"viewers": 0, "presence": "disabled"})
    }
    n, err := h.Presence.Count(c.Request().Context(), c.Param("id"))
    if err != nil {
        return c.JSON(http.StatusOK, echo.Map{"viewers": 0, "presence": "unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"viewers": n})
}
