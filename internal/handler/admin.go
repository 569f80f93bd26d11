package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/openlodge/reservations/internal/model"
    "github.com/openlodge/reservations/internal/repository"
)

// UnitAdmin is the capacity administration surface backing the admin
// panel: defining sellable units and adjusting their ceilings.
type UnitAdmin interface {
    CreateUnit(ctx context.Context, unit model.CapacityUnit) error
    SetMaxCapacity(ctx context.Context, unitID string, maxCapacity int) error
    ListUnits(ctx context.Context) ([]model.CapacityUnit, error)
    GetAvailability(ctx context.Context, unitID string) (model.Availability, error)
}

// AdminHandler serves the admin CRUD endpoints for capacity units.  All
// routes are guarded by the ADMIN role middleware.
type AdminHandler struct {
    Units UnitAdmin
}

// NewAdminHandler constructs an AdminHandler and panics on a nil
// dependency.
func NewAdminHandler(units UnitAdmin) *AdminHandler {
    if units == nil {
        panic("nil repository passed to NewAdminHandler")
    }
    return &AdminHandler{Units: units}
}

var validUnitTypes = map[model.UnitType]bool{
    model.UnitTypeTicket:  true,
    model.UnitTypePackage: true,
    model.UnitTypeVAS:     true,
}

// CreateUnit handles POST /v1/admin/units.  A unit starts with zeroed
// counters; its ID is the opaque key every other endpoint uses.
func (h *AdminHandler) CreateUnit(c echo.Context) error {
    var body struct {
        UnitID      string `json:"unit_id"`
        UnitType    string `json:"unit_type"`
        Name        string `json:"name"`
        MaxCapacity int    `json:"max_capacity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UnitID == "" || body.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_id and name are required"})
    }
    if !validUnitTypes[model.UnitType(body.UnitType)] {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_type must be TICKET, PACKAGE or VAS"})
    }
    if body.MaxCapacity < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_capacity must not be negative"})
    }
    err := h.Units.CreateUnit(c.Request().Context(), model.CapacityUnit{
        UnitID:      body.UnitID,
        UnitType:    model.UnitType(body.UnitType),
        Name:        body.Name,
        MaxCapacity: body.MaxCapacity,
    })
    if err != nil {
        if errors.Is(err, repository.ErrUnitExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "unit already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create unit"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"unit_id": body.UnitID})
}

// SetCapacity handles PUT /v1/admin/units/:id/capacity.  Raising the
// ceiling always succeeds; lowering it below the units already reserved
// or sold is refused with 409 so the capacity invariant cannot be broken
// from the admin panel.
func (h *AdminHandler) SetCapacity(c echo.Context) error {
    var body struct {
        MaxCapacity int `json:"max_capacity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.MaxCapacity < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_capacity must not be negative"})
    }
    err := h.Units.SetMaxCapacity(c.Request().Context(), c.Param("id"), body.MaxCapacity)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrUnitNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "unit not found"})
        case errors.Is(err, repository.ErrCapacityBelowCommitted):
            return c.JSON(http.StatusConflict, echo.Map{"error": "max_capacity below committed count"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update capacity"})
        }
    }
    snap, err := h.Units.GetAvailability(c.Request().Context(), c.Param("id"))
    if err != nil {
        return c.JSON(http.StatusOK, echo.Map{"unit_id": c.Param("id")})
    }
    return c.JSON(http.StatusOK, snap)
}

// ListUnits handles GET /v1/admin/units.  It returns every sellable unit
// with its counters and derived availability.
func (h *AdminHandler) ListUnits(c echo.Context) error {
    units, err := h.Units.ListUnits(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list units"})
    }
    type unitView struct {
        UnitID      string `json:"unit_id"`
        UnitType    string `json:"unit_type"`
        Name        string `json:"name"`
        Max         int    `json:"max"`
        Reserved    int    `json:"reserved"`
        Sold        int    `json:"sold"`
        Available   int    `json:"available"`
    }
    views := make([]unitView, 0, len(units))
    for _, u := range units {
        views = append(views, unitView{
            UnitID:    u.UnitID,
            UnitType:  string(u.UnitType),
            Name:      u.Name,
            Max:       u.MaxCapacity,
            Reserved:  u.ReservedCount,
            Sold:      u.SoldCount,
            Available: u.Available(),
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": views})
}
