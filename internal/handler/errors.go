package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/openlodge/reservations/internal/repository"
    "github.com/openlodge/reservations/internal/service"
)

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Handlers never leak raw store errors; anything unrecognised becomes a
// plain 500.
func writeServiceError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrInvalidQuantity):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
    case errors.Is(err, service.ErrInvalidArgument):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required identifier"})
    case errors.Is(err, repository.ErrUnitNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "unit not found"})
    case errors.Is(err, service.ErrReservationNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
    case errors.Is(err, service.ErrSoldOut):
        return c.JSON(http.StatusConflict, echo.Map{"error": "sold out"})
    case errors.Is(err, service.ErrReservationExpired):
        return c.JSON(http.StatusGone, echo.Map{"error": "reservation expired"})
    case errors.Is(err, service.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "reservation state conflict"})
    case errors.Is(err, service.ErrStoreUnavailable):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
