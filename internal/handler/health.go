package handler

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// HealthHandler serves liveness and readiness probes.  Liveness only
// says the process is up; readiness checks the stores, with Redis
// reported but never failing the probe since the service degrades
// without it.
type HealthHandler struct {
    DB  *sql.DB
    RDB *redis.Client // may be nil
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready handles GET /readyz.  A failed database ping returns 503 so the
// load balancer stops routing writes here.
func (h *HealthHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    if err := h.DB.PingContext(ctx); err != nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "database": "down"})
    }
    redisState := "disabled"
    if h.RDB != nil {
        redisState = "up"
        if err := h.RDB.Ping(ctx).Err(); err != nil {
            redisState = "down"
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "up", "redis": redisState})
}
