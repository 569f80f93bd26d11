package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // the Echo web framework handles routing

    "github.com/openlodge/reservations/internal/handler"    // handlers implement the endpoint logic
    "github.com/openlodge/reservations/internal/middleware" // middleware for JWT auth, roles and rate limiting
    "github.com/redis/go-redis/v9"                          // redis client backs the rate limiter
)

// RegisterRoutes registers the probe endpoints.  They sit outside the
// /v1 tree and carry no authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
    e.GET("/healthz", h.Live)
    e.GET("/readyz", h.Ready)
}

// RegisterPublic registers the unauthenticated availability endpoints.
// Guests browsing an event can watch capacity without a session.
func RegisterPublic(e *echo.Echo, a *handler.AvailabilityHandler) {
    // Current counter snapshot for a sellable unit
    e.GET("/v1/units/:id/availability", a.Get)
    // Server-sent-events stream of availability updates
    e.GET("/v1/units/:id/availability/stream", a.Stream)
    // Advisory presence: heartbeat and viewer count
    e.POST("/v1/units/:id/presence", a.Heartbeat)
    e.GET("/v1/units/:id/presence", a.Viewers)
}

// RegisterReservations registers the member reservation endpoints behind
// JWT authentication.  The reserve endpoint additionally carries the
// per-member rate limit since it is the only write a member can hammer.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string, rdb *redis.Client, ratePerMinute int) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("MEMBER", "ADMIN"))

    g.POST("/units/:id/reserve", r.Reserve, middleware.RateLimit(rdb, ratePerMinute))
    g.POST("/reservations/:id/confirm", r.Confirm)
    g.DELETE("/reservations/:id", r.Cancel)
    g.GET("/reservations/:id", r.Get)
}

// RegisterAdmin registers the capacity administration endpoints.  Only
// tokens carrying the ADMIN role may reach them.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
    g := e.Group("/v1/admin")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("ADMIN"))

    g.POST("/units", a.CreateUnit)
    g.PUT("/units/:id/capacity", a.SetCapacity)
    g.GET("/units", a.ListUnits)
}
