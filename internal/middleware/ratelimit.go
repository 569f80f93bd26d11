package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// RateLimit returns a fixed-window limiter over Redis for the reserve
// endpoint: at most perMinute requests per authenticated member (or
// client IP for guests) per minute, shared across all processes.  A nil
// Redis client disables limiting entirely; limiter errors fail open so
// an unavailable Redis never blocks reservations.
func RateLimit(rdb *redis.Client, perMinute int) echo.MiddlewareFunc {
    if rdb == nil || perMinute <= 0 {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            who := MemberID(c)
            if who == "guest" {
                who = c.RealIP()
            }
            window := time.Now().UTC().Unix() / 60
            key := "ratelimit:reserve:" + who + ":" + strconv.FormatInt(window, 10)

            ctx := c.Request().Context()
            count, err := rdb.Incr(ctx, key).Result()
            if err != nil {
                return next(c) // fail open
            }
            if count == 1 {
                _ = rdb.Expire(ctx, key, 2*time.Minute).Err()
            }
            if count > int64(perMinute) {
                c.Response().Header().Set("Retry-After", "60")
                return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
            }
            return next(c)
        }
    }
}
