package service

import (
    "context"
    "encoding/json"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/openlodge/reservations/internal/model"
)

// availabilityCache keeps the most recent availability snapshot per unit
// in Redis.  It exists purely so display reads can degrade to a stale
// value when the database is unreachable; it is never consulted for
// capacity decisions.
type availabilityCache struct {
    rdb *redis.Client
    ttl time.Duration
}

// NewAvailabilityCache builds a cache over the given Redis client.  A
// nil client yields a nil cache, which disables the fallback.
func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration) *availabilityCache {
    if rdb == nil {
        return nil
    }
    if ttl <= 0 {
        ttl = 10 * time.Minute
    }
    return &availabilityCache{rdb: rdb, ttl: ttl}
}

func cacheKey(unitID string) string { return "availability:snapshot:" + unitID }

// Put stores a snapshot, best effort.  Errors are ignored: the cache is
// an optimisation, not a dependency.
func (c *availabilityCache) Put(ctx context.Context, snap model.Availability) {
    if c == nil {
        return
    }
    payload, err := json.Marshal(snap)
    if err != nil {
        return
    }
    _ = c.rdb.SetEx(ctx, cacheKey(snap.UnitID), payload, c.ttl).Err()
}

// Get returns the cached snapshot for a unit, if one is present and
// decodable.
func (c *availabilityCache) Get(ctx context.Context, unitID string) (model.Availability, bool) {
    if c == nil {
        return model.Availability{}, false
    }
    payload, err := c.rdb.Get(ctx, cacheKey(unitID)).Bytes()
    if err != nil {
        return model.Availability{}, false
    }
    var snap model.Availability
    if err := json.Unmarshal(payload, &snap); err != nil {
        return model.Availability{}, false
    }
    return snap, true
}
