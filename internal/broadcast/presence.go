package broadcast

import (
    "context"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

// PresenceTracker records which clients are currently viewing a unit's
// availability.  State lives in a Redis sorted set scored by last
// heartbeat and pruned on read.  It is ephemeral, advisory UI signal
// only, and never consulted by the capacity ops.
type PresenceTracker struct {
    rdb *redis.Client
    ttl time.Duration
}

// NewPresenceTracker builds a tracker over the given Redis client.  A
// nil client yields a nil tracker; callers treat that as presence
// disabled.
func NewPresenceTracker(rdb *redis.Client, ttl time.Duration) *PresenceTracker {
    if rdb == nil {
        return nil
    }
    if ttl <= 0 {
        ttl = 45 * time.Second
    }
    return &PresenceTracker{rdb: rdb, ttl: ttl}
}

func presenceKey(unitID string) string { return "presence:" + unitID }

// Heartbeat marks a client as viewing the unit.  Clients call this
// periodically; entries silently age out after the TTL.
func (p *PresenceTracker) Heartbeat(ctx context.Context, unitID, clientID string) error {
    if p == nil {
        return nil
    }
    now := time.Now().UTC()
    key := presenceKey(unitID)
    pipe := p.rdb.Pipeline()
    pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: clientID})
    pipe.Expire(ctx, key, p.ttl*2)
    _, err := pipe.Exec(ctx)
    return err
}

// Count returns how many clients heartbeated within the TTL window,
// pruning stale members as a side effect.
func (p *PresenceTracker) Count(ctx context.Context, unitID string) (int64, error) {
    if p == nil {
        return 0, nil
    }
    key := presenceKey(unitID)
    cutoff := time.Now().UTC().Add(-p.ttl).UnixMilli()
    if err := p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
        return 0, err
    }
    return p.rdb.ZCard(ctx, key).Result()
}
