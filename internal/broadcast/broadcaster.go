// Package broadcast pushes capacity changes to subscribed clients so
// availability displays update without polling.  Delivery is
// at-least-once: subscribers receive the current snapshot immediately on
// subscribe, then every subsequent update; duplicates and reordering are
// resolved by timestamp, newer always winning.  Nothing in this package
// is authoritative for capacity decisions.
package broadcast

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/model"
)

// channelPrefix namespaces the Redis pub/sub channels carrying snapshots
// between processes.
const channelPrefix = "availability:"

// Callback receives availability snapshots.  Callbacks must be
// idempotent to duplicate and out-of-order snapshots.
type Callback func(model.Availability)

// Broadcaster fans availability snapshots out to in-process subscribers
// and, when a Redis client is attached, to every other process via
// pub/sub.  It also derives the coarse high-demand signal: one
// notification per upward threshold crossing, not one per update.
type Broadcaster struct {
    mu        sync.Mutex
    nextSubID int
    subs      map[string]map[int]Callback
    highSubs  map[string]map[int]Callback
    latest    map[string]model.Availability
    high      map[string]bool

    threshold float64
    rdb       *redis.Client
    log       *zap.Logger
}

// New constructs a Broadcaster.  threshold is the usage ratio
// ((reserved+sold)/max) at which the high-demand signal fires; rdb may
// be nil to keep broadcasts process-local.
func New(threshold float64, rdb *redis.Client, log *zap.Logger) *Broadcaster {
    if threshold <= 0 || threshold > 1 {
        threshold = 0.8
    }
    return &Broadcaster{
        subs:      make(map[string]map[int]Callback),
        highSubs:  make(map[string]map[int]Callback),
        latest:    make(map[string]model.Availability),
        high:      make(map[string]bool),
        threshold: threshold,
        rdb:       rdb,
        log:       log,
    }
}

// Subscribe registers a callback for a unit and immediately delivers the
// latest known snapshot, if any.  The returned function removes the
// subscription.
func (b *Broadcaster) Subscribe(unitID string, cb Callback) func() {
    b.mu.Lock()
    id := b.nextSubID
    b.nextSubID++
    if b.subs[unitID] == nil {
        b.subs[unitID] = make(map[int]Callback)
    }
    b.subs[unitID][id] = cb
    snap, known := b.latest[unitID]
    b.mu.Unlock()

    if known {
        cb(snap)
    }
    return func() {
        b.mu.Lock()
        delete(b.subs[unitID], id)
        b.mu.Unlock()
    }
}

// SubscribeHighDemand registers a callback fired once per upward
// crossing of the demand threshold.  If the unit is already in high
// demand at subscribe time the callback fires once immediately.
func (b *Broadcaster) SubscribeHighDemand(unitID string, cb Callback) func() {
    b.mu.Lock()
    id := b.nextSubID
    b.nextSubID++
    if b.highSubs[unitID] == nil {
        b.highSubs[unitID] = make(map[int]Callback)
    }
    b.highSubs[unitID][id] = cb
    snap, fireNow := b.latest[unitID], b.high[unitID]
    b.mu.Unlock()

    if fireNow {
        cb(snap)
    }
    return func() {
        b.mu.Lock()
        delete(b.highSubs[unitID], id)
        b.mu.Unlock()
    }
}

// Publish delivers a snapshot to subscribers of its unit and forwards it
// to the Redis channel for other processes.  Snapshots older than the
// latest delivered one are dropped.
func (b *Broadcaster) Publish(snapshot model.Availability) {
    if b.deliver(snapshot) {
        b.forward(snapshot)
    }
}

// deliver applies the timestamp tie-break, updates local state and
// invokes callbacks.  It reports whether the snapshot was fresh.
func (b *Broadcaster) deliver(snapshot model.Availability) bool {
    b.mu.Lock()
    if prev, ok := b.latest[snapshot.UnitID]; ok && !snapshot.Timestamp.After(prev.Timestamp) {
        b.mu.Unlock()
        return false
    }
    b.latest[snapshot.UnitID] = snapshot

    targets := make([]Callback, 0, len(b.subs[snapshot.UnitID]))
    for _, cb := range b.subs[snapshot.UnitID] {
        targets = append(targets, cb)
    }

    var highTargets []Callback
    usage := usageRatio(snapshot)
    wasHigh := b.high[snapshot.UnitID]
    nowHigh := usage >= b.threshold
    b.high[snapshot.UnitID] = nowHigh
    if nowHigh && !wasHigh {
        for _, cb := range b.highSubs[snapshot.UnitID] {
            highTargets = append(highTargets, cb)
        }
    }
    b.mu.Unlock()

    for _, cb := range targets {
        cb(snapshot)
    }
    for _, cb := range highTargets {
        cb(snapshot)
    }
    return true
}

// forward publishes the snapshot to Redis, best effort.
func (b *Broadcaster) forward(snapshot model.Availability) {
    if b.rdb == nil {
        return
    }
    payload, err := json.Marshal(snapshot)
    if err != nil {
        return
    }
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := b.rdb.Publish(ctx, channelPrefix+snapshot.UnitID, payload).Err(); err != nil {
        b.log.Warn("availability fan-out failed",
            zap.String("unit_id", snapshot.UnitID), zap.Error(err))
    }
}

// ListenRemote consumes snapshots published by other processes and
// replays them locally.  Our own publishes come back too; the timestamp
// tie-break drops them as duplicates.  The method blocks until ctx is
// cancelled and is intended to run in its own goroutine.
func (b *Broadcaster) ListenRemote(ctx context.Context) {
    if b.rdb == nil {
        return
    }
    sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
    defer sub.Close()
    ch := sub.Channel()
    for {
        select {
        case <-ctx.Done():
            return
        case msg, ok := <-ch:
            if !ok {
                return
            }
            var snap model.Availability
            if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
                b.log.Warn("dropping undecodable remote snapshot", zap.Error(err))
                continue
            }
            b.deliver(snap)
        }
    }
}

// usageRatio computes (reserved+sold)/max.  A unit with zero max counts
// as fully used so it still trips the high-demand signal consistently;
// every caller goes through this one helper.
func usageRatio(snapshot model.Availability) float64 {
    if snapshot.Max <= 0 {
        return 1
    }
    return float64(snapshot.Reserved+snapshot.Sold) / float64(snapshot.Max)
}
