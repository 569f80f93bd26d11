package main // Entry point package

import (
    "context"
    "log"

    "github.com/joho/godotenv"    // .env loader for local development
    "github.com/labstack/echo/v4" // Echo web framework
    "go.uber.org/zap"

    "github.com/openlodge/reservations/internal/broadcast"
    "github.com/openlodge/reservations/internal/clock"
    "github.com/openlodge/reservations/internal/config"
    "github.com/openlodge/reservations/internal/database"
    "github.com/openlodge/reservations/internal/handler"
    "github.com/openlodge/reservations/internal/logger"
    "github.com/openlodge/reservations/internal/queue"
    "github.com/openlodge/reservations/internal/reclaim"
    "github.com/openlodge/reservations/internal/repository"
    "github.com/openlodge/reservations/internal/router"
    "github.com/openlodge/reservations/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real deployments set the environment directly

    cfg := config.Load()
    zlog := logger.New("reservations", cfg.LogLevel)
    defer func() { _ = zlog.Sync() }()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connect failed: %v", err)
    }
    defer db.Close()

    rdb := config.NewRedisClient() // nil when Redis is unreachable; everything degrades
    if rdb == nil {
        zlog.Warn("redis unavailable; fan-out, stale cache, rate limiting and presence disabled")
    }

    capacityRepo := repository.NewCapacityRepo(db)
    ledgerRepo := repository.NewLedgerRepo(db)
    clk := clock.NewSystem()

    broadcaster := broadcast.New(cfg.HighDemandThreshold, rdb, zlog)
    presence := broadcast.NewPresenceTracker(rdb, 0)
    cache := service.NewAvailabilityCache(rdb, 0)

    svc := service.NewReservationService(capacityRepo, ledgerRepo, clk, zlog,
        service.WithHoldTTL(cfg.HoldTTL),
        service.WithBroadcaster(broadcaster),
        service.WithAvailabilityCache(cache),
    )

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Background workers: cross-process snapshot replay, the expiry
    // sweep, and the payment confirmation feed.
    go broadcaster.ListenRemote(ctx)
    reclaimer := reclaim.New(ledgerRepo, capacityRepo, broadcaster, clk, zlog, cfg.ReclaimInterval, cfg.ReclaimBatchSize)
    go reclaimer.Run(ctx)
    go queue.StartPaymentConsumer(ctx, svc, zlog)

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e, &handler.HealthHandler{DB: db, RDB: rdb})
    router.RegisterPublic(e, handler.NewAvailabilityHandler(svc, broadcaster, presence))
    router.RegisterReservations(e, handler.NewReservationHandler(svc, zlog, &queue.ConfirmedPublisher{Log: zlog}), cfg.JWTSecret, rdb, cfg.RateLimitPerMinute)
    router.RegisterAdmin(e, handler.NewAdminHandler(capacityRepo), cfg.JWTSecret)

    addr := ":" + cfg.Port
    zlog.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
