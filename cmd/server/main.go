package main // Entry point package

import (
    "context" // Context for scheduler lifetime
    "log"     // Logging library
    "time"    // Durations for worker cadence

    "github.com/joho/godotenv"    // .env loader for local development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/avelio/room-reservation/internal/config"     // Internal config loader
    "github.com/avelio/room-reservation/internal/database"   // MySQL connection setup
    "github.com/avelio/room-reservation/internal/handler"    // HTTP handlers
    "github.com/avelio/room-reservation/internal/ledger"     // Interval conflict ledger
    "github.com/avelio/room-reservation/internal/middleware" // Rate limiting and caching
    "github.com/avelio/room-reservation/internal/notify"     // AMQP notification fan-out
    "github.com/avelio/room-reservation/internal/repository" // Data access layer
    "github.com/avelio/room-reservation/internal/router"     // Route registration
    "github.com/avelio/room-reservation/internal/scheduler"  // Background reconciliation jobs
    "github.com/avelio/room-reservation/internal/workflow"   // Reservation engine
)

func main() {
    _ = godotenv.Load() // Load .env when present; real env always wins

    cfg := config.Load() // Load environment config

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    rdb := config.NewRedisClient() // Nil when Redis is unreachable; middleware degrades to no-op

    // Repositories.
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    rooms := repository.NewRoomRepo(db)
    equipment := repository.NewEquipmentRepo(db)
    reservations := repository.NewReservationRepo(db)
    proofs := repository.NewPaymentProofRepo(db)
    intervals := repository.NewResourceIntervalRepo(db)
    audit := repository.NewAuditRepo(db)

    // Engine wiring: the ledger owns interval conflicts, the workflow
    // service owns state transitions, the reconciler owns time-driven
    // transitions.
    lg := ledger.New(intervals)
    sink := notify.NewAMQPSink()
    flow := workflow.NewService(db, reservations, proofs, rooms, equipment, lg, sink, audit, cfg.PaymentDeadlineDays)

    recon := scheduler.New(reservations, intervals, flow, sink, audit, rdb,
        cfg.PrepareLeadMin,
        time.Duration(cfg.AdvanceIntervalSec)*time.Second,
        time.Duration(cfg.SweepIntervalMin)*time.Minute)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    sched, err := recon.Start(ctx)
    if err != nil {
        log.Fatalf("scheduler: %v", err)
    }
    defer func() { _ = sched.Shutdown() }()

    // The consumer drains the notification queue into logs/ so the
    // service works without a mail gateway attached.
    go func() {
        if err := notify.StartConsumer(); err != nil {
            log.Printf("notify consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    authH := handler.NewAuthHandler(cfg, users, tokens)
    resH := handler.NewReservationHandler(flow, reservations)
    proofH := handler.NewProofHandler(flow, proofs)
    catH := handler.NewCatalogHandler(rooms, equipment, intervals)

    router.RegisterRoutes(e)
    router.RegisterAuth(e, authH, cfg.JWTSecret)
    router.RegisterReservations(e, resH, proofH, cfg.JWTSecret)
    router.RegisterCatalog(e, catH, cfg.JWTSecret, cacheMW)

    addr := ":" + cfg.Port                                // Address string with port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

    if err := e.Start(addr); err != nil { // Start HTTP server
        log.Fatal(err) // Log and exit if server fails
    }
}
