package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"squares/internal/board"
	"squares/internal/config"
	"squares/internal/db"
	"squares/internal/logging"
	"squares/internal/server"
	"squares/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		logger.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, ledger, closeStore := openStorage(cfg, logger)
	defer closeStore()

	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET is empty; every write request will be rejected")
	}

	hub := server.NewHub(logger)
	engine := board.New(
		store,
		hub.Ledger(ledger),
		board.WithHoldDuration(cfg.ReservationHold),
		board.WithLogger(logger),
	)

	sweeper := board.NewSweeper(engine, cfg.ExpirySweepInterval, cfg.AutolockSweepInterval, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("sweeper stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(engine, hub, cfg, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("squares server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// openStorage prefers Postgres when DATABASE_URL is set and falls back to
// the in-memory store for local runs.
func openStorage(cfg config.Config, logger *zap.Logger) (board.Store, board.Ledger, func()) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory storage")
		return board.NewMemoryStore(), board.NewMemoryLedger(nil), func() {}
	}
	conn, err := db.Open(cfg.DatabaseURL, db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := db.Migrate(conn, logger); err != nil {
			logger.Fatal("database migration failed", zap.Error(err))
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		logger.Fatal("database handle failed", zap.Error(err))
	}
	return db.NewStore(conn), db.NewAuditLedger(conn), func() { _ = sqlDB.Close() }
}
