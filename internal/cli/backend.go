package cli

import (
	"context"

	"squares/internal/board"
	"squares/internal/config"
	"squares/internal/db"
	"squares/internal/logging"
)

// OpenDatabase builds an engine over the Postgres store described by the
// environment.
func OpenDatabase(ctx context.Context) (*Backend, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(cfg.DatabaseURL, db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	engine := board.New(
		db.NewStore(conn),
		db.NewAuditLedger(conn),
		board.WithHoldDuration(cfg.ReservationHold),
		board.WithLogger(logger),
	)
	return &Backend{
		Engine: engine,
		Close: func() error {
			_ = logger.Sync()
			return sqlDB.Close()
		},
	}, nil
}
