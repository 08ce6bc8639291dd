package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	ReservationHold       time.Duration `env:"RESERVATION_HOLD" envDefault:"15m"`
	ExpirySweepInterval   time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"5m"`
	AutolockSweepInterval time.Duration `env:"AUTOLOCK_SWEEP_INTERVAL" envDefault:"1m"`

	AuthSecret  string   `env:"AUTH_SECRET"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTelEndpoint    string `env:"OTEL_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"squares"`
}

// Default returns the built-in defaults without reading the environment.
func Default() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load parses the process environment on top of the defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ReservationHold <= 0 {
		return fmt.Errorf("RESERVATION_HOLD must be positive, got %s", c.ReservationHold)
	}
	if c.ExpirySweepInterval <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must be positive, got %s", c.ExpirySweepInterval)
	}
	if c.AutolockSweepInterval <= 0 {
		return fmt.Errorf("AUTOLOCK_SWEEP_INTERVAL must be positive, got %s", c.AutolockSweepInterval)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
