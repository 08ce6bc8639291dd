package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationsDir is where the SQL migrations live, relative to the repo root.
const MigrationsDir = "db/migrations"

// MigrateUp applies every pending SQL migration in dir.
func MigrateUp(dsn, dir string) error {
	m, err := newMigrate(dsn, dir)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(dsn, dir string, steps int) error {
	if steps <= 0 {
		return errors.New("steps must be positive")
	}
	m, err := newMigrate(dsn, dir)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

func newMigrate(dsn, dir string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, ErrNoDatabase
	}
	m, err := migrate.New("file://"+filepath.ToSlash(dir), dsn)
	if err != nil {
		return nil, fmt.Errorf("migration setup: %w", err)
	}
	return m, nil
}

// CreateMigration writes an empty up/down pair named after the current UTC
// time and returns their paths.
func CreateMigration(dir, name string, now time.Time) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", errors.New("migration name is required")
	}
	if strings.ContainsAny(name, " /\\") {
		return "", "", errors.New("migration name must not contain spaces or slashes")
	}
	base := fmt.Sprintf("%s_%s", now.UTC().Format("20060102150405"), name)
	upPath := filepath.Join(dir, base+".up.sql")
	downPath := filepath.Join(dir, base+".down.sql")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeNewFile(upPath, "-- up migration\n"); err != nil {
		return "", "", err
	}
	if err := writeNewFile(downPath, "-- down migration\n"); err != nil {
		return "", "", err
	}
	return upPath, downPath, nil
}

func writeNewFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
