package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	now := time.Date(2026, 2, 8, 18, 30, 5, 0, time.UTC)

	up, down, err := CreateMigration(dir, "add_payouts", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260208183005_add_payouts.up.sql"), up)
	assert.Equal(t, filepath.Join(dir, "20260208183005_add_payouts.down.sql"), down)

	content, err := os.ReadFile(up)
	require.NoError(t, err)
	assert.Equal(t, "-- up migration\n", string(content))

	_, _, err = CreateMigration(dir, "add_payouts", now)
	assert.ErrorContains(t, err, "already exists")
}

func TestCreateMigrationRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	_, _, err := CreateMigration(dir, " ", time.Now())
	assert.Error(t, err)
	_, _, err = CreateMigration(dir, "two words", time.Now())
	assert.Error(t, err)
}

func TestMigrateRequiresDSN(t *testing.T) {
	assert.ErrorIs(t, MigrateUp("", MigrationsDir), ErrNoDatabase)
	assert.ErrorIs(t, MigrateDown("", MigrationsDir, 1), ErrNoDatabase)
	assert.Error(t, MigrateDown("postgres://localhost/squares", MigrationsDir, 0))
}

func TestSchemaMigrationsPresent(t *testing.T) {
	dir := filepath.Join("..", "..", MigrationsDir)
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
