package db

import (
	"errors"
	"fmt"
	"testing"

	"squares/internal/board"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "22001"}))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(gorm.ErrRecordNotFound), board.ErrNotFound)
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40001"}), board.ErrConflict)
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40P01"}), board.ErrConflict)
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "23505"}), board.ErrConflict)

	other := errors.New("connection refused")
	assert.Equal(t, other, classify(other))

	var boardErr *board.Error
	passed := classify(&board.Error{Message: "game is already locked"})
	assert.ErrorAs(t, passed, &boardErr)
}
