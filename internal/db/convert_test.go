package db

import (
	"testing"
	"time"

	"squares/internal/board"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameRecordRoundTrip(t *testing.T) {
	locked := time.Date(2026, 2, 8, 20, 0, 0, 0, time.UTC)
	game := board.Game{
		ID:        "6f1e9a0c-8d4b-4a53-9d1f-2f0b6f0f7a11",
		Name:      "Big Game",
		Status:    board.GameLocked,
		ClosesAt:  time.Date(2026, 2, 8, 20, 0, 0, 0, time.UTC),
		RowDigits: []int{3, 1, 4, 0, 5, 9, 2, 6, 8, 7},
		ColDigits: []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		LockedAt:  &locked,
		WinnerSnapshot: map[string]board.Winner{
			"Q1": {SquareID: "sq-1", Row: 2, Col: 5, UserID: "user-alice", State: board.SquareConfirmed, HomeScore: 17, AwayScore: 24},
		},
		Version: 4,
	}

	record, err := gameRecord(game)
	require.NoError(t, err)
	assert.JSONEq(t, `[3,1,4,0,5,9,2,6,8,7]`, string(record.RowDigits))

	back, err := record.toBoard()
	require.NoError(t, err)
	assert.Equal(t, game.RowDigits, back.RowDigits)
	assert.Equal(t, game.ColDigits, back.ColDigits)
	assert.Equal(t, game.WinnerSnapshot, back.WinnerSnapshot)
	assert.Equal(t, game.Version, back.Version)
	require.NotNil(t, back.LockedAt)
	assert.True(t, locked.Equal(*back.LockedAt))
}

func TestOpenGameHasNoDigits(t *testing.T) {
	record, err := gameRecord(board.Game{ID: "g", Status: board.GameOpen})
	require.NoError(t, err)
	assert.Nil(t, record.RowDigits)
	assert.JSONEq(t, `{}`, string(record.WinnerSnapshot))

	back, err := record.toBoard()
	require.NoError(t, err)
	assert.Nil(t, back.RowDigits)
	assert.Nil(t, back.ColDigits)
	assert.NotNil(t, back.WinnerSnapshot)
	assert.Empty(t, back.WinnerSnapshot)
}

func TestCorruptDigitsSurface(t *testing.T) {
	record := Game{ID: "g", RowDigits: []byte(`{"not":"digits"}`)}
	_, err := record.toBoard()
	assert.Error(t, err)
}

func TestSquareRecordNormalizesToUTC(t *testing.T) {
	until := time.Date(2026, 2, 8, 13, 15, 0, 0, time.FixedZone("EST", -5*3600))
	record := squareRecord(board.Square{
		ID:            "sq",
		GameID:        "g",
		Row:           4,
		Col:           7,
		State:         board.SquareReserved,
		UserID:        "user-bob",
		ReservedUntil: &until,
		Version:       2,
	})
	square := record.toBoard()
	require.NotNil(t, square.ReservedUntil)
	assert.Equal(t, time.UTC, square.ReservedUntil.Location())
	assert.True(t, until.Equal(*square.ReservedUntil))
	assert.Nil(t, square.ReservedAt)
	assert.Equal(t, 4, square.Row)
	assert.Equal(t, 7, square.Col)
	assert.Equal(t, int64(2), square.Version)
}

func TestAuditRecordTargets(t *testing.T) {
	gameLevel, err := auditRecord(board.AuditEntry{
		ID:     "a1",
		Type:   board.AuditGameLocked,
		Target: board.AuditTarget{GameID: "g"},
	})
	require.NoError(t, err)
	assert.Nil(t, gameLevel.SquareID)
	assert.JSONEq(t, `{}`, string(gameLevel.Payload))

	squareLevel, err := auditRecord(board.AuditEntry{
		ID:          "a2",
		Type:        board.AuditSquareReserved,
		ActorUserID: "user-alice",
		Target:      board.AuditTarget{GameID: "g", SquareID: "sq"},
		Payload:     map[string]any{"note": "user reservation"},
	})
	require.NoError(t, err)
	require.NotNil(t, squareLevel.SquareID)
	assert.Equal(t, "sq", *squareLevel.SquareID)
	assert.JSONEq(t, `{"note":"user reservation"}`, string(squareLevel.Payload))
}

func TestAuditRecordLeavesTimestampToDatabase(t *testing.T) {
	record, err := auditRecord(board.AuditEntry{
		ID:        "a3",
		Type:      board.AuditReservationExpired,
		Target:    board.AuditTarget{GameID: "g", SquareID: "sq"},
		Timestamp: time.Date(2026, 2, 8, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, record.CreatedAt.IsZero())
	assert.Zero(t, record.Sequence)
}
