package board

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestSubmitScoreResolvesWinner(t *testing.T) {
	f := newFixture(t)
	game := f.createGame()
	locked, err := f.engine.LockGame(f.ctx, adminCaller, game.ID)
	require.NoError(t, err)

	row := slices.Index(locked.RowDigits, 7)
	col := slices.Index(locked.ColDigits, 4)
	winning := f.squareAt(game.ID, row, col)

	result, err := f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q1", HomeScore: 17, AwayScore: 24})
	require.NoError(t, err)
	assert.Equal(t, 7, result.HomeDigit)
	assert.Equal(t, 4, result.AwayDigit)
	assert.False(t, result.Duplicate)
	assert.Equal(t, winning.ID, result.Winner.SquareID)
	assert.Equal(t, row, result.Winner.Row)
	assert.Equal(t, col, result.Winner.Col)
	assert.Equal(t, 7, locked.RowDigits[result.Winner.Row])
	assert.Equal(t, 4, locked.ColDigits[result.Winner.Col])

	stored, err := f.engine.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Winner, stored.WinnerSnapshot["Q1"])

	events := f.store.ScoreEvents(game.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "Q1", events[0].Period)
	assert.Equal(t, winning.ID, events[0].SquareID)
	assert.Equal(t, adminCaller.UserID, events[0].SubmittedBy)
}

func TestSubmitScoreRecordsOwner(t *testing.T) {
	f := newFixture(t)
	game := f.createGame()
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			square := f.squareAt(game.ID, row, col)
			_, err := f.engine.AdminProxyAssignSquare(f.ctx, adminCaller, game.ID, square.ID, "owner-"+square.ID)
			require.NoError(t, err)
		}
	}
	_, err := f.engine.LockGame(f.ctx, adminCaller, game.ID)
	require.NoError(t, err)

	result, err := f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q2", HomeScore: 3, AwayScore: 10})
	require.NoError(t, err)
	assert.Equal(t, "owner-"+result.Winner.SquareID, result.Winner.UserID)
	assert.Equal(t, SquareConfirmed, result.Winner.State)
}

func TestSubmitScoreUnclaimedWinner(t *testing.T) {
	f := newFixture(t)
	game := f.lockedGame()

	result, err := f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q1", HomeScore: 0, AwayScore: 0})
	require.NoError(t, err)
	assert.Empty(t, result.Winner.UserID)
	assert.Equal(t, SquareAvailable, result.Winner.State)
	assert.NotEmpty(t, result.Winner.SquareID)
}

func TestSubmitScoreResolvedPeriodIsFinal(t *testing.T) {
	f := newFixture(t)
	game := f.lockedGame()

	first, err := f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q1", HomeScore: 17, AwayScore: 24})
	require.NoError(t, err)
	auditCount := len(f.ledger.Entries())

	again, err := f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q1", HomeScore: 17, AwayScore: 24})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Winner, again.Winner)

	_, err = f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q1", HomeScore: 21, AwayScore: 24})
	assert.Equal(t, codes.FailedPrecondition, Code(err))

	stored, err := f.engine.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Winner, stored.WinnerSnapshot["Q1"])
	assert.Len(t, stored.WinnerSnapshot, 1)
	assert.Len(t, f.store.ScoreEvents(game.ID), 1)
	assert.Len(t, f.ledger.Entries(), auditCount)

	_, err = f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q2", HomeScore: 21, AwayScore: 24})
	require.NoError(t, err)
	stored, err = f.engine.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, stored.WinnerSnapshot, 2)
}

func TestSubmitScoreRequiresLockedGame(t *testing.T) {
	f := newFixture(t)
	game := f.createGame()

	_, err := f.engine.SubmitScore(f.ctx, adminCaller, game.ID, ScoreInput{Period: "Q1", HomeScore: 7, AwayScore: 3})
	assert.Equal(t, codes.FailedPrecondition, Code(err))
	assert.Empty(t, f.store.ScoreEvents(game.ID))
}

func TestSubmitScoreRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	game := f.lockedGame()

	cases := []struct {
		name   string
		caller Caller
		in     ScoreInput
		want   codes.Code
	}{
		{"no caller", Caller{}, ScoreInput{Period: "Q1"}, codes.Unauthenticated},
		{"not admin", alice, ScoreInput{Period: "Q1"}, codes.PermissionDenied},
		{"empty period", adminCaller, ScoreInput{Period: " "}, codes.InvalidArgument},
		{"bad period", adminCaller, ScoreInput{Period: "Q1; drop"}, codes.InvalidArgument},
		{"negative home", adminCaller, ScoreInput{Period: "Q1", HomeScore: -3}, codes.InvalidArgument},
		{"huge away", adminCaller, ScoreInput{Period: "Q1", AwayScore: 5000}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.SubmitScore(f.ctx, tc.caller, game.ID, tc.in)
			assert.Equal(t, tc.want, Code(err))
		})
	}
	stored, err := f.engine.GetGame(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.WinnerSnapshot)
}
