package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"squares/internal/board"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	store  *board.MemoryStore
	ledger *board.MemoryLedger
	engine *board.Engine
	now    time.Time
}

func newMemoryBackend() *memoryBackend {
	b := &memoryBackend{
		store:  board.NewMemoryStore(),
		ledger: board.NewMemoryLedger(nil),
		now:    time.Date(2026, 2, 8, 18, 0, 0, 0, time.UTC),
	}
	b.engine = board.New(b.store, b.ledger, board.WithClock(func() time.Time { return b.now }))
	return b
}

func (b *memoryBackend) open(ctx context.Context) (*Backend, error) {
	return &Backend{Engine: b.engine}, nil
}

func execute(t *testing.T, b *memoryBackend, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(b.open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, path := range [][]string{
		{"games", "create"},
		{"games", "load"},
		{"games", "show"},
		{"lock"},
		{"score"},
		{"sweep", "expire"},
		{"sweep", "autolock"},
		{"token"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "create"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestMigrateCreate(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, newMemoryBackend(), "migrate", "create", "--dir", dir, "--name", "add_payouts")
	require.NoError(t, err)
	assert.Contains(t, out, "created ")

	matches, err := filepath.Glob(filepath.Join(dir, "*_add_payouts.*.sql"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	_, err = execute(t, newMemoryBackend(), "migrate", "create", "--dir", dir)
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, newMemoryBackend(), "--format", "xml", "sweep", "expire")
	assert.ErrorContains(t, err, "invalid format")
}

func TestGamesCreateLockScore(t *testing.T) {
	b := newMemoryBackend()
	out, err := execute(t, b, "--format", "json", "games", "create", "--name", "Big Game", "--closes-at", "2026-02-08T20:00:00Z")
	require.NoError(t, err)

	var created struct {
		Status string     `json:"status"`
		Data   board.Game `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "ok", created.Status)
	assert.Equal(t, board.GameOpen, created.Data.Status)
	gameID := created.Data.ID

	out, err = execute(t, b, "lock", gameID)
	require.NoError(t, err)
	assert.Contains(t, out, "locked game "+gameID)

	out, err = execute(t, b, "score", gameID, "--period", "Q1", "--home", "17", "--away", "24")
	require.NoError(t, err)
	assert.Contains(t, out, "Q1 17-24")

	out, err = execute(t, b, "score", gameID, "--period", "Q1", "--home", "17", "--away", "24")
	require.NoError(t, err)
	assert.Contains(t, out, "already recorded")

	_, err = execute(t, b, "score", gameID, "--period", "Q1", "--home", "10", "--away", "24")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = execute(t, b, "games", "show", gameID)
	require.NoError(t, err)
	assert.Contains(t, out, "status=locked")
	assert.Contains(t, out, "0 of 100 squares claimed")

	entries := b.ledger.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "squaresctl", entries[0].ActorUserID)
}

func TestGamesShowListsPeriodsInOrder(t *testing.T) {
	b := newMemoryBackend()
	out, err := execute(t, b, "--format", "json", "games", "create", "--name", "Big Game", "--closes-at", "2026-02-08T20:00:00Z")
	require.NoError(t, err)
	var created struct {
		Data board.Game `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	gameID := created.Data.ID

	_, err = execute(t, b, "lock", gameID)
	require.NoError(t, err)
	for _, period := range []string{"Q4", "Q2", "Q3", "Q1"} {
		_, err = execute(t, b, "score", gameID, "--period", period, "--home", "10", "--away", "3")
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		out, err = execute(t, b, "games", "show", gameID)
		require.NoError(t, err)
		q1 := strings.Index(out, "Q1: ")
		q2 := strings.Index(out, "Q2: ")
		q3 := strings.Index(out, "Q3: ")
		q4 := strings.Index(out, "Q4: ")
		require.True(t, q1 >= 0 && q2 >= 0 && q3 >= 0 && q4 >= 0, out)
		assert.True(t, q1 < q2 && q2 < q3 && q3 < q4, out)
	}
}

func TestGamesLoad(t *testing.T) {
	b := newMemoryBackend()
	path := filepath.Join(t.TempDir(), "games.csv")
	csv := "name,closes_at\nBig Game,2026-02-08T20:00:00Z\n\nPlayoff,2026-02-09T01:00:00Z\nStale,2026-02-01T01:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	out, err := execute(t, b, "games", "load", "--file", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "2 created, 1 failed")
	assert.Contains(t, out, "line 5: closesAt must be in the future")

	due, err := b.store.GamesDueForLock(context.Background(), b.now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestReadGamesErrors(t *testing.T) {
	_, err := readGames(strings.NewReader("name,closes_at\n"))
	assert.ErrorContains(t, err, "no games found")

	_, err = readGames(strings.NewReader("Big Game,2026-02-08T20:00:00Z\nBad,tomorrow\n"))
	assert.ErrorContains(t, err, "line 2")

	records, err := readGames(strings.NewReader("Big Game, 2026-02-08T20:00:00Z\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Big Game", records[0].Name)
	assert.Equal(t, 1, records[0].Line)
}

func TestSweepCommands(t *testing.T) {
	b := newMemoryBackend()
	game, err := b.engine.CreateGame(context.Background(), board.Caller{UserID: "admin-1", Admin: true}, "Big Game", b.now.Add(time.Hour))
	require.NoError(t, err)
	squares, err := b.engine.ListSquares(context.Background(), game.ID)
	require.NoError(t, err)
	_, err = b.engine.ReserveSquare(context.Background(), board.Caller{UserID: "user-alice"}, game.ID, squares[0].ID)
	require.NoError(t, err)

	b.now = b.now.Add(2 * time.Hour)

	out, err := execute(t, b, "sweep", "expire")
	require.NoError(t, err)
	assert.Contains(t, out, "expire: scanned=1 applied=1 skipped=0 failed=0")

	out, err = execute(t, b, "--format", "json", "sweep", "autolock")
	require.NoError(t, err)
	var resp struct {
		Data board.SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, board.SweepResult{Scanned: 1, Applied: 1}, resp.Data)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_SECRET", "cli-secret")
	out, err := execute(t, newMemoryBackend(), "token", "--user", "admin-1", "--admin")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out), ".")))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open backend", assert.AnError)))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
