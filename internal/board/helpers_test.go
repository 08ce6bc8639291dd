package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	adminCaller = Caller{UserID: "admin-1", Admin: true}
	alice       = Caller{UserID: "user-alice"}
	bob         = Caller{UserID: "user-bob"}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 8, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *MemoryStore
	ledger *MemoryLedger
	clock  *testClock
	engine *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := newTestClock()
	store := NewMemoryStore()
	ledger := NewMemoryLedger(clock.Now)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  store,
		ledger: ledger,
		clock:  clock,
		engine: New(store, ledger, opts...),
	}
}

func (f *fixture) createGame() Game {
	f.t.Helper()
	game, err := f.engine.CreateGame(f.ctx, adminCaller, "Big Game", f.clock.Now().Add(2*time.Hour))
	require.NoError(f.t, err)
	return game
}

func (f *fixture) lockedGame() Game {
	f.t.Helper()
	game := f.createGame()
	locked, err := f.engine.LockGame(f.ctx, adminCaller, game.ID)
	require.NoError(f.t, err)
	return locked
}

func (f *fixture) squareAt(gameID string, row, col int) Square {
	f.t.Helper()
	squares, err := f.store.Squares(f.ctx, gameID)
	require.NoError(f.t, err)
	for _, square := range squares {
		if square.Row == row && square.Col == col {
			return square
		}
	}
	f.t.Fatalf("expected square at row=%d col=%d", row, col)
	return Square{}
}

func (f *fixture) reload(square Square) Square {
	f.t.Helper()
	return f.squareAt(square.GameID, square.Row, square.Col)
}

// interleavingStore runs onGameRead once, right after the next in-transaction
// game read, so a test can commit a competing transaction between that
// transaction's read and its commit.
type interleavingStore struct {
	*MemoryStore
	mu         sync.Mutex
	onGameRead func()
}

func (s *interleavingStore) arm(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGameRead = fn
}

func (s *interleavingStore) RunTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.MemoryStore.RunTx(ctx, func(tx Tx) error {
		return fn(&interleavingTx{Tx: tx, store: s})
	})
}

type interleavingTx struct {
	Tx
	store *interleavingStore
}

func (tx *interleavingTx) Game(gameID string) (Game, error) {
	game, err := tx.Tx.Game(gameID)
	tx.store.fire()
	return game, err
}

func (tx *interleavingTx) GameForUpdate(gameID string) (Game, error) {
	game, err := tx.Tx.GameForUpdate(gameID)
	tx.store.fire()
	return game, err
}

func (s *interleavingStore) fire() {
	s.mu.Lock()
	hook := s.onGameRead
	s.onGameRead = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// newInterleavingFixture is newFixture with the engine running on an
// interleavingStore.
func newInterleavingFixture(t *testing.T) (*fixture, *interleavingStore) {
	t.Helper()
	f := newFixture(t)
	store := &interleavingStore{MemoryStore: f.store}
	f.engine = New(store, f.ledger, WithClock(f.clock.Now))
	return f, store
}
