package board

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same optimistic semantics as
// the Postgres store. It backs tests and database-less runs.
type MemoryStore struct {
	mu          sync.Mutex
	games       map[string]Game
	squares     map[string]Square
	gameSquares map[string][]string
	scores      []ScoreEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:       make(map[string]Game),
		squares:     make(map[string]Square),
		gameSquares: make(map[string][]string),
	}
}

func (s *MemoryStore) RunTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{
		store:       s,
		readGames:   make(map[string]int64),
		readSquares: make(map[string]int64),
		games:       make(map[string]Game),
		squares:     make(map[string]Square),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, version := range tx.readGames {
		current, ok := s.games[id]
		if !ok || current.Version != version {
			return ErrConflict
		}
	}
	for id, version := range tx.readSquares {
		current, ok := s.squares[id]
		if !ok || current.Version != version {
			return ErrConflict
		}
	}
	for _, created := range tx.created {
		if _, exists := s.games[created.game.ID]; exists {
			return ErrConflict
		}
	}

	for _, created := range tx.created {
		game := copyGame(created.game)
		game.Version = 1
		s.games[game.ID] = game
		ids := make([]string, 0, len(created.squares))
		for _, square := range created.squares {
			square.Version = 1
			s.squares[square.ID] = square
			ids = append(ids, square.ID)
		}
		s.gameSquares[game.ID] = ids
	}
	for id, game := range tx.games {
		game.Version = s.games[id].Version + 1
		s.games[id] = copyGame(game)
	}
	for id, square := range tx.squares {
		square.Version = s.squares[id].Version + 1
		s.squares[id] = square
	}
	s.scores = append(s.scores, tx.scores...)
	return nil
}

func (s *MemoryStore) Game(ctx context.Context, gameID string) (Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return Game{}, ErrNotFound
	}
	return copyGame(game), nil
}

func (s *MemoryStore) Squares(ctx context.Context, gameID string) ([]Square, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, ErrNotFound
	}
	list := make([]Square, 0, len(s.gameSquares[gameID]))
	for _, id := range s.gameSquares[gameID] {
		list = append(list, s.squares[id])
	}
	sortSquares(list)
	return list, nil
}

func (s *MemoryStore) ExpiredReservations(ctx context.Context, now time.Time) ([]Square, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []Square
	for _, square := range s.squares {
		if square.State != SquareReserved || square.ReservedUntil == nil {
			continue
		}
		if !square.ReservedUntil.After(now) {
			list = append(list, square)
		}
	}
	sortSquares(list)
	return list, nil
}

func (s *MemoryStore) GamesDueForLock(ctx context.Context, now time.Time) ([]Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []Game
	for _, game := range s.games {
		if game.Status == GameOpen && !game.ClosesAt.After(now) {
			list = append(list, copyGame(game))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ClosesAt.Before(list[j].ClosesAt)
	})
	return list, nil
}

// ScoreEvents returns the recorded score events for a game in write order.
func (s *MemoryStore) ScoreEvents(gameID string) []ScoreEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []ScoreEvent
	for _, event := range s.scores {
		if event.GameID == gameID {
			list = append(list, event)
		}
	}
	return list
}

type createdGame struct {
	game    Game
	squares []Square
}

type memoryTx struct {
	store       *MemoryStore
	readGames   map[string]int64
	readSquares map[string]int64
	games       map[string]Game
	squares     map[string]Square
	created     []createdGame
	scores      []ScoreEvent
}

func (tx *memoryTx) Game(gameID string) (Game, error) {
	if game, ok := tx.games[gameID]; ok {
		return copyGame(game), nil
	}
	tx.store.mu.Lock()
	game, ok := tx.store.games[gameID]
	tx.store.mu.Unlock()
	if !ok {
		return Game{}, ErrNotFound
	}
	tx.readGames[gameID] = game.Version
	return copyGame(game), nil
}

func (tx *memoryTx) GameForUpdate(gameID string) (Game, error) {
	return tx.Game(gameID)
}

func (tx *memoryTx) Square(gameID, squareID string) (Square, error) {
	if square, ok := tx.squares[squareID]; ok {
		return square, nil
	}
	tx.store.mu.Lock()
	square, ok := tx.store.squares[squareID]
	tx.store.mu.Unlock()
	if !ok || square.GameID != gameID {
		return Square{}, ErrNotFound
	}
	tx.readSquares[squareID] = square.Version
	return square, nil
}

func (tx *memoryTx) SquareAt(gameID string, row, col int) (Square, error) {
	tx.store.mu.Lock()
	var found *Square
	for _, id := range tx.store.gameSquares[gameID] {
		square := tx.store.squares[id]
		if square.Row == row && square.Col == col {
			found = &square
			break
		}
	}
	tx.store.mu.Unlock()
	if found == nil {
		return Square{}, ErrNotFound
	}
	return tx.Square(gameID, found.ID)
}

func (tx *memoryTx) CreateGame(game Game, squares []Square) error {
	tx.created = append(tx.created, createdGame{
		game:    copyGame(game),
		squares: slices.Clone(squares),
	})
	return nil
}

func (tx *memoryTx) PutGame(game Game) error {
	version, ok := tx.readGames[game.ID]
	if !ok {
		return fmt.Errorf("put game %s: not read in transaction", game.ID)
	}
	if game.Version != version {
		return ErrConflict
	}
	tx.games[game.ID] = copyGame(game)
	return nil
}

func (tx *memoryTx) PutSquare(square Square) error {
	version, ok := tx.readSquares[square.ID]
	if !ok {
		return fmt.Errorf("put square %s: not read in transaction", square.ID)
	}
	if square.Version != version {
		return ErrConflict
	}
	tx.squares[square.ID] = square
	return nil
}

func (tx *memoryTx) AddScoreEvent(event ScoreEvent) error {
	tx.scores = append(tx.scores, event)
	return nil
}

func copyGame(game Game) Game {
	game.RowDigits = slices.Clone(game.RowDigits)
	game.ColDigits = slices.Clone(game.ColDigits)
	game.WinnerSnapshot = maps.Clone(game.WinnerSnapshot)
	if game.WinnerSnapshot == nil {
		game.WinnerSnapshot = make(map[string]Winner)
	}
	return game
}

func sortSquares(list []Square) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].GameID != list[j].GameID {
			return list[i].GameID < list[j].GameID
		}
		if list[i].Row != list[j].Row {
			return list[i].Row < list[j].Row
		}
		return list[i].Col < list[j].Col
	})
}

// MemoryLedger keeps audit entries in process. FailWith makes every append
// fail, which tests use to check the engine never surfaces ledger errors.
type MemoryLedger struct {
	mu       sync.Mutex
	clock    func() time.Time
	last     time.Time
	entries  []AuditEntry
	FailWith error
}

func NewMemoryLedger(clock func() time.Time) *MemoryLedger {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLedger{clock: clock}
}

func (l *MemoryLedger) Append(ctx context.Context, entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWith != nil {
		return l.FailWith
	}
	stamp := l.clock().UTC()
	if !stamp.After(l.last) {
		stamp = l.last.Add(time.Nanosecond)
	}
	l.last = stamp
	entry.Timestamp = stamp
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Payload = maps.Clone(entry.Payload)
	l.entries = append(l.entries, entry)
	return nil
}

func (l *MemoryLedger) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// EntriesFor returns the entries targeting one square.
func (l *MemoryLedger) EntriesFor(squareID string) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var list []AuditEntry
	for _, entry := range l.entries {
		if entry.Target.SquareID == squareID {
			list = append(list, entry)
		}
	}
	return list
}
