package board

import (
	"context"
	"time"
)

// Store is the game and square storage the engine runs against. All
// read-modify-write sequences go through RunTx; the List methods are
// unguarded scans whose results must be re-validated inside a transaction
// before anything is written.
type Store interface {
	// RunTx executes fn inside one optimistic transaction. Versions of
	// every record read through the Tx are checked at commit and a
	// mismatch fails the whole transaction with ErrConflict.
	RunTx(ctx context.Context, fn func(tx Tx) error) error

	Game(ctx context.Context, gameID string) (Game, error)
	Squares(ctx context.Context, gameID string) ([]Square, error)
	ExpiredReservations(ctx context.Context, now time.Time) ([]Square, error)
	GamesDueForLock(ctx context.Context, now time.Time) ([]Game, error)
}

// Tx is the view of the store inside a transaction. Put methods take the
// record with the version it was read at.
type Tx interface {
	Game(gameID string) (Game, error)
	// GameForUpdate reads a game the transaction is going to write.
	GameForUpdate(gameID string) (Game, error)
	Square(gameID, squareID string) (Square, error)
	SquareAt(gameID string, row, col int) (Square, error)

	CreateGame(game Game, squares []Square) error
	PutGame(game Game) error
	PutSquare(square Square) error
	AddScoreEvent(event ScoreEvent) error
}

// Ledger is the append-only audit sink. The storage behind it assigns the
// entry timestamp at write time.
type Ledger interface {
	Append(ctx context.Context, entry AuditEntry) error
}
