package db

import (
	"context"
	"database/sql"
	"time"

	"squares/internal/board"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists games and squares in Postgres. Transactions run at
// REPEATABLE READ and every update is conditioned on the version the row
// was read at, so a lost race surfaces as board.ErrConflict.
type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) RunTx(ctx context.Context, fn func(tx board.Tx) error) error {
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&storeTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	return classify(err)
}

func (s *Store) Game(ctx context.Context, gameID string) (board.Game, error) {
	var record Game
	if err := s.conn.WithContext(ctx).First(&record, "id = ?", gameID).Error; err != nil {
		return board.Game{}, classify(err)
	}
	return record.toBoard()
}

func (s *Store) Squares(ctx context.Context, gameID string) ([]board.Square, error) {
	if _, err := s.Game(ctx, gameID); err != nil {
		return nil, err
	}
	var records []Square
	err := s.conn.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("row_index, col_index").
		Find(&records).Error
	if err != nil {
		return nil, classify(err)
	}
	return toBoardSquares(records), nil
}

func (s *Store) ExpiredReservations(ctx context.Context, now time.Time) ([]board.Square, error) {
	var records []Square
	err := s.conn.WithContext(ctx).
		Where("state = ? AND reserved_until IS NOT NULL AND reserved_until <= ?", board.SquareReserved, now.UTC()).
		Order("reserved_until").
		Find(&records).Error
	if err != nil {
		return nil, classify(err)
	}
	return toBoardSquares(records), nil
}

func (s *Store) GamesDueForLock(ctx context.Context, now time.Time) ([]board.Game, error) {
	var records []Game
	err := s.conn.WithContext(ctx).
		Where("status = ? AND closes_at <= ?", board.GameOpen, now.UTC()).
		Order("closes_at").
		Find(&records).Error
	if err != nil {
		return nil, classify(err)
	}
	games := make([]board.Game, 0, len(records))
	for _, record := range records {
		game, err := record.toBoard()
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

func toBoardSquares(records []Square) []board.Square {
	squares := make([]board.Square, 0, len(records))
	for _, record := range records {
		squares = append(squares, record.toBoard())
	}
	return squares
}

type storeTx struct {
	db *gorm.DB
}

// Game rows are read FOR SHARE so a concurrent lock or score waits for, or
// aborts, transactions that decided on the game's status.
func (tx *storeTx) Game(gameID string) (board.Game, error) {
	return tx.game(gameID, false)
}

// GameForUpdate takes the row lock up front so two writers of the same game
// queue instead of deadlocking on a shared lock.
func (tx *storeTx) GameForUpdate(gameID string) (board.Game, error) {
	return tx.game(gameID, true)
}

func (tx *storeTx) game(gameID string, forUpdate bool) (board.Game, error) {
	var record Game
	if err := lockGameRow(tx.db, forUpdate).First(&record, "id = ?", gameID).Error; err != nil {
		return board.Game{}, classify(err)
	}
	return record.toBoard()
}

func lockGameRow(db *gorm.DB, forUpdate bool) *gorm.DB {
	strength := "SHARE"
	if forUpdate {
		strength = "UPDATE"
	}
	return db.Clauses(clause.Locking{Strength: strength})
}

func (tx *storeTx) Square(gameID, squareID string) (board.Square, error) {
	var record Square
	err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, "id = ? AND game_id = ?", squareID, gameID).Error
	if err != nil {
		return board.Square{}, classify(err)
	}
	return record.toBoard(), nil
}

func (tx *storeTx) SquareAt(gameID string, row, col int) (board.Square, error) {
	var record Square
	err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, "game_id = ? AND row_index = ? AND col_index = ?", gameID, row, col).Error
	if err != nil {
		return board.Square{}, classify(err)
	}
	return record.toBoard(), nil
}

func (tx *storeTx) CreateGame(game board.Game, squares []board.Square) error {
	record, err := gameRecord(game)
	if err != nil {
		return err
	}
	record.Version = 1
	if err := tx.db.Omit("Squares").Create(&record).Error; err != nil {
		return err
	}
	rows := make([]Square, 0, len(squares))
	for _, square := range squares {
		row := squareRecord(square)
		row.Version = 1
		rows = append(rows, row)
	}
	return tx.db.CreateInBatches(rows, 100).Error
}

func (tx *storeTx) PutGame(game board.Game) error {
	record, err := gameRecord(game)
	if err != nil {
		return err
	}
	result := tx.db.Model(&Game{}).
		Where("id = ? AND version = ?", game.ID, game.Version).
		Updates(map[string]any{
			"status":          record.Status,
			"row_digits":      record.RowDigits,
			"col_digits":      record.ColDigits,
			"locked_at":       record.LockedAt,
			"winner_snapshot": record.WinnerSnapshot,
			"version":         game.Version + 1,
		})
	return versionedResult(result)
}

func (tx *storeTx) PutSquare(square board.Square) error {
	result := tx.db.Model(&Square{}).
		Where("id = ? AND version = ?", square.ID, square.Version).
		Updates(map[string]any{
			"state":          square.State,
			"user_id":        square.UserID,
			"reserved_at":    square.ReservedAt,
			"reserved_until": square.ReservedUntil,
			"version":        square.Version + 1,
		})
	return versionedResult(result)
}

func (tx *storeTx) AddScoreEvent(event board.ScoreEvent) error {
	record := scoreEventRecord(event)
	return tx.db.Create(&record).Error
}

func versionedResult(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return board.ErrConflict
	}
	return nil
}

var _ board.Store = (*Store)(nil)
