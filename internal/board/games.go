package board

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateGame opens a new game with its full grid of available squares.
func (e *Engine) CreateGame(ctx context.Context, caller Caller, name string, closesAt time.Time) (game Game, err error) {
	ctx, span := e.startSpan(ctx, "board.CreateGame")
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(caller); err != nil {
		return Game{}, err
	}
	name, err = validateGameName(name)
	if err != nil {
		return Game{}, err
	}
	now := e.now()
	if err := validateClosesAt(closesAt, now); err != nil {
		return Game{}, err
	}

	game = Game{
		ID:             uuid.NewString(),
		Name:           name,
		Status:         GameOpen,
		ClosesAt:       closesAt.UTC(),
		WinnerSnapshot: make(map[string]Winner),
		CreatedAt:      now,
	}
	squares := make([]Square, 0, GridSize*GridSize)
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			squares = append(squares, Square{
				ID:     uuid.NewString(),
				GameID: game.ID,
				Row:    row,
				Col:    col,
				State:  SquareAvailable,
			})
		}
	}
	span.SetAttributes(attribute.String("game.id", game.ID))

	err = e.runTx(ctx, "CreateGame", func(tx Tx) error {
		return tx.CreateGame(game, squares)
	})
	if err != nil {
		return Game{}, err
	}
	game.Version = 1

	e.audit(ctx, AuditEntry{
		Type:        AuditGameCreated,
		ActorUserID: caller.UserID,
		Target:      AuditTarget{GameID: game.ID},
		Payload: map[string]any{
			"name":      game.Name,
			"closes_at": game.ClosesAt.Format(time.RFC3339),
		},
	})
	e.logger.Info("game created", zap.String("game_id", game.ID), zap.Time("closes_at", game.ClosesAt))
	return game, nil
}

func (e *Engine) GetGame(ctx context.Context, gameID string) (Game, error) {
	gameID, err := validateID("gameId", gameID)
	if err != nil {
		return Game{}, err
	}
	game, err := e.store.Game(ctx, gameID)
	if errors.Is(err, ErrNotFound) {
		return Game{}, errNotFound("game not found")
	}
	if err != nil {
		return Game{}, errInternal("load game failed", err)
	}
	return game, nil
}

// ListSquares returns the game's squares in row-major order.
func (e *Engine) ListSquares(ctx context.Context, gameID string) ([]Square, error) {
	gameID, err := validateID("gameId", gameID)
	if err != nil {
		return nil, err
	}
	squares, err := e.store.Squares(ctx, gameID)
	if errors.Is(err, ErrNotFound) {
		return nil, errNotFound("game not found")
	}
	if err != nil {
		return nil, errInternal("load squares failed", err)
	}
	return squares, nil
}
