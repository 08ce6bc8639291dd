package board

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	lockTriggerManual    = "manual"
	lockTriggerCloseTime = "close_time"
)

// LockGame closes an open game and assigns its digit grid. The grid is
// written exactly once; locking a locked game fails without touching it.
func (e *Engine) LockGame(ctx context.Context, caller Caller, gameID string) (Game, error) {
	if err := requireAdmin(caller); err != nil {
		return Game{}, err
	}
	return e.lockGame(ctx, caller, gameID, lockTriggerManual)
}

func (e *Engine) lockGame(ctx context.Context, caller Caller, gameID, trigger string) (game Game, err error) {
	ctx, span := e.startSpan(ctx, "board.LockGame",
		attribute.String("game.id", gameID),
		attribute.String("lock.trigger", trigger),
	)
	defer func() { endSpan(span, err) }()

	gameID, err = validateID("gameId", gameID)
	if err != nil {
		return Game{}, err
	}
	rowDigits, err := shuffleDigits(e.random)
	if err != nil {
		return Game{}, errInternal("generate row digits failed", err)
	}
	colDigits, err := shuffleDigits(e.random)
	if err != nil {
		return Game{}, errInternal("generate column digits failed", err)
	}

	now := e.now()
	err = e.runTx(ctx, "LockGame", func(tx Tx) error {
		current, err := tx.GameForUpdate(gameID)
		if errors.Is(err, ErrNotFound) {
			return errNotFound("game not found")
		}
		if err != nil {
			return err
		}
		if current.Status != GameOpen {
			return errFailedPrecondition("game is already %s", current.Status)
		}
		if trigger == lockTriggerCloseTime && current.ClosesAt.After(now) {
			return errFailedPrecondition("game does not close until %s", current.ClosesAt.Format(time.RFC3339))
		}
		current.Status = GameLocked
		current.RowDigits = rowDigits
		current.ColDigits = colDigits
		current.LockedAt = &now
		if err := tx.PutGame(current); err != nil {
			return err
		}
		game = current
		return nil
	})
	if err != nil {
		return Game{}, err
	}

	e.audit(ctx, AuditEntry{
		Type:        AuditGameLocked,
		ActorUserID: caller.UserID,
		Target:      AuditTarget{GameID: gameID},
		Payload: map[string]any{
			"row_digits": rowDigits,
			"col_digits": colDigits,
			"trigger":    trigger,
		},
	})
	e.logger.Info("game locked",
		zap.String("game_id", gameID),
		zap.String("trigger", trigger),
		zap.Ints("row_digits", rowDigits),
		zap.Ints("col_digits", colDigits),
	)
	return game, nil
}

// shuffleDigits returns a uniformly random permutation of 0-9 using a
// Fisher-Yates shuffle driven by r.
func shuffleDigits(r io.Reader) ([]int, error) {
	digits := make([]int, GridSize)
	for i := range digits {
		digits[i] = i
	}
	for i := len(digits) - 1; i > 0; i-- {
		n, err := rand.Int(r, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("read random index: %w", err)
		}
		j := int(n.Int64())
		digits[i], digits[j] = digits[j], digits[i]
	}
	return digits, nil
}

// isDigitPermutation reports whether digits holds each of 0-9 exactly once.
func isDigitPermutation(digits []int) bool {
	if len(digits) != GridSize {
		return false
	}
	var seen [GridSize]bool
	for _, d := range digits {
		if d < 0 || d >= GridSize || seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}
