package board

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// SweepResult summarizes one reconciliation pass. Skipped counts items whose
// precondition no longer held at write time, including lost races.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ReleaseExpiredReservations returns every reserved square whose hold has
// elapsed to available. Each square is reclaimed in its own transaction
// that re-checks the hold, so a square paid for after the scan is left alone.
func (e *Engine) ReleaseExpiredReservations(ctx context.Context) (result SweepResult, err error) {
	ctx, span := e.startSpan(ctx, "board.ReleaseExpiredReservations")
	defer func() { endSpan(span, err) }()

	now := e.now()
	expired, err := e.store.ExpiredReservations(ctx, now)
	if err != nil {
		return result, errInternal("scan expired reservations failed", err)
	}
	result.Scanned = len(expired)
	for _, candidate := range expired {
		if ctx.Err() != nil {
			return result, errInternal("sweep interrupted", ctx.Err())
		}
		released, err := e.releaseExpired(ctx, candidate, now)
		switch {
		case err == nil && released:
			result.Applied++
		case err == nil, Code(err) == codes.Aborted:
			result.Skipped++
		default:
			result.Failed++
			e.logger.Error("release expired reservation failed",
				zap.String("game_id", candidate.GameID),
				zap.String("square_id", candidate.ID),
				zap.Error(err),
			)
		}
	}
	if result.Scanned > 0 {
		e.logger.Info("expired reservations swept",
			zap.Int("scanned", result.Scanned),
			zap.Int("released", result.Applied),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (e *Engine) releaseExpired(ctx context.Context, candidate Square, now time.Time) (bool, error) {
	var before Square
	released := false
	err := e.runTx(ctx, "ReleaseExpiredReservation", func(tx Tx) error {
		square, err := tx.Square(candidate.GameID, candidate.ID)
		if err != nil {
			return err
		}
		if square.State != SquareReserved || square.ReservedUntil == nil || square.ReservedUntil.After(now) {
			return nil
		}
		before = square
		square.release()
		if err := tx.PutSquare(square); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil || !released {
		return false, err
	}

	e.audit(ctx, AuditEntry{
		Type:   AuditReservationExpired,
		Target: AuditTarget{GameID: before.GameID, SquareID: before.ID},
		Payload: map[string]any{
			"user_id":        before.UserID,
			"reserved_until": before.ReservedUntil.Format(time.RFC3339Nano),
		},
	})
	return true, nil
}

// LockGamesAtCloseTime locks every open game whose close time has passed.
// Games locked concurrently by an administrator count as skipped.
func (e *Engine) LockGamesAtCloseTime(ctx context.Context) (result SweepResult, err error) {
	ctx, span := e.startSpan(ctx, "board.LockGamesAtCloseTime")
	defer func() { endSpan(span, err) }()

	due, err := e.store.GamesDueForLock(ctx, e.now())
	if err != nil {
		return result, errInternal("scan games due for lock failed", err)
	}
	result.Scanned = len(due)
	for _, game := range due {
		if ctx.Err() != nil {
			return result, errInternal("sweep interrupted", ctx.Err())
		}
		_, err := e.lockGame(ctx, Caller{}, game.ID, lockTriggerCloseTime)
		switch code := Code(err); code {
		case codes.OK:
			result.Applied++
		case codes.FailedPrecondition, codes.Aborted:
			result.Skipped++
		default:
			result.Failed++
			e.logger.Error("auto-lock failed", zap.String("game_id", game.ID), zap.Error(err))
		}
	}
	if result.Scanned > 0 {
		e.logger.Info("games auto-locked",
			zap.Int("scanned", result.Scanned),
			zap.Int("locked", result.Applied),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// Sweeper runs both reconciliation passes on fixed intervals.
type Sweeper struct {
	engine      *Engine
	expiryEvery time.Duration
	lockEvery   time.Duration
	logger      *zap.Logger
}

func NewSweeper(engine *Engine, expiryEvery, lockEvery time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		engine:      engine,
		expiryEvery: expiryEvery,
		lockEvery:   lockEvery,
		logger:      logger,
	}
}

// Run executes one pass of each sweep immediately and then on every tick
// until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.expiryEvery <= 0 || s.lockEvery <= 0 {
		return errors.New("sweep intervals must be positive")
	}
	expiryTicker := time.NewTicker(s.expiryEvery)
	defer expiryTicker.Stop()
	lockTicker := time.NewTicker(s.lockEvery)
	defer lockTicker.Stop()

	s.lockPass(ctx)
	s.expiryPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lockTicker.C:
			s.lockPass(ctx)
		case <-expiryTicker.C:
			s.expiryPass(ctx)
		}
	}
}

func (s *Sweeper) expiryPass(ctx context.Context) {
	if _, err := s.engine.ReleaseExpiredReservations(ctx); err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}

func (s *Sweeper) lockPass(ctx context.Context) {
	if _, err := s.engine.LockGamesAtCloseTime(ctx); err != nil {
		s.logger.Error("auto-lock sweep failed", zap.Error(err))
	}
}
