package board

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// squareTransition describes one edge of the square state machine. Every
// public square operation is the same shape: authorize, read game and
// square in one transaction, check the source state, mutate, commit, audit.
type squareTransition struct {
	op          string
	auditType   string
	admin       bool
	requireOpen bool
	from        []string
	apply       func(square *Square, caller Caller, now time.Time) error
	payload     func(before, after Square) map[string]any
}

func (e *Engine) transitionSquare(ctx context.Context, caller Caller, gameID, squareID string, t squareTransition) (result Square, err error) {
	ctx, span := e.startSpan(ctx, "board."+t.op,
		attribute.String("game.id", gameID),
		attribute.String("square.id", squareID),
	)
	defer func() { endSpan(span, err) }()

	if t.admin {
		err = requireAdmin(caller)
	} else {
		err = requireCaller(caller)
	}
	if err != nil {
		return Square{}, err
	}
	gameID, squareID, err = validateSquareRef(gameID, squareID)
	if err != nil {
		return Square{}, err
	}

	now := e.now()
	var before Square
	err = e.runTx(ctx, t.op, func(tx Tx) error {
		game, err := tx.Game(gameID)
		if errors.Is(err, ErrNotFound) {
			return errNotFound("game not found")
		}
		if err != nil {
			return err
		}
		if t.requireOpen && game.Status != GameOpen {
			return errFailedPrecondition("game must be open")
		}

		square, err := tx.Square(gameID, squareID)
		if errors.Is(err, ErrNotFound) {
			return errNotFound("square not found")
		}
		if err != nil {
			return err
		}
		if !square.validCoordinates() {
			return errInvalidArgument("square has invalid coordinates")
		}
		if !slices.Contains(t.from, square.State) {
			return errFailedPrecondition("square is %s, expected %s", square.State, strings.Join(t.from, " or "))
		}

		before = square
		if err := t.apply(&square, caller, now); err != nil {
			return err
		}
		if err := tx.PutSquare(square); err != nil {
			return err
		}
		result = square
		return nil
	})
	if err != nil {
		return Square{}, err
	}

	e.audit(ctx, AuditEntry{
		Type:        t.auditType,
		ActorUserID: caller.UserID,
		Target:      AuditTarget{GameID: gameID, SquareID: squareID},
		Payload:     t.payload(before, result),
	})
	return result, nil
}

// ReserveSquare places a hold on an available square for the caller.
func (e *Engine) ReserveSquare(ctx context.Context, caller Caller, gameID, squareID string) (Square, error) {
	hold := e.hold
	return e.transitionSquare(ctx, caller, gameID, squareID, squareTransition{
		op:          "ReserveSquare",
		auditType:   AuditSquareReserved,
		requireOpen: true,
		from:        []string{SquareAvailable},
		apply: func(square *Square, caller Caller, now time.Time) error {
			until := now.Add(hold)
			square.State = SquareReserved
			square.UserID = caller.UserID
			square.ReservedAt = &now
			square.ReservedUntil = &until
			return nil
		},
		payload: func(_, after Square) map[string]any {
			return map[string]any{
				"reserved_until": after.ReservedUntil.Format(time.RFC3339Nano),
				"note":           "user reservation",
			}
		},
	})
}

// ConfirmPaymentIntent moves the caller's own live hold to pending_payment.
func (e *Engine) ConfirmPaymentIntent(ctx context.Context, caller Caller, gameID, squareID string) (Square, error) {
	return e.transitionSquare(ctx, caller, gameID, squareID, squareTransition{
		op:          "ConfirmPaymentIntent",
		auditType:   AuditPaymentIntentConfirmed,
		requireOpen: true,
		from:        []string{SquareReserved},
		apply: func(square *Square, caller Caller, now time.Time) error {
			if square.UserID != caller.UserID {
				return errPermissionDenied("square is reserved by another participant")
			}
			if square.ReservedUntil != nil && !now.Before(*square.ReservedUntil) {
				return errFailedPrecondition("reservation expired")
			}
			square.State = SquarePendingPayment
			square.ReservedUntil = nil
			return nil
		},
		payload: func(before, _ Square) map[string]any {
			payload := map[string]any{}
			if before.ReservedUntil != nil {
				payload["reserved_until"] = before.ReservedUntil.Format(time.RFC3339Nano)
			}
			return payload
		},
	})
}

// AdminConfirmPayment marks a pending payment as received.
func (e *Engine) AdminConfirmPayment(ctx context.Context, caller Caller, gameID, squareID string) (Square, error) {
	return e.transitionSquare(ctx, caller, gameID, squareID, squareTransition{
		op:        "AdminConfirmPayment",
		auditType: AuditPaymentConfirmed,
		admin:     true,
		from:      []string{SquarePendingPayment},
		apply: func(square *Square, _ Caller, _ time.Time) error {
			square.State = SquareConfirmed
			return nil
		},
		payload: func(_, after Square) map[string]any {
			return map[string]any{"user_id": after.UserID}
		},
	})
}

// AdminVoidSquare voids an unpaid claim and reclaims the square in the same
// transaction, so void is never observable as a stored state.
func (e *Engine) AdminVoidSquare(ctx context.Context, caller Caller, gameID, squareID, reason string) (Square, error) {
	reason = strings.TrimSpace(reason)
	return e.transitionSquare(ctx, caller, gameID, squareID, squareTransition{
		op:        "AdminVoidSquare",
		auditType: AuditSquareVoided,
		admin:     true,
		from:      []string{SquareReserved, SquarePendingPayment},
		apply: func(square *Square, _ Caller, _ time.Time) error {
			square.State = SquareVoid
			square.release()
			return nil
		},
		payload: func(before, after Square) map[string]any {
			payload := map[string]any{
				"previous_state":   before.State,
				"previous_user_id": before.UserID,
				"transition":       SquareVoid + "->" + after.State,
			}
			if reason != "" {
				payload["reason"] = reason
			}
			return payload
		},
	})
}

// AdminProxyAssignSquare records an offline claim, taking an available
// square straight to confirmed for userID.
func (e *Engine) AdminProxyAssignSquare(ctx context.Context, caller Caller, gameID, squareID, userID string) (Square, error) {
	if err := requireAdmin(caller); err != nil {
		return Square{}, err
	}
	owner, err := validateUserID(userID)
	if err != nil {
		return Square{}, err
	}
	return e.transitionSquare(ctx, caller, gameID, squareID, squareTransition{
		op:          "AdminProxyAssignSquare",
		auditType:   AuditSquareProxyAssigned,
		admin:       true,
		requireOpen: true,
		from:        []string{SquareAvailable},
		apply: func(square *Square, _ Caller, _ time.Time) error {
			square.State = SquareConfirmed
			square.UserID = owner
			square.ReservedAt = nil
			square.ReservedUntil = nil
			return nil
		},
		payload: func(_, after Square) map[string]any {
			return map[string]any{"user_id": after.UserID}
		},
	})
}
