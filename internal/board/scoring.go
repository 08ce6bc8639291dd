package board

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ScoreInput struct {
	Period    string
	HomeScore int
	AwayScore int
}

type ScoreResult struct {
	GameID    string `json:"game_id"`
	Period    string `json:"period"`
	HomeDigit int    `json:"home_digit"`
	AwayDigit int    `json:"away_digit"`
	Winner    Winner `json:"winner"`
	// Duplicate is set when the period was already resolved with the same
	// scores and nothing was written.
	Duplicate bool `json:"duplicate"`
}

// SubmitScore resolves the winning square for one scoring period. The home
// score's last digit selects the row and the away score's last digit the
// column. A resolved period is final: resubmitting the same scores returns
// the stored winner, different scores are rejected.
func (e *Engine) SubmitScore(ctx context.Context, caller Caller, gameID string, in ScoreInput) (result ScoreResult, err error) {
	ctx, span := e.startSpan(ctx, "board.SubmitScore",
		attribute.String("game.id", gameID),
		attribute.String("score.period", in.Period),
	)
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(caller); err != nil {
		return ScoreResult{}, err
	}
	gameID, err = validateID("gameId", gameID)
	if err != nil {
		return ScoreResult{}, err
	}
	period, err := validatePeriod(in.Period)
	if err != nil {
		return ScoreResult{}, err
	}
	if err := validateScore("homeScore", in.HomeScore); err != nil {
		return ScoreResult{}, err
	}
	if err := validateScore("awayScore", in.AwayScore); err != nil {
		return ScoreResult{}, err
	}

	homeDigit := in.HomeScore % GridSize
	awayDigit := in.AwayScore % GridSize
	result = ScoreResult{
		GameID:    gameID,
		Period:    period,
		HomeDigit: homeDigit,
		AwayDigit: awayDigit,
	}
	now := e.now()

	err = e.runTx(ctx, "SubmitScore", func(tx Tx) error {
		game, err := tx.GameForUpdate(gameID)
		if errors.Is(err, ErrNotFound) {
			return errNotFound("game not found")
		}
		if err != nil {
			return err
		}
		if game.Status != GameLocked {
			return errFailedPrecondition("game must be locked before scores are submitted")
		}
		if !isDigitPermutation(game.RowDigits) || !isDigitPermutation(game.ColDigits) {
			return errInternal("game digit grid is corrupt", nil)
		}
		if existing, ok := game.WinnerSnapshot[period]; ok {
			if existing.HomeScore == in.HomeScore && existing.AwayScore == in.AwayScore {
				result.Winner = existing
				result.Duplicate = true
				return nil
			}
			return errFailedPrecondition("period %s is already resolved", period)
		}

		row := slices.Index(game.RowDigits, homeDigit)
		col := slices.Index(game.ColDigits, awayDigit)
		square, err := tx.SquareAt(gameID, row, col)
		if errors.Is(err, ErrNotFound) {
			return errNotFound("winning square not found")
		}
		if err != nil {
			return err
		}

		winner := Winner{
			SquareID:  square.ID,
			Row:       row,
			Col:       col,
			UserID:    square.UserID,
			State:     square.State,
			HomeScore: in.HomeScore,
			AwayScore: in.AwayScore,
		}
		game.WinnerSnapshot[period] = winner
		if err := tx.PutGame(game); err != nil {
			return err
		}
		if err := tx.AddScoreEvent(ScoreEvent{
			ID:          uuid.NewString(),
			GameID:      gameID,
			Period:      period,
			HomeScore:   in.HomeScore,
			AwayScore:   in.AwayScore,
			HomeDigit:   homeDigit,
			AwayDigit:   awayDigit,
			SquareID:    square.ID,
			SubmittedBy: caller.UserID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		result.Winner = winner
		return nil
	})
	if err != nil {
		return ScoreResult{}, err
	}
	if result.Duplicate {
		e.logger.Info("duplicate score ignored", zap.String("game_id", gameID), zap.String("period", period))
		return result, nil
	}

	e.audit(ctx, AuditEntry{
		Type:        AuditScoreSubmitted,
		ActorUserID: caller.UserID,
		Target:      AuditTarget{GameID: gameID, SquareID: result.Winner.SquareID},
		Payload: map[string]any{
			"period":     period,
			"home_score": in.HomeScore,
			"away_score": in.AwayScore,
			"home_digit": homeDigit,
			"away_digit": awayDigit,
			"row":        result.Winner.Row,
			"col":        result.Winner.Col,
			"user_id":    result.Winner.UserID,
		},
	})
	return result, nil
}
