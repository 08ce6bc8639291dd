package db

import (
	"encoding/json"
	"fmt"
	"time"

	"squares/internal/board"

	"gorm.io/datatypes"
)

func gameRecord(game board.Game) (Game, error) {
	rowDigits, err := encodeDigits(game.RowDigits)
	if err != nil {
		return Game{}, err
	}
	colDigits, err := encodeDigits(game.ColDigits)
	if err != nil {
		return Game{}, err
	}
	snapshot := game.WinnerSnapshot
	if snapshot == nil {
		snapshot = map[string]board.Winner{}
	}
	winners, err := json.Marshal(snapshot)
	if err != nil {
		return Game{}, fmt.Errorf("encode winner snapshot: %w", err)
	}
	return Game{
		ID:             game.ID,
		Name:           game.Name,
		Status:         game.Status,
		ClosesAt:       game.ClosesAt.UTC(),
		RowDigits:      rowDigits,
		ColDigits:      colDigits,
		LockedAt:       game.LockedAt,
		WinnerSnapshot: datatypes.JSON(winners),
		Version:        game.Version,
		CreatedAt:      game.CreatedAt,
	}, nil
}

func (record Game) toBoard() (board.Game, error) {
	game := board.Game{
		ID:             record.ID,
		Name:           record.Name,
		Status:         record.Status,
		ClosesAt:       record.ClosesAt.UTC(),
		LockedAt:       record.LockedAt,
		WinnerSnapshot: map[string]board.Winner{},
		Version:        record.Version,
		CreatedAt:      record.CreatedAt.UTC(),
	}
	var err error
	if game.RowDigits, err = decodeDigits(record.RowDigits); err != nil {
		return board.Game{}, fmt.Errorf("game %s row digits: %w", record.ID, err)
	}
	if game.ColDigits, err = decodeDigits(record.ColDigits); err != nil {
		return board.Game{}, fmt.Errorf("game %s col digits: %w", record.ID, err)
	}
	if len(record.WinnerSnapshot) > 0 {
		if err := json.Unmarshal(record.WinnerSnapshot, &game.WinnerSnapshot); err != nil {
			return board.Game{}, fmt.Errorf("game %s winner snapshot: %w", record.ID, err)
		}
	}
	if game.LockedAt != nil {
		locked := game.LockedAt.UTC()
		game.LockedAt = &locked
	}
	return game, nil
}

func encodeDigits(digits []int) (datatypes.JSON, error) {
	if digits == nil {
		return nil, nil
	}
	raw, err := json.Marshal(digits)
	if err != nil {
		return nil, fmt.Errorf("encode digits: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeDigits(raw datatypes.JSON) ([]int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var digits []int
	if err := json.Unmarshal(raw, &digits); err != nil {
		return nil, err
	}
	return digits, nil
}

func squareRecord(square board.Square) Square {
	return Square{
		ID:            square.ID,
		GameID:        square.GameID,
		Row:           square.Row,
		Col:           square.Col,
		State:         square.State,
		UserID:        square.UserID,
		ReservedAt:    square.ReservedAt,
		ReservedUntil: square.ReservedUntil,
		Version:       square.Version,
	}
}

func (record Square) toBoard() board.Square {
	return board.Square{
		ID:            record.ID,
		GameID:        record.GameID,
		Row:           record.Row,
		Col:           record.Col,
		State:         record.State,
		UserID:        record.UserID,
		ReservedAt:    utcPtr(record.ReservedAt),
		ReservedUntil: utcPtr(record.ReservedUntil),
		Version:       record.Version,
	}
}

func scoreEventRecord(event board.ScoreEvent) ScoreEvent {
	return ScoreEvent{
		ID:          event.ID,
		GameID:      event.GameID,
		Period:      event.Period,
		HomeScore:   event.HomeScore,
		AwayScore:   event.AwayScore,
		HomeDigit:   event.HomeDigit,
		AwayDigit:   event.AwayDigit,
		SquareID:    event.SquareID,
		SubmittedBy: event.SubmittedBy,
		CreatedAt:   event.CreatedAt.UTC(),
	}
}

func auditRecord(entry board.AuditEntry) (AuditLog, error) {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return AuditLog{}, fmt.Errorf("encode audit payload: %w", err)
	}
	record := AuditLog{
		ID:          entry.ID,
		Type:        entry.Type,
		ActorUserID: entry.ActorUserID,
		GameID:      entry.Target.GameID,
		Payload:     datatypes.JSON(raw),
	}
	if entry.Target.SquareID != "" {
		squareID := entry.Target.SquareID
		record.SquareID = &squareID
	}
	return record, nil
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
