package server

import (
	"context"
	"time"

	"squares/internal/board"
)

const (
	messageSnapshot = "snapshot"
	messageEvent    = "event"
)

type snapshotMessage struct {
	Type    string         `json:"type"`
	Game    board.Game     `json:"game"`
	Squares []board.Square `json:"squares"`
}

type eventMessage struct {
	Type        string         `json:"type"`
	EventType   string         `json:"event_type"`
	ActorUserID string         `json:"actor_user_id,omitempty"`
	GameID      string         `json:"game_id"`
	SquareID    string         `json:"square_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	SentAt      time.Time      `json:"sent_at"`
}

type broadcastLedger struct {
	next board.Ledger
	hub  *Hub
}

// Ledger returns a board.Ledger that appends to next and, once the append
// succeeded, publishes the entry to the game's websocket subscribers.
func (h *Hub) Ledger(next board.Ledger) board.Ledger {
	return &broadcastLedger{next: next, hub: h}
}

func (l *broadcastLedger) Append(ctx context.Context, entry board.AuditEntry) error {
	if l.next != nil {
		if err := l.next.Append(ctx, entry); err != nil {
			return err
		}
	}
	if entry.Target.GameID == "" {
		return nil
	}
	l.hub.Broadcast(entry.Target.GameID, eventMessage{
		Type:        messageEvent,
		EventType:   entry.Type,
		ActorUserID: entry.ActorUserID,
		GameID:      entry.Target.GameID,
		SquareID:    entry.Target.SquareID,
		Payload:     entry.Payload,
		SentAt:      time.Now().UTC(),
	})
	return nil
}
