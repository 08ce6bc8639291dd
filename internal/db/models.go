package db

import (
	"time"

	"gorm.io/datatypes"
)

type Game struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	Name           string         `gorm:"size:120;not null"`
	Status         string         `gorm:"size:16;not null;index:idx_games_status_closes_at"`
	ClosesAt       time.Time      `gorm:"not null;index:idx_games_status_closes_at"`
	RowDigits      datatypes.JSON `gorm:"type:jsonb"`
	ColDigits      datatypes.JSON `gorm:"type:jsonb"`
	LockedAt       *time.Time
	WinnerSnapshot datatypes.JSON `gorm:"type:jsonb;not null"`
	Version        int64          `gorm:"not null;default:1"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
	Squares        []Square
}

type Square struct {
	ID            string     `gorm:"type:uuid;primaryKey"`
	GameID        string     `gorm:"type:uuid;not null;uniqueIndex:idx_squares_game_cell"`
	Row           int        `gorm:"column:row_index;not null;uniqueIndex:idx_squares_game_cell"`
	Col           int        `gorm:"column:col_index;not null;uniqueIndex:idx_squares_game_cell"`
	State         string     `gorm:"size:32;not null;index:idx_squares_state_reserved_until"`
	UserID        string     `gorm:"size:128;not null;default:''"`
	ReservedAt    *time.Time
	ReservedUntil *time.Time `gorm:"index:idx_squares_state_reserved_until"`
	Version       int64      `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

type ScoreEvent struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	GameID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_score_events_game_period"`
	Period      string    `gorm:"size:16;not null;uniqueIndex:idx_score_events_game_period"`
	HomeScore   int       `gorm:"not null"`
	AwayScore   int       `gorm:"not null"`
	HomeDigit   int       `gorm:"not null"`
	AwayDigit   int       `gorm:"not null"`
	SquareID    string    `gorm:"type:uuid;not null"`
	SubmittedBy string    `gorm:"size:128;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// AuditLog rows are append-only. CreatedAt and Sequence are assigned by
// Postgres at insert; Sequence is the ordering key.
type AuditLog struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	Sequence    int64          `gorm:"autoIncrement;not null;uniqueIndex"`
	Type        string         `gorm:"size:64;not null;index"`
	ActorUserID string         `gorm:"size:128;not null;default:''"`
	GameID      string         `gorm:"type:uuid;index"`
	SquareID    *string        `gorm:"type:uuid;index"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time      `gorm:"autoCreateTime:false;default:clock_timestamp();not null;index"`
}
