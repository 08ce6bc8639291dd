package board

import "time"

const (
	GridSize = 10

	GameOpen   = "open"
	GameLocked = "locked"

	SquareAvailable      = "available"
	SquareReserved       = "reserved"
	SquarePendingPayment = "pending_payment"
	SquareConfirmed      = "confirmed"
	SquareVoid           = "void"
)

const (
	AuditGameCreated            = "GAME_CREATED"
	AuditSquareReserved         = "SQUARE_RESERVED"
	AuditPaymentIntentConfirmed = "PAYMENT_INTENT_CONFIRMED"
	AuditPaymentConfirmed       = "PAYMENT_CONFIRMED"
	AuditSquareVoided           = "SQUARE_VOIDED"
	AuditSquareProxyAssigned    = "SQUARE_PROXY_ASSIGNED"
	AuditReservationExpired     = "RESERVATION_EXPIRED"
	AuditGameLocked             = "GAME_LOCKED"
	AuditScoreSubmitted         = "SCORE_SUBMITTED"
)

type Game struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	ClosesAt       time.Time         `json:"closes_at"`
	RowDigits      []int             `json:"row_digits,omitempty"`
	ColDigits      []int             `json:"col_digits,omitempty"`
	LockedAt       *time.Time        `json:"locked_at,omitempty"`
	WinnerSnapshot map[string]Winner `json:"winner_snapshot"`
	Version        int64             `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Winner is the resolved cell for one scoring period. UserID and State
// capture the square as it was at resolution; UserID is empty when the
// winning cell was never claimed.
type Winner struct {
	SquareID  string `json:"square_id"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	UserID    string `json:"user_id,omitempty"`
	State     string `json:"state"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

type Square struct {
	ID            string     `json:"id"`
	GameID        string     `json:"game_id"`
	Row           int        `json:"row"`
	Col           int        `json:"col"`
	State         string     `json:"state"`
	UserID        string     `json:"user_id,omitempty"`
	ReservedAt    *time.Time `json:"reserved_at,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	Version       int64      `json:"-"`
}

func (s Square) validCoordinates() bool {
	return s.Row >= 0 && s.Row < GridSize && s.Col >= 0 && s.Col < GridSize
}

// release returns the square to available and drops the claim fields.
func (s *Square) release() {
	s.State = SquareAvailable
	s.UserID = ""
	s.ReservedAt = nil
	s.ReservedUntil = nil
}

type AuditTarget struct {
	GameID   string `json:"game_id,omitempty"`
	SquareID string `json:"square_id,omitempty"`
}

// AuditEntry is one immutable ledger record. Timestamp is assigned by the
// ledger implementation when the entry is written.
type AuditEntry struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	ActorUserID string         `json:"actor_user_id,omitempty"`
	Target      AuditTarget    `json:"target"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type ScoreEvent struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	Period      string    `json:"period"`
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	HomeDigit   int       `json:"home_digit"`
	AwayDigit   int       `json:"away_digit"`
	SquareID    string    `json:"square_id"`
	SubmittedBy string    `json:"submitted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Caller identifies who invoked an operation. The zero value is an
// unauthenticated caller; sweeps run without one.
type Caller struct {
	UserID string
	Admin  bool
}

func (c Caller) authenticated() bool {
	return c.UserID != ""
}
