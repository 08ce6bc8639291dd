package board

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxGameNameLength = 120
	maxUserIDLength   = 128
	maxScore          = 999
)

var periodPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,16}$`)

func validateID(label, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errInvalidArgument("%s is required and must be a non-empty string", label)
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return "", errInvalidArgument("%s is not a valid identifier", label)
	}
	return trimmed, nil
}

func validateSquareRef(gameID, squareID string) (string, string, error) {
	game, err := validateID("gameId", gameID)
	if err != nil {
		return "", "", err
	}
	square, err := validateID("squareId", squareID)
	if err != nil {
		return "", "", err
	}
	return game, square, nil
}

func validateUserID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errInvalidArgument("userId is required")
	}
	if len(trimmed) > maxUserIDLength {
		return "", errInvalidArgument("userId must be %d characters or fewer", maxUserIDLength)
	}
	return trimmed, nil
}

func validateGameName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", errInvalidArgument("name is required")
	}
	if len(name) > maxGameNameLength {
		return "", errInvalidArgument("name must be %d characters or fewer", maxGameNameLength)
	}
	return name, nil
}

func validatePeriod(raw string) (string, error) {
	period := strings.TrimSpace(raw)
	if !periodPattern.MatchString(period) {
		return "", errInvalidArgument("period must be 1-16 letters, digits, '-' or '_'")
	}
	return period, nil
}

func validateScore(label string, score int) error {
	if score < 0 || score > maxScore {
		return errInvalidArgument("%s must be between 0 and %d", label, maxScore)
	}
	return nil
}

func validateClosesAt(closesAt, now time.Time) error {
	if closesAt.IsZero() {
		return errInvalidArgument("closesAt is required")
	}
	if !closesAt.After(now) {
		return errInvalidArgument("closesAt must be in the future")
	}
	return nil
}
