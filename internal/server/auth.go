package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"squares/internal/board"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	callerKey = "squares.caller"
	roleAdmin = "admin"
)

var (
	errAuthNotConfigured = errors.New("token verification is not configured")
	errInvalidToken      = errors.New("invalid bearer token")
)

// Authenticator issues and verifies HS256 bearer tokens. The subject is the
// caller's user id; role "admin" grants administrator privileges.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

type callerClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

func NewAuthenticator(secret string, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{secret: []byte(secret), now: now}
}

func (a *Authenticator) Issue(userID string, admin bool, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errAuthNotConfigured
	}
	now := a.now().UTC()
	claims := callerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if admin {
		claims.Role = roleAdmin
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Caller verifies a raw token and returns the identity it carries.
func (a *Authenticator) Caller(token string) (board.Caller, error) {
	if len(a.secret) == 0 {
		return board.Caller{}, errAuthNotConfigured
	}
	var claims callerClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return board.Caller{}, errInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return board.Caller{}, errInvalidToken
	}
	return board.Caller{UserID: subject, Admin: claims.Role == roleAdmin}, nil
}

// authenticate resolves the bearer token into a caller. Requests without a
// token continue anonymously and the engine decides whether that is enough.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortWithCode(c, http.StatusUnauthorized, "UNAUTHENTICATED", "authorization header must use the Bearer scheme")
			return
		}
		caller, err := s.auth.Caller(strings.TrimSpace(token))
		if err != nil {
			abortWithCode(c, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) board.Caller {
	if value, ok := c.Get(callerKey); ok {
		if caller, ok := value.(board.Caller); ok {
			return caller
		}
	}
	return board.Caller{}
}
