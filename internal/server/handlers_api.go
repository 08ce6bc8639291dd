package server

import (
	"context"
	"net/http"
	"time"

	"squares/internal/board"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type gameURI struct {
	GameID string `uri:"gameId" binding:"required"`
}

type squareURI struct {
	GameID   string `uri:"gameId" binding:"required"`
	SquareID string `uri:"squareId" binding:"required"`
}

type createGameRequest struct {
	Name     string    `json:"name" binding:"required,notblank,max=120"`
	ClosesAt time.Time `json:"closes_at" binding:"required"`
}

type voidRequest struct {
	Reason string `json:"reason" binding:"max=280"`
}

type proxyAssignRequest struct {
	UserID string `json:"user_id" binding:"required,notblank,max=128"`
}

type scoreRequest struct {
	Period    string `json:"period" binding:"required,notblank,max=16"`
	HomeScore *int   `json:"home_score" binding:"required,min=0,max=999"`
	AwayScore *int   `json:"away_score" binding:"required,min=0,max=999"`
}

var createGameMessages = bindMessages{
	"Name": {
		"required": "name is required",
		"notblank": "name is required",
		"max":      "name must be 120 characters or fewer",
	},
	"ClosesAt": {"required": "closes_at is required"},
}

var proxyAssignMessages = bindMessages{
	"UserID": {
		"required": "user_id is required",
		"notblank": "user_id is required",
		"max":      "user_id must be 128 characters or fewer",
	},
}

var scoreMessages = bindMessages{
	"Period": {
		"required": "period is required",
		"notblank": "period is required",
		"max":      "period must be 16 characters or fewer",
	},
	"HomeScore": {
		"required": "home_score is required",
		"min":      "home_score must be between 0 and 999",
		"max":      "home_score must be between 0 and 999",
	},
	"AwayScore": {
		"required": "away_score is required",
		"min":      "away_score must be between 0 and 999",
		"max":      "away_score must be between 0 and 999",
	},
}

func (s *Server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if !bindJSON(c, &req, createGameMessages, "invalid game request") {
		return
	}
	ctx := c.Request.Context()
	game, err := s.engine.CreateGame(ctx, callerFrom(c), req.Name, req.ClosesAt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	squares, err := s.engine.ListSquares(ctx, game.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": game, "squares": squares})
}

func (s *Server) handleGetGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	game, err := s.engine.GetGame(c.Request.Context(), uri.GameID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleListSquares(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	squares, err := s.engine.ListSquares(c.Request.Context(), uri.GameID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"squares": squares})
}

func (s *Server) handleReserve(c *gin.Context) {
	s.squareAction(c, s.engine.ReserveSquare)
}

func (s *Server) handlePaymentIntent(c *gin.Context) {
	s.squareAction(c, s.engine.ConfirmPaymentIntent)
}

func (s *Server) handleConfirmPayment(c *gin.Context) {
	s.squareAction(c, s.engine.AdminConfirmPayment)
}

func (s *Server) handleVoid(c *gin.Context) {
	var req voidRequest
	if !bindOptionalJSON(c, &req, nil, "reason must be 280 characters or fewer") {
		return
	}
	s.squareAction(c, func(ctx context.Context, caller board.Caller, gameID, squareID string) (board.Square, error) {
		return s.engine.AdminVoidSquare(ctx, caller, gameID, squareID, req.Reason)
	})
}

func (s *Server) handleProxyAssign(c *gin.Context) {
	var req proxyAssignRequest
	if !bindJSON(c, &req, proxyAssignMessages, "invalid assignment request") {
		return
	}
	s.squareAction(c, func(ctx context.Context, caller board.Caller, gameID, squareID string) (board.Square, error) {
		return s.engine.AdminProxyAssignSquare(ctx, caller, gameID, squareID, req.UserID)
	})
}

func (s *Server) handleLockGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	game, err := s.engine.LockGame(c.Request.Context(), callerFrom(c), uri.GameID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleSubmitScore(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	var req scoreRequest
	if !bindJSON(c, &req, scoreMessages, "invalid score request") {
		return
	}
	result, err := s.engine.SubmitScore(c.Request.Context(), callerFrom(c), uri.GameID, board.ScoreInput{
		Period:    req.Period,
		HomeScore: *req.HomeScore,
		AwayScore: *req.AwayScore,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if result.Duplicate {
		s.logger.Info("duplicate score submission",
			zap.String("game_id", result.GameID),
			zap.String("period", result.Period),
		)
	}
	c.JSON(http.StatusOK, result)
}
