package server

import (
	"context"
	"net/http"

	"squares/internal/board"

	"github.com/gin-gonic/gin"
)

type squareOperation func(ctx context.Context, caller board.Caller, gameID, squareID string) (board.Square, error)

func (s *Server) squareAction(c *gin.Context, op squareOperation) {
	var uri squareURI
	if !bindURI(c, &uri) {
		return
	}
	square, err := op(c.Request.Context(), callerFrom(c), uri.GameID, uri.SquareID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, square)
}
