package server

import (
	"net/http"

	"squares/internal/board"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var httpStatusByCode = map[codes.Code]int{
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.FailedPrecondition: http.StatusConflict,
	codes.Aborted:            http.StatusConflict,
}

var codeNames = map[codes.Code]string{
	codes.Unauthenticated:    "UNAUTHENTICATED",
	codes.PermissionDenied:   "PERMISSION_DENIED",
	codes.InvalidArgument:    "INVALID_ARGUMENT",
	codes.NotFound:           "NOT_FOUND",
	codes.FailedPrecondition: "FAILED_PRECONDITION",
	codes.Aborted:            "ABORTED",
	codes.Internal:           "INTERNAL",
}

// writeError maps an engine error onto an HTTP response. Internal details
// are logged, never returned.
func (s *Server) writeError(c *gin.Context, err error) {
	code := board.Code(err)
	status, ok := httpStatusByCode[code]
	if !ok {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		abortWithCode(c, http.StatusInternalServerError, codeNames[codes.Internal], "internal error")
		return
	}
	abortWithCode(c, status, codeNames[code], board.Message(err))
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Error: message})
}
