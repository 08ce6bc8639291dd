package board

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by stores when a transaction lost a
	// write-write race against a concurrent commit.
	ErrConflict = errors.New("transaction conflict")
)

// Error is a failure with a stable kind. Code reuses the gRPC status codes
// so transports can map it without a translation table of their own.
type Error struct {
	Code    codes.Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// GRPCStatus lets status.FromError and status.Code understand board errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

func newError(code codes.Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func errUnauthenticated() *Error {
	return newError(codes.Unauthenticated, "authentication required")
}

func errPermissionDenied(format string, args ...any) *Error {
	return newError(codes.PermissionDenied, format, args...)
}

func errInvalidArgument(format string, args ...any) *Error {
	return newError(codes.InvalidArgument, format, args...)
}

func errNotFound(format string, args ...any) *Error {
	return newError(codes.NotFound, format, args...)
}

func errFailedPrecondition(format string, args ...any) *Error {
	return newError(codes.FailedPrecondition, format, args...)
}

func errAborted(message string, cause error) *Error {
	return &Error{Code: codes.Aborted, Message: message, cause: cause}
}

func errInternal(message string, cause error) *Error {
	return &Error{Code: codes.Internal, Message: message, cause: cause}
}

// Code extracts the kind of err. Nil maps to codes.OK and anything that is
// not a board error maps to codes.Internal.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var boardErr *Error
	if errors.As(err, &boardErr) {
		return boardErr.Code
	}
	return codes.Internal
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var boardErr *Error
	if errors.As(err, &boardErr) {
		return boardErr.Message
	}
	if err == nil {
		return ""
	}
	return "an unexpected error occurred"
}
