// Package board implements the squares board core: the square reservation
// state machine, the one-time digit grid finalization at lock, score
// resolution into per-period winners, and the reconciliation sweeps that
// release expired holds and lock games at close time.
//
// Every mutation runs inside a Store transaction that re-validates its
// preconditions against the records it read. Audit entries are appended to
// the Ledger only after the transaction commits, and a failed append is
// logged rather than returned.
package board

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultHoldDuration is how long a reservation holds a square before the
// expiry sweep may reclaim it.
const DefaultHoldDuration = 15 * time.Minute

type Engine struct {
	store  Store
	ledger Ledger
	clock  func() time.Time
	random io.Reader
	hold   time.Duration
	logger *zap.Logger
	tracer trace.Tracer
}

type Option func(*Engine)

// WithClock replaces time.Now as the source of transition timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRandom replaces crypto/rand as the entropy source for grid digits.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.random = r
		}
	}
}

func WithHoldDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.hold = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(store Store, ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		ledger: ledger,
		clock:  time.Now,
		random: rand.Reader,
		hold:   DefaultHoldDuration,
		logger: zap.NewNop(),
		tracer: otel.Tracer("squares/internal/board"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HoldDuration reports the configured reservation hold.
func (e *Engine) HoldDuration() time.Duration {
	return e.hold
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// runTx runs fn in a store transaction and converts storage failures into
// board errors. Board errors returned by fn pass through untouched.
func (e *Engine) runTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	err := e.store.RunTx(ctx, fn)
	if err == nil {
		return nil
	}
	var boardErr *Error
	if errors.As(err, &boardErr) {
		return err
	}
	if errors.Is(err, ErrConflict) {
		return errAborted(op+" lost a concurrent update, retry", err)
	}
	return errInternal(op+" failed", err)
}

// audit appends entry after the primary mutation committed. The append
// outlives request cancellation and its failure is only logged.
func (e *Engine) audit(ctx context.Context, entry AuditEntry) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Append(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("audit append failed",
			zap.String("type", entry.Type),
			zap.String("game_id", entry.Target.GameID),
			zap.String("square_id", entry.Target.SquareID),
			zap.Error(err),
		)
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, Message(err))
		span.SetAttributes(attribute.String("board.error_code", Code(err).String()))
	}
	span.End()
}

func requireCaller(caller Caller) error {
	if !caller.authenticated() {
		return errUnauthenticated()
	}
	return nil
}

func requireAdmin(caller Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.Admin {
		return errPermissionDenied("administrator privileges required")
	}
	return nil
}
