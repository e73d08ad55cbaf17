package aggregates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	"github.com/clinicore/conventions/internal/observability"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

const statusSuccess = "success"

// BaseDeps is shared by every aggregate. Zero fields get working defaults.
type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	// Now stamps audit columns and activation dates.
	Now func() time.Time
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB, d.Now)
	}
	return d
}

// executeWrite runs fn as one transaction under a span named op. Whatever fn returns
// comes back tagged with an aggregate code, and the outcome is reported to the hooks.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	if op = strings.TrimSpace(op); op == "" {
		op = "Conventions.write"
	}
	started := time.Now()
	ctx, span := observability.Tracer().Start(ctx, op)
	defer span.End()

	err := MapError(op, deps.Runner.InTx(ctx, fn))
	report(deps, span, op, err, time.Since(started))
	return err
}

func report(deps BaseDeps, span trace.Span, op string, err error, took time.Duration) {
	status := outcome(err)
	span.SetAttributes(attribute.String("aggregate.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeConflict:
		deps.Hooks.IncConflict(op)
	case domainagg.CodeRetryable:
		deps.Hooks.IncRetry(op)
	case domainagg.CodeInternal:
		deps.Log.Error("aggregate write failed", "op", op, "error", err)
	}
	deps.Hooks.ObserveOperation(op, status, took)
}

// outcome is the hook status for err: "success" or its aggregate code.
func outcome(err error) string {
	if err == nil {
		return statusSuccess
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	return string(domainagg.CodeOf(MapError("outcome", err)))
}

func requireActor(op string, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return domainagg.InvalidInput(op, "actor id is required")
	}
	return nil
}
