package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

type directRunner struct{}

func (directRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

type spyHooks struct {
	ops       map[string]string
	conflicts []string
	retries   []string
}

func newSpyHooks() *spyHooks { return &spyHooks{ops: map[string]string{}} }

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.ops[name] = status
}

func (h *spyHooks) IncConflict(name string) { h.conflicts = append(h.conflicts, name) }

func (h *spyHooks) IncRetry(name string) { h.retries = append(h.retries, name) }

func TestExecuteWriteReportsOutcome(t *testing.T) {
	cases := []struct {
		name      string
		body      error
		status    string
		conflicts int
		retries   int
	}{
		{"success", nil, "success", 0, 0},
		{"illegal transition", InvariantError("archived is terminal"), string(domainagg.CodeInvariantViolation), 0, 0},
		{"lost race", ConflictError("avenant left status active"), string(domainagg.CodeConflict), 1, 0},
		{"lock timeout", RetryableError("lock wait timeout"), string(domainagg.CodeRetryable), 0, 1},
		{"deadline", context.DeadlineExceeded, string(domainagg.CodeRetryable), 0, 1},
		{"missing row", domainagg.NotFound("op", "annex missing"), string(domainagg.CodeNotFound), 0, 0},
		{"unknown", errors.New("disk on fire"), string(domainagg.CodeInternal), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := newSpyHooks()
			op := "Conventions.Test." + tc.name
			err := executeWrite(context.Background(), BaseDeps{Runner: directRunner{}, Hooks: hooks}, op, func(dbctx.Context) error {
				return tc.body
			})
			if (err == nil) != (tc.body == nil) {
				t.Fatalf("err: want=%v got=%v", tc.body, err)
			}
			if tc.body != nil && !errors.Is(err, tc.body) {
				t.Fatalf("mapped error lost its cause: %v", err)
			}
			if got := hooks.ops[op]; got != tc.status {
				t.Fatalf("status: want=%s got=%s", tc.status, got)
			}
			if len(hooks.conflicts) != tc.conflicts || len(hooks.retries) != tc.retries {
				t.Fatalf("counters: conflicts=%v retries=%v", hooks.conflicts, hooks.retries)
			}
		})
	}
}

func TestExecuteWriteDefaultsOpName(t *testing.T) {
	hooks := newSpyHooks()
	_ = executeWrite(context.Background(), BaseDeps{Runner: directRunner{}, Hooks: hooks}, "  ", func(dbctx.Context) error { return nil })
	if _, ok := hooks.ops["Conventions.write"]; !ok {
		t.Fatalf("default op name not used: %v", hooks.ops)
	}
}

func TestRequireActor(t *testing.T) {
	if err := requireActor("Conventions.Test", uuid.Nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("nil actor: want validation got=%v", err)
	}
	if err := requireActor("Conventions.Test", uuid.New()); err != nil {
		t.Fatalf("actor: unexpected err %v", err)
	}
}

func TestBaseDepsDefaults(t *testing.T) {
	d := BaseDeps{}.withDefaults()
	if d.Log == nil || d.Hooks == nil || d.Runner == nil || d.Now == nil {
		t.Fatalf("defaults not applied: %+v", d)
	}
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	d = BaseDeps{Now: func() time.Time { return fixed }}.withDefaults()
	if !d.Now().Equal(fixed) || !d.CASGuard.clock()().Equal(fixed) {
		t.Fatalf("custom clock must reach the CAS guard")
	}
}

func TestAggregatesOwnTheirTransactions(t *testing.T) {
	all := []domainagg.Aggregate{
		NewConventionAggregate(ConventionAggregateDeps{}),
		NewAnnexAggregate(AnnexAggregateDeps{}),
		NewAvenantAggregate(AvenantAggregateDeps{}),
		NewPrestationPricingAggregate(PrestationPricingAggregateDeps{}),
	}
	for _, agg := range all {
		c := agg.Contract()
		if c.Name == "" || !c.RequiresAggregateOwnedTx() {
			t.Fatalf("contract %+v must be named and aggregate-owned", c)
		}
	}
}
