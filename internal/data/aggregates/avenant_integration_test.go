package aggregates_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/conventions/internal/data/aggregates"
	agtest "github.com/clinicore/conventions/internal/data/aggregates/testutil"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
)

func TestDuplicateFromConventionCopiesSharesVerbatim(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)

	res, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{
		ConventionID: p.conv.ID,
		Description:  "  tarifs 2026  ",
		ActorID:      e.actor,
	})
	if err != nil {
		t.Fatalf("DuplicateFromConvention: %v", err)
	}
	if res.Avenant.Status != types.AvenantPending || !res.Avenant.Head {
		t.Fatalf("new avenant: want pending/head got %s/%v", res.Avenant.Status, res.Avenant.Head)
	}
	if res.Avenant.Description != "tarifs 2026" {
		t.Fatalf("description: got=%q", res.Avenant.Description)
	}
	if len(res.Lines) != len(p.lines) {
		t.Fatalf("copied lines: want=%d got=%d", len(p.lines), len(res.Lines))
	}

	byPrestation := map[uuid.UUID]*types.PrestationPricing{}
	for _, cp := range res.Lines {
		byPrestation[cp.PrestationID] = cp
	}
	for i, src := range p.lines {
		cp, ok := byPrestation[src.PrestationID]
		if !ok {
			t.Fatalf("no copy for prestation %s", src.PrestationID)
		}
		if cp.AvenantID == nil || *cp.AvenantID != res.Avenant.ID {
			t.Fatalf("copy %d not scoped to avenant: %+v", i, cp.AvenantID)
		}
		if cp.Head {
			t.Fatalf("copy %d should not be head", i)
		}
		if !cp.CompanyPrice.Equal(src.CompanyPrice) || !cp.PatientPrice.Equal(src.PatientPrice) || !cp.Prix.Equal(src.Prix) {
			t.Fatalf("copy %d shares changed: src=%s/%s got=%s/%s", i, src.CompanyPrice, src.PatientPrice, cp.CompanyPrice, cp.PatientPrice)
		}
		orig, err := e.repos.PrestationPricing.GetByID(e.dbc(), src.ID)
		if err != nil {
			t.Fatalf("reload source line: %v", err)
		}
		if orig.UpdatedByID == nil || *orig.UpdatedByID != cp.ID {
			t.Fatalf("source line %d not linked to copy: %v", i, orig.UpdatedByID)
		}
	}

	base, err := e.repos.ConventionDetail.GetByID(e.dbc(), p.detail.ID)
	if err != nil {
		t.Fatalf("reload base detail: %v", err)
	}
	if base.UpdatedByID == nil || *base.UpdatedByID != res.Detail.ID {
		t.Fatalf("base detail not superseded by copy: %v", base.UpdatedByID)
	}
	if !res.Detail.DiscountPercentage.Equal(p.detail.DiscountPercentage) || !res.Detail.MaxPrice.Equal(p.detail.MaxPrice) {
		t.Fatalf("detail terms changed: got %s/%s", res.Detail.DiscountPercentage, res.Detail.MaxPrice)
	}
	auth, err := e.repos.ConventionDetail.Authoritative(e.dbc(), p.conv.ID)
	if err != nil {
		t.Fatalf("authoritative: %v", err)
	}
	if auth.ID != res.Detail.ID {
		t.Fatalf("authoritative detail: want=%s got=%s", res.Detail.ID, auth.ID)
	}

	var meta struct {
		Source string `json:"source"`
		Lines  int    `json:"lines"`
	}
	stored, err := e.repos.Avenant.GetByID(e.dbc(), res.Avenant.ID)
	if err != nil {
		t.Fatalf("reload avenant: %v", err)
	}
	if err := json.Unmarshal(stored.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Source != "convention" || meta.Lines != 2 {
		t.Fatalf("metadata: got %+v", meta)
	}
}

func TestDuplicateFromConventionTwiceConflicts(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)

	in := domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor}
	if _, err := agg.DuplicateFromConvention(e.ctx, in); err != nil {
		t.Fatalf("first duplicate: %v", err)
	}
	_, err := agg.DuplicateFromConvention(e.ctx, in)
	requireCode(t, err, domainagg.CodeConflict)
	if n := e.hooks.ConflictCount("Conventions.Avenant.DuplicateFromConvention"); n != 1 {
		t.Fatalf("conflict hook count: want=1 got=%d", n)
	}
}

func TestDuplicateFromConventionWithoutAnnexesConflicts(t *testing.T) {
	e := newEnv(t)
	org := seedOrg(t, e, "MGEN")
	conv, _ := seedBareConvention(t, e, org.ID)

	_, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: conv.ID, ActorID: e.actor})
	requireCode(t, err, domainagg.CodeConflict)

	avs, err := e.repos.Avenant.ListByConvention(e.dbc(), conv.ID)
	if err != nil {
		t.Fatalf("list avenants: %v", err)
	}
	if len(avs) != 0 {
		t.Fatalf("no avenant should persist, got %d", len(avs))
	}
}

func TestDuplicateFromConventionMissingConvention(t *testing.T) {
	e := newEnv(t)
	_, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: uuid.New(), ActorID: e.actor})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestDuplicateRequiresActor(t *testing.T) {
	e := newEnv(t)
	_, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: uuid.New()})
	requireCode(t, err, domainagg.CodeValidation)
}

func TestDuplicateFromAvenantWithoutActiveConflicts(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	if _, err := agg.DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor}); err != nil {
		t.Fatalf("duplicate from convention: %v", err)
	}
	// The pending avenant is not active yet.
	_, err := agg.DuplicateFromAvenant(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
	requireCode(t, err, domainagg.CodeConflict)
}

// activeAvenant opens an avenant from the convention and activates it immediately.
func activeAvenant(t *testing.T, e *env, agg domainagg.AvenantAggregate, conventionID uuid.UUID, at time.Time) domainagg.DuplicateResult {
	t.Helper()
	res, err := agg.DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: conventionID, ActorID: e.actor})
	if err != nil {
		t.Fatalf("duplicate from convention: %v", err)
	}
	if _, err := agg.Activate(e.ctx, domainagg.ActivateAvenantInput{AvenantID: res.Avenant.ID, ActivationDate: at, ActorID: e.actor}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return res
}

func TestActivateImmediateCascadesDates(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	at := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	a := activeAvenant(t, e, agg, p.conv.ID, at)

	av, err := e.repos.Avenant.GetByID(e.dbc(), a.Avenant.ID)
	if err != nil {
		t.Fatalf("reload avenant: %v", err)
	}
	if av.Status != types.AvenantActive || !av.Head {
		t.Fatalf("avenant: want active/head got %s/%v", av.Status, av.Head)
	}
	if av.ActivationAt == nil || !av.ActivationAt.Equal(at) {
		t.Fatalf("activation_at: want=%s got=%v", at, av.ActivationAt)
	}
	if av.ApproverID == nil || *av.ApproverID != e.actor {
		t.Fatalf("approver: want=%s got=%v", e.actor, av.ApproverID)
	}

	lines, err := e.repos.PrestationPricing.ListLiveByAvenant(e.dbc(), av.ID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	for _, l := range lines {
		if l.ActivationAt == nil || !l.ActivationAt.Equal(at) {
			t.Fatalf("line %s activation_at: want=%s got=%v", l.ID, at, l.ActivationAt)
		}
	}
	d, err := e.repos.ConventionDetail.GetByAvenant(e.dbc(), av.ID)
	if err != nil {
		t.Fatalf("detail by avenant: %v", err)
	}
	if d.StartDate == nil || !d.StartDate.Equal(domainagg.DateOnly(at)) {
		t.Fatalf("start_date: want=%s got=%v", domainagg.DateOnly(at), d.StartDate)
	}
}

func TestActivateImmediateArchivesPreviousActive(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	t1 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := activeAvenant(t, e, agg, p.conv.ID, t1)
	b, err := agg.DuplicateFromAvenant(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
	if err != nil {
		t.Fatalf("duplicate from avenant: %v", err)
	}
	if b.SourceAvenantID != a.Avenant.ID {
		t.Fatalf("source avenant: want=%s got=%s", a.Avenant.ID, b.SourceAvenantID)
	}
	if b.Avenant.Head || b.Avenant.Status != types.AvenantPending {
		t.Fatalf("new avenant: want pending/not head got %s/%v", b.Avenant.Status, b.Avenant.Head)
	}
	aAfterDup, err := e.repos.Avenant.GetByID(e.dbc(), a.Avenant.ID)
	if err != nil {
		t.Fatalf("reload A: %v", err)
	}
	if aAfterDup.Head || aAfterDup.Status != types.AvenantActive {
		t.Fatalf("A after duplicate: want active/not head got %s/%v", aAfterDup.Status, aAfterDup.Head)
	}
	if aAfterDup.UpdatedByID == nil || *aAfterDup.UpdatedByID != b.Avenant.ID {
		t.Fatalf("A not superseded by B: %v", aAfterDup.UpdatedByID)
	}

	res, err := agg.Activate(e.ctx, domainagg.ActivateAvenantInput{AvenantID: b.Avenant.ID, ActivationDate: t2, ActorID: e.actor})
	if err != nil {
		t.Fatalf("activate B: %v", err)
	}
	if len(res.ArchivedID) != 1 || res.ArchivedID[0] != a.Avenant.ID {
		t.Fatalf("archived: want=[%s] got=%v", a.Avenant.ID, res.ArchivedID)
	}
	if res.LinesTouch != int64(len(p.lines)) {
		t.Fatalf("lines touched: want=%d got=%d", len(p.lines), res.LinesTouch)
	}

	aa, _ := e.repos.Avenant.GetByID(e.dbc(), a.Avenant.ID)
	bb, _ := e.repos.Avenant.GetByID(e.dbc(), b.Avenant.ID)
	if aa.Status != types.AvenantArchived || aa.Head {
		t.Fatalf("A: want archived/not head got %s/%v", aa.Status, aa.Head)
	}
	if aa.InactiveAt == nil || !aa.InactiveAt.Equal(t2) {
		t.Fatalf("A inactive_at: want=%s got=%v", t2, aa.InactiveAt)
	}
	if bb.Status != types.AvenantActive || !bb.Head {
		t.Fatalf("B: want active/head got %s/%v", bb.Status, bb.Head)
	}

	all, err := e.repos.Avenant.ListByConvention(e.dbc(), p.conv.ID)
	if err != nil {
		t.Fatalf("list avenants: %v", err)
	}
	active := 0
	for _, av := range all {
		if av.Status == types.AvenantActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active avenants: want=1 got=%d", active)
	}
}

func TestActivateImmediateRollsBackOnAbort(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	a := activeAvenant(t, e, agg, p.conv.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	b, err := agg.DuplicateFromAvenant(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
	if err != nil {
		t.Fatalf("duplicate from avenant: %v", err)
	}

	crash := errors.New("connection lost before commit")
	runner := &agtest.InjectedTxRunner{Inner: aggregates.NewGormTxRunner(e.db), FailAfterBody: crash}
	base := e.base(t)
	base.Runner = runner
	crashing := aggregates.NewAvenantAggregate(aggregates.AvenantAggregateDeps{Base: base, Repos: e.repos})

	_, err = crashing.Activate(e.ctx, domainagg.ActivateAvenantInput{
		AvenantID:      b.Avenant.ID,
		ActivationDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		ActorID:        e.actor,
	})
	if !errors.Is(err, crash) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if runner.RollbackCalls != 1 || runner.CommitCalls != 0 {
		t.Fatalf("runner: commit=%d rollback=%d", runner.CommitCalls, runner.RollbackCalls)
	}

	aa, _ := e.repos.Avenant.GetByID(e.dbc(), a.Avenant.ID)
	bb, _ := e.repos.Avenant.GetByID(e.dbc(), b.Avenant.ID)
	if aa.Status != types.AvenantActive {
		t.Fatalf("A must stay active after abort, got %s", aa.Status)
	}
	if aa.InactiveAt != nil {
		t.Fatalf("A inactive_at must stay unset, got %v", aa.InactiveAt)
	}
	if bb.Status != types.AvenantPending || bb.ActivationAt != nil {
		t.Fatalf("B must stay pending, got %s activation=%v", bb.Status, bb.ActivationAt)
	}
	lines, err := e.repos.PrestationPricing.ListLiveByAvenant(e.dbc(), b.Avenant.ID)
	if err != nil {
		t.Fatalf("list B lines: %v", err)
	}
	for _, l := range lines {
		if l.ActivationAt != nil {
			t.Fatalf("B line %s activation_at must stay unset", l.ID)
		}
	}
}

func TestActivateDelayedLeavesActiveAlone(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	a := activeAvenant(t, e, agg, p.conv.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	b, err := agg.DuplicateFromAvenant(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
	if err != nil {
		t.Fatalf("duplicate from avenant: %v", err)
	}

	later := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	res, err := agg.Activate(e.ctx, domainagg.ActivateAvenantInput{AvenantID: b.Avenant.ID, ActivationDate: later, Delayed: true, ActorID: e.actor})
	if err != nil {
		t.Fatalf("delayed activate: %v", err)
	}
	if res.Status != types.AvenantScheduled || len(res.ArchivedID) != 0 {
		t.Fatalf("result: status=%s archived=%v", res.Status, res.ArchivedID)
	}

	aa, _ := e.repos.Avenant.GetByID(e.dbc(), a.Avenant.ID)
	bb, _ := e.repos.Avenant.GetByID(e.dbc(), b.Avenant.ID)
	if aa.Status != types.AvenantActive {
		t.Fatalf("A: want active got %s", aa.Status)
	}
	if bb.Status != types.AvenantScheduled || bb.Head {
		t.Fatalf("B: want scheduled/not head got %s/%v", bb.Status, bb.Head)
	}
	if bb.ActivationAt == nil || !bb.ActivationAt.Equal(later) {
		t.Fatalf("B activation_at: want=%s got=%v", later, bb.ActivationAt)
	}
	d, err := e.repos.ConventionDetail.GetByAvenant(e.dbc(), b.Avenant.ID)
	if err != nil {
		t.Fatalf("detail by avenant: %v", err)
	}
	if d.StartDate == nil || !d.StartDate.Equal(later) {
		t.Fatalf("B start_date: want=%s got=%v", later, d.StartDate)
	}
}

func TestActivateRejectsIllegalTransition(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	a := activeAvenant(t, e, agg, p.conv.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

	_, err := agg.Activate(e.ctx, domainagg.ActivateAvenantInput{
		AvenantID:      a.Avenant.ID,
		ActivationDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		ActorID:        e.actor,
	})
	requireCode(t, err, domainagg.CodeInvariantViolation)
}

func TestActivateMissingAvenant(t *testing.T) {
	e := newEnv(t)
	for _, delayed := range []bool{false, true} {
		_, err := e.avenants(t).Activate(e.ctx, domainagg.ActivateAvenantInput{
			AvenantID:      uuid.New(),
			ActivationDate: e.now,
			Delayed:        delayed,
			ActorID:        e.actor,
		})
		requireCode(t, err, domainagg.CodeNotFound)
	}
}

func TestActivateRequiresDate(t *testing.T) {
	e := newEnv(t)
	_, err := e.avenants(t).Activate(e.ctx, domainagg.ActivateAvenantInput{AvenantID: uuid.New(), ActorID: e.actor})
	requireCode(t, err, domainagg.CodeValidation)
}

func TestRevisionChainsStayLinear(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.avenants(t)
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first := activeAvenant(t, e, agg, p.conv.ID, at)
	ids := []uuid.UUID{first.Avenant.ID}
	for i := 0; i < 3; i++ {
		at = at.AddDate(0, 1, 0)
		next, err := agg.DuplicateFromAvenant(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
		if err != nil {
			t.Fatalf("duplicate %d: %v", i, err)
		}
		if _, err := agg.Activate(e.ctx, domainagg.ActivateAvenantInput{AvenantID: next.Avenant.ID, ActivationDate: at, ActorID: e.actor}); err != nil {
			t.Fatalf("activate %d: %v", i, err)
		}
		ids = append(ids, next.Avenant.ID)
	}

	chain, err := agg.Lineage(e.ctx, first.Avenant.ID)
	if err != nil {
		t.Fatalf("avenant lineage: %v", err)
	}
	if len(chain) != len(ids) {
		t.Fatalf("avenant lineage length: want=%d got=%d", len(ids), len(chain))
	}
	for i, av := range chain {
		if av.ID != ids[i] {
			t.Fatalf("avenant lineage[%d]: want=%s got=%s", i, ids[i], av.ID)
		}
	}
	if tip := chain[len(chain)-1]; tip.UpdatedByID != nil || tip.Status != types.AvenantActive {
		t.Fatalf("avenant tip: updated_by=%v status=%s", tip.UpdatedByID, tip.Status)
	}

	lineChain, err := e.repos.PrestationPricing.Lineage(e.dbc(), p.lines[0].ID)
	if err != nil {
		t.Fatalf("line lineage: %v", err)
	}
	if len(lineChain) != len(ids)+1 {
		t.Fatalf("line lineage length: want=%d got=%d", len(ids)+1, len(lineChain))
	}
	seen := map[uuid.UUID]bool{}
	for _, l := range lineChain {
		if seen[l.ID] {
			t.Fatalf("line %s visited twice", l.ID)
		}
		seen[l.ID] = true
		if !l.CompanyPrice.Equal(p.lines[0].CompanyPrice) {
			t.Fatalf("line %s company share drifted to %s", l.ID, l.CompanyPrice)
		}
	}
	if lineChain[len(lineChain)-1].UpdatedByID != nil {
		t.Fatalf("line tip must be un-superseded")
	}

	detailChain, err := e.repos.ConventionDetail.Lineage(e.dbc(), p.detail.ID)
	if err != nil {
		t.Fatalf("detail lineage: %v", err)
	}
	if len(detailChain) != len(ids)+1 {
		t.Fatalf("detail lineage length: want=%d got=%d", len(ids)+1, len(detailChain))
	}

	_, err = agg.Lineage(e.ctx, uuid.New())
	requireCode(t, err, domainagg.CodeNotFound)
}
