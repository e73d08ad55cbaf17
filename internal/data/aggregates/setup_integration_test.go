package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/data/aggregates"
	agtest "github.com/clinicore/conventions/internal/data/aggregates/testutil"
	"github.com/clinicore/conventions/internal/data/repos"
	repotest "github.com/clinicore/conventions/internal/data/repos/testutil"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

type env struct {
	ctx   context.Context
	db    *gorm.DB
	repos repos.Set
	hooks *agtest.HooksRecorder
	actor uuid.UUID
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.DB(t)
	return &env{
		ctx:   context.Background(),
		db:    db,
		repos: repos.NewSet(db, repotest.Logger(t)),
		hooks: &agtest.HooksRecorder{},
		actor: uuid.New(),
		now:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (e *env) base(t *testing.T) aggregates.BaseDeps {
	t.Helper()
	return aggregates.BaseDeps{
		DB:    e.db,
		Log:   repotest.Logger(t),
		Hooks: e.hooks,
		Now:   func() time.Time { return e.now },
	}
}

func (e *env) dbc() dbctx.Context { return dbctx.Context{Ctx: e.ctx} }

func (e *env) avenants(t *testing.T) domainagg.AvenantAggregate {
	return aggregates.NewAvenantAggregate(aggregates.AvenantAggregateDeps{Base: e.base(t), Repos: e.repos})
}

func (e *env) conventions(t *testing.T) domainagg.ConventionAggregate {
	return aggregates.NewConventionAggregate(aggregates.ConventionAggregateDeps{Base: e.base(t), Repos: e.repos})
}

func (e *env) annexes(t *testing.T) domainagg.AnnexAggregate {
	return aggregates.NewAnnexAggregate(aggregates.AnnexAggregateDeps{Base: e.base(t), Repos: e.repos})
}

func (e *env) pricing(t *testing.T) domainagg.PrestationPricingAggregate {
	return aggregates.NewPrestationPricingAggregate(aggregates.PrestationPricingAggregateDeps{Base: e.base(t), Repos: e.repos})
}

// priced is a convention with terms 80% / ceiling 600 and one annex holding one head
// line per prestation.
type priced struct {
	org         *types.Organisation
	conv        *types.Convention
	detail      *types.ConventionDetail
	annex       *types.Annex
	serviceID   uuid.UUID
	prestations []*types.Prestation
	lines       []*types.PrestationPricing
}

func seedPriced(t *testing.T, e *env) priced {
	t.Helper()
	var p priced
	p.org = repotest.SeedOrganisation(t, e.ctx, e.db, "AXA")
	p.conv = repotest.SeedConvention(t, e.ctx, e.db, p.org.ID, types.ConventionActive)
	p.detail = repotest.SeedDetail(t, e.ctx, e.db, p.conv.ID, "80", "600")
	p.serviceID = uuid.New()
	p.annex = repotest.SeedAnnex(t, e.ctx, e.db, p.conv.ID, p.serviceID)
	p.prestations = []*types.Prestation{
		repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, "A001", "900", "1100", "1000"),
		repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, "A002", "400", "600", "500"),
	}
	annexID := p.annex.ID
	p.lines = []*types.PrestationPricing{
		// Shares deliberately differ from what the calculator would produce.
		repotest.SeedLine(t, e.ctx, e.db, p.prestations[0].ID, &annexID, nil, "1000", "123.45", "876.55", true),
		repotest.SeedLine(t, e.ctx, e.db, p.prestations[1].ID, &annexID, nil, "500", "400", "100", true),
	}
	return p
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !domainagg.IsCode(err, code) {
		t.Fatalf("error code: want=%s got=%s (%v)", code, domainagg.CodeOf(err), err)
	}
}

func seedOrg(t *testing.T, e *env, abbr string) *types.Organisation {
	t.Helper()
	return repotest.SeedOrganisation(t, e.ctx, e.db, abbr)
}

// seedBareConvention is a scheduled convention with base terms and no annex.
func seedBareConvention(t *testing.T, e *env, orgID uuid.UUID) (*types.Convention, *types.ConventionDetail) {
	t.Helper()
	conv := repotest.SeedConvention(t, e.ctx, e.db, orgID, types.ConventionScheduled)
	return conv, repotest.SeedDetail(t, e.ctx, e.db, conv.ID, "70", "0")
}
