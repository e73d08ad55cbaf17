package conventions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/data/repos/testutil"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

func TestSupersedeChainVisitsEveryRowOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewPrestationPricingRepo(db, testutil.Logger(t))

	org := testutil.SeedOrganisation(t, ctx, tx, "AXA")
	conv := testutil.SeedConvention(t, ctx, tx, org.ID, types.ConventionActive)
	serviceID := uuid.New()
	annex := testutil.SeedAnnex(t, ctx, tx, conv.ID, serviceID)
	item := testutil.SeedPrestation(t, ctx, tx, serviceID, "P001", "900", "950", "1000")
	root := testutil.SeedLine(t, ctx, tx, item.ID, &annex.ID, nil, "1000", "600", "400", true)

	const n = 5
	ids := []uuid.UUID{root.ID}
	prev := root.ID
	for i := 0; i < n; i++ {
		av := testutil.SeedAvenant(t, ctx, tx, conv.ID, types.AvenantPending, false)
		next := &types.PrestationPricing{
			PrestationID: item.ID,
			AvenantID:    &av.ID,
			Prix:         root.Prix,
			CompanyPrice: root.CompanyPrice,
			PatientPrice: root.PatientPrice,
			CreatedBy:    uuid.New(),
		}
		got, err := repo.Supersede(dbc, prev, next)
		if err != nil {
			t.Fatalf("Supersede #%d: %v", i, err)
		}
		ids = append(ids, got.ID)
		prev = got.ID
	}

	chain, err := repo.Lineage(dbc, root.ID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(chain) != n+1 {
		t.Fatalf("chain length: want=%d got=%d", n+1, len(chain))
	}
	seen := map[uuid.UUID]bool{}
	for i, row := range chain {
		if row.ID != ids[i] {
			t.Fatalf("chain[%d]: want=%s got=%s", i, ids[i], row.ID)
		}
		if seen[row.ID] {
			t.Fatalf("row %s visited twice", row.ID)
		}
		seen[row.ID] = true
	}
	tip := chain[len(chain)-1]
	if tip.UpdatedByID != nil {
		t.Fatalf("tip must not be superseded, got updated_by_id=%s", *tip.UpdatedByID)
	}
	for _, row := range chain[:len(chain)-1] {
		if row.UpdatedByID == nil {
			t.Fatalf("row %s should be superseded", row.ID)
		}
	}

	has, err := repo.HasPredecessor(dbc, tip.ID)
	if err != nil {
		t.Fatalf("HasPredecessor: %v", err)
	}
	if !has {
		t.Fatalf("tip should have a predecessor")
	}
}

func TestSupersedeRejectsStalePredecessor(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewConventionDetailRepo(db, testutil.Logger(t))

	org := testutil.SeedOrganisation(t, ctx, tx, "MGN")
	conv := testutil.SeedConvention(t, ctx, tx, org.ID, types.ConventionActive)
	base := testutil.SeedDetail(t, ctx, tx, conv.ID, "80", "600")

	first := &types.ConventionDetail{ConventionID: conv.ID, DiscountPercentage: base.DiscountPercentage, CreatedBy: uuid.New()}
	if _, err := repo.Supersede(dbc, base.ID, first); err != nil {
		t.Fatalf("first Supersede: %v", err)
	}
	second := &types.ConventionDetail{ConventionID: conv.ID, DiscountPercentage: base.DiscountPercentage, CreatedBy: uuid.New()}
	_, err := repo.Supersede(dbc, base.ID, second)
	if !errors.Is(err, ErrStaleRevision) {
		t.Fatalf("second Supersede: want=%v got=%v", ErrStaleRevision, err)
	}

	missing := &types.ConventionDetail{ConventionID: conv.ID, CreatedBy: uuid.New()}
	_, err = repo.Supersede(dbc, uuid.New(), missing)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("missing predecessor: want=%v got=%v", gorm.ErrRecordNotFound, err)
	}
}

func TestLineageDetectsCycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewAvenantRepo(db, testutil.Logger(t))
	org := testutil.SeedOrganisation(t, ctx, tx, "CYC")
	conv := testutil.SeedConvention(t, ctx, tx, org.ID, types.ConventionActive)
	a := testutil.SeedAvenant(t, ctx, tx, conv.ID, types.AvenantActive, true)
	b := testutil.SeedAvenant(t, ctx, tx, conv.ID, types.AvenantPending, false)

	if err := repo.UpdateFields(dbc, a.ID, map[string]interface{}{"updated_by_id": b.ID}); err != nil {
		t.Fatalf("link a->b: %v", err)
	}
	if err := repo.UpdateFields(dbc, b.ID, map[string]interface{}{"updated_by_id": a.ID}); err != nil {
		t.Fatalf("link b->a: %v", err)
	}
	if _, err := repo.Lineage(dbc, a.ID); !errors.Is(err, ErrRevisionCycle) {
		t.Fatalf("Lineage: want=%v got=%v", ErrRevisionCycle, err)
	}
}
