package aggregates_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	repotest "github.com/clinicore/conventions/internal/data/repos/testutil"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
)

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := repotest.Dec(t, s)
	return &d
}

func TestPricingCreateComputesSplit(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	item := repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, "A003", "0", "0", "1000")

	line, err := e.pricing(t).Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AnnexScope(p.annex.ID),
		PrestationID: item.ID,
		Prix:         repotest.Dec(t, "1000"),
		ActorID:      e.actor,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !line.Head {
		t.Fatalf("line must be head")
	}
	if !line.CompanyPrice.Equal(repotest.Dec(t, "600")) || !line.PatientPrice.Equal(repotest.Dec(t, "400")) || !line.MaxPriceExceeded {
		t.Fatalf("split: got company=%s patient=%s exceeded=%v", line.CompanyPrice, line.PatientPrice, line.MaxPriceExceeded)
	}
	if !line.OriginalCompanyShare.Equal(repotest.Dec(t, "800")) || !line.OriginalPatientShare.Equal(repotest.Dec(t, "200")) {
		t.Fatalf("original shares: got %s/%s", line.OriginalCompanyShare, line.OriginalPatientShare)
	}
}

func TestPricingCreateRejectsSecondHeadLine(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)

	_, err := agg.Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AnnexScope(p.annex.ID),
		PrestationID: p.prestations[0].ID,
		Prix:         repotest.Dec(t, "1000"),
		ActorID:      e.actor,
	})
	requireCode(t, err, domainagg.CodeConflict)
	if status, _ := e.hooks.LastStatus("Conventions.PrestationPricing.Create"); status != string(domainagg.CodeConflict) {
		t.Fatalf("hook status: want=conflict got=%q", status)
	}
}

func TestPricingCreateManualOverrideRecomputesExceeded(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)

	cases := []struct {
		code             string
		company, patient string
		wantExceeded     bool
	}{
		{code: "M001", company: "450", patient: "50", wantExceeded: false},
		{code: "M002", company: "650", patient: "0", wantExceeded: true},
	}
	for _, tc := range cases {
		item := repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, tc.code, "0", "0", "500")
		line, err := agg.Create(e.ctx, domainagg.CreatePricingInput{
			Scope:         domainagg.AnnexScope(p.annex.ID),
			PrestationID:  item.ID,
			Prix:          repotest.Dec(t, "500"),
			ManualCompany: decPtr(t, tc.company),
			ManualPatient: decPtr(t, tc.patient),
			ActorID:       e.actor,
		})
		if err != nil {
			t.Fatalf("%s: Create: %v", tc.code, err)
		}
		if !line.CompanyPrice.Equal(repotest.Dec(t, tc.company)) || !line.PatientPrice.Equal(repotest.Dec(t, tc.patient)) {
			t.Fatalf("%s: manual shares not kept: %s/%s", tc.code, line.CompanyPrice, line.PatientPrice)
		}
		if line.MaxPriceExceeded != tc.wantExceeded {
			t.Fatalf("%s: exceeded: want=%v got=%v", tc.code, tc.wantExceeded, line.MaxPriceExceeded)
		}
	}
}

func TestPricingCreateValidation(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)
	item := repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, "V001", "0", "0", "100")

	_, err := agg.Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.Scope{AnnexID: p.annex.ID, AvenantID: uuid.New()},
		PrestationID: item.ID,
		Prix:         repotest.Dec(t, "100"),
		ActorID:      e.actor,
	})
	requireCode(t, err, domainagg.CodeValidation)

	_, err = agg.Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AnnexScope(p.annex.ID),
		PrestationID: item.ID,
		Prix:         repotest.Dec(t, "-1"),
		ActorID:      e.actor,
	})
	requireCode(t, err, domainagg.CodeValidation)

	_, err = agg.Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AnnexScope(uuid.New()),
		PrestationID: item.ID,
		Prix:         repotest.Dec(t, "100"),
		ActorID:      e.actor,
	})
	requireCode(t, err, domainagg.CodeNotFound)

	_, err = agg.Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AnnexScope(p.annex.ID),
		PrestationID: uuid.New(),
		Prix:         repotest.Dec(t, "100"),
		ActorID:      e.actor,
	})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestPricingRejectsLoneManualShare(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)
	item := repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, "M001", "0", "0", "1000")

	_, err := agg.Create(e.ctx, domainagg.CreatePricingInput{
		Scope:         domainagg.AnnexScope(p.annex.ID),
		PrestationID:  item.ID,
		Prix:          repotest.Dec(t, "1000"),
		ManualCompany: decPtr(t, "700"),
		ActorID:       e.actor,
	})
	requireCode(t, err, domainagg.CodeValidation)
	exists, err := e.repos.PrestationPricing.ExistsLive(e.dbc(), item.ID, domainagg.AnnexScope(p.annex.ID))
	if err != nil {
		t.Fatalf("ExistsLive: %v", err)
	}
	if exists {
		t.Fatalf("rejected create must not persist a line")
	}

	line := p.lines[1]
	_, err = agg.Update(e.ctx, domainagg.UpdatePricingInput{
		LineID:        line.ID,
		Prix:          repotest.Dec(t, "500"),
		ManualPatient: decPtr(t, "100"),
		ActorID:       e.actor,
	})
	requireCode(t, err, domainagg.CodeValidation)
	got, err := e.repos.PrestationPricing.GetByID(e.dbc(), line.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.CompanyPrice.Equal(line.CompanyPrice) || !got.PatientPrice.Equal(line.PatientPrice) {
		t.Fatalf("line changed: want %s/%s got %s/%s", line.CompanyPrice, line.PatientPrice, got.CompanyPrice, got.PatientPrice)
	}
}

func TestPricingCreateInAvenantScopeUsesAvenantTerms(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	dup, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	item := repotest.SeedPrestation(t, e.ctx, e.db, p.serviceID, "N001", "0", "0", "200")

	line, err := e.pricing(t).Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AvenantScope(dup.Avenant.ID),
		PrestationID: item.ID,
		Prix:         repotest.Dec(t, "200"),
		ActorID:      e.actor,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if line.AvenantID == nil || *line.AvenantID != dup.Avenant.ID || line.AnnexID != nil {
		t.Fatalf("scope: annex=%v avenant=%v", line.AnnexID, line.AvenantID)
	}
	if !line.CompanyPrice.Equal(repotest.Dec(t, "160")) || !line.PatientPrice.Equal(repotest.Dec(t, "40")) {
		t.Fatalf("split: got %s/%s", line.CompanyPrice, line.PatientPrice)
	}

	// Copies are head=false but still live, so a second line for the same item conflicts.
	_, err = e.pricing(t).Create(e.ctx, domainagg.CreatePricingInput{
		Scope:        domainagg.AvenantScope(dup.Avenant.ID),
		PrestationID: p.prestations[0].ID,
		Prix:         repotest.Dec(t, "1000"),
		ActorID:      e.actor,
	})
	requireCode(t, err, domainagg.CodeConflict)
}

func TestPricingUpdateIgnoresMismatchedManualShares(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)
	line := p.lines[0]

	got, err := agg.Update(e.ctx, domainagg.UpdatePricingInput{
		LineID:        line.ID,
		Prix:          repotest.Dec(t, "1000"),
		ManualCompany: decPtr(t, "100"),
		ManualPatient: decPtr(t, "100"),
		ActorID:       e.actor,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.CompanyPrice.Equal(repotest.Dec(t, "600")) || !got.PatientPrice.Equal(repotest.Dec(t, "400")) || !got.MaxPriceExceeded {
		t.Fatalf("recompute: got company=%s patient=%s exceeded=%v", got.CompanyPrice, got.PatientPrice, got.MaxPriceExceeded)
	}
	if got.UpdatedByID != nil {
		t.Fatalf("in-place update must not start a revision")
	}
}

func TestPricingUpdateKeepsMatchingManualShares(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)

	cases := []struct {
		company, patient string
		wantExceeded     bool
	}{
		{company: "700", patient: "300", wantExceeded: true},
		{company: "500", patient: "500", wantExceeded: false},
		{company: "499.995", patient: "500", wantExceeded: false},
	}
	for _, tc := range cases {
		got, err := agg.Update(e.ctx, domainagg.UpdatePricingInput{
			LineID:        p.lines[0].ID,
			Prix:          repotest.Dec(t, "1000"),
			ManualCompany: decPtr(t, tc.company),
			ManualPatient: decPtr(t, tc.patient),
			ActorID:       e.actor,
		})
		if err != nil {
			t.Fatalf("%s/%s: Update: %v", tc.company, tc.patient, err)
		}
		wantCompany := repotest.Dec(t, tc.company).Round(2)
		if !got.CompanyPrice.Equal(wantCompany) {
			t.Fatalf("%s/%s: company: want=%s got=%s", tc.company, tc.patient, wantCompany, got.CompanyPrice)
		}
		if got.MaxPriceExceeded != tc.wantExceeded {
			t.Fatalf("%s/%s: exceeded: want=%v got=%v", tc.company, tc.patient, tc.wantExceeded, got.MaxPriceExceeded)
		}
		if !got.OriginalCompanyShare.Equal(repotest.Dec(t, "800")) {
			t.Fatalf("original company share: got %s", got.OriginalCompanyShare)
		}
	}
}

func TestPricingUpdateSupersededLineConflicts(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	if _, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor}); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	_, err := e.pricing(t).Update(e.ctx, domainagg.UpdatePricingInput{
		LineID:  p.lines[0].ID,
		Prix:    repotest.Dec(t, "1000"),
		ActorID: e.actor,
	})
	requireCode(t, err, domainagg.CodeConflict)

	_, err = e.pricing(t).Update(e.ctx, domainagg.UpdatePricingInput{
		LineID:  uuid.New(),
		Prix:    repotest.Dec(t, "1000"),
		ActorID: e.actor,
	})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestPricingDelete(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	agg := e.pricing(t)

	if err := agg.Delete(e.ctx, domainagg.DeletePricingInput{LineID: p.lines[1].ID, ActorID: e.actor}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.repos.PrestationPricing.GetByID(e.dbc(), p.lines[1].ID); err == nil {
		t.Fatalf("line should be gone")
	}
	err := agg.Delete(e.ctx, domainagg.DeletePricingInput{LineID: p.lines[1].ID, ActorID: e.actor})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestPricingDeleteRefusesRevisionChains(t *testing.T) {
	e := newEnv(t)
	p := seedPriced(t, e)
	dup, err := e.avenants(t).DuplicateFromConvention(e.ctx, domainagg.DuplicateInput{ConventionID: p.conv.ID, ActorID: e.actor})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	agg := e.pricing(t)

	err = agg.Delete(e.ctx, domainagg.DeletePricingInput{LineID: p.lines[0].ID, ActorID: e.actor})
	requireCode(t, err, domainagg.CodeConflict)

	err = agg.Delete(e.ctx, domainagg.DeletePricingInput{LineID: dup.Lines[0].ID, ActorID: e.actor})
	requireCode(t, err, domainagg.CodeConflict)
}
