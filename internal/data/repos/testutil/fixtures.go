package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/clinicore/conventions/internal/domain/conventions"
)

func Dec(tb testing.TB, s string) decimal.Decimal {
	tb.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		tb.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func SeedOrganisation(tb testing.TB, ctx context.Context, tx *gorm.DB, abbr string) *types.Organisation {
	tb.Helper()
	o := &types.Organisation{
		ID:           uuid.New(),
		Name:         abbr + " Assurances",
		Abbreviation: abbr,
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed organisation: %v", err)
	}
	return o
}

func SeedPrestation(tb testing.TB, ctx context.Context, tx *gorm.DB, serviceID uuid.UUID, code, negotiated, public, global string) *types.Prestation {
	tb.Helper()
	p := &types.Prestation{
		ID:              uuid.New(),
		ServiceID:       serviceID,
		Code:            code,
		Name:            "prestation " + code,
		NegotiatedPrice: Dec(tb, negotiated),
		PublicPrice:     Dec(tb, public),
		Price:           Dec(tb, global),
		IsActive:        true,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed prestation: %v", err)
	}
	return p
}

func SeedConvention(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status types.ConventionStatus) *types.Convention {
	tb.Helper()
	c := &types.Convention{
		ID:             uuid.New(),
		OrganisationID: orgID,
		Name:           "convention",
		Status:         status,
		CreatedBy:      uuid.New(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed convention: %v", err)
	}
	return c
}

func SeedDetail(tb testing.TB, ctx context.Context, tx *gorm.DB, conventionID uuid.UUID, discount, maxPrice string) *types.ConventionDetail {
	tb.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	d := &types.ConventionDetail{
		ID:                 uuid.New(),
		ConventionID:       conventionID,
		StartDate:          &start,
		EndDate:            &end,
		DiscountPercentage: Dec(tb, discount),
		MaxPrice:           Dec(tb, maxPrice),
		Head:               true,
		CreatedBy:          uuid.New(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed convention detail: %v", err)
	}
	return d
}

func SeedAnnex(tb testing.TB, ctx context.Context, tx *gorm.DB, conventionID, serviceID uuid.UUID) *types.Annex {
	tb.Helper()
	a := &types.Annex{
		ID:                   uuid.New(),
		ConventionID:         conventionID,
		ServiceID:            serviceID,
		Name:                 "annex",
		PrestationPrixStatus: types.PriceGlobal,
		IsActive:             true,
		CreatedBy:            uuid.New(),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed annex: %v", err)
	}
	return a
}

func SeedAvenant(tb testing.TB, ctx context.Context, tx *gorm.DB, conventionID uuid.UUID, status types.AvenantStatus, head bool) *types.Avenant {
	tb.Helper()
	a := &types.Avenant{
		ID:           uuid.New(),
		ConventionID: conventionID,
		Status:       status,
		Head:         head,
		CreatorID:    uuid.New(),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed avenant: %v", err)
	}
	return a
}

func SeedLine(tb testing.TB, ctx context.Context, tx *gorm.DB, prestationID uuid.UUID, annexID, avenantID *uuid.UUID, prix, company, patient string, head bool) *types.PrestationPricing {
	tb.Helper()
	l := &types.PrestationPricing{
		ID:           uuid.New(),
		PrestationID: prestationID,
		AnnexID:      annexID,
		AvenantID:    avenantID,
		Prix:         Dec(tb, prix),
		CompanyPrice: Dec(tb, company),
		PatientPrice: Dec(tb, patient),
		Head:         head,
		CreatedBy:    uuid.New(),
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed price line: %v", err)
	}
	return l
}
