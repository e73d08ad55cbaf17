package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/conventions/internal/domain/conventions"
)

var ConventionAggregateContract = Contract{
	Name:             "Conventions.ConventionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyReportReads,
	Notes:            "Owns the convention root, its base detail and the convention-level lifecycle; exposes the pricing report.",
}

// ConventionAggregate owns the convention root and its base terms.
type ConventionAggregate interface {
	Aggregate

	Create(ctx context.Context, in ConventionInput) (ConventionResult, error)
	// Update upserts the base terms in place; refused once an avenant superseded them.
	Update(ctx context.Context, conventionID uuid.UUID, in ConventionInput) (ConventionResult, error)

	Activate(ctx context.Context, in ActivateConventionInput) (*conventions.Convention, error)
	Expire(ctx context.Context, in ExpireConventionInput) (*conventions.Convention, error)

	// CalculatePricingReport recomputes every prestation of an annex's service against the
	// authoritative detail. Nothing is persisted.
	CalculatePricingReport(ctx context.Context, annexID uuid.UUID) (PricingReport, error)
}

type ConventionInput struct {
	OrganisationID     uuid.UUID
	Name               string
	StartDate          *time.Time
	EndDate            *time.Time
	DiscountPercentage decimal.Decimal
	MaxPrice           decimal.Decimal
	MinPrice           decimal.Decimal
	ActorID            uuid.UUID
}

type ConventionResult struct {
	Convention *conventions.Convention
	Detail     *conventions.ConventionDetail
}

type ActivateConventionInput struct {
	ConventionID   uuid.UUID
	ActivationDate time.Time
	Delayed        bool
	ActorID        uuid.UUID
}

type ExpireConventionInput struct {
	ConventionID uuid.UUID
	At           time.Time
	ActorID      uuid.UUID
}

type PricingReport struct {
	AnnexID            uuid.UUID
	ConventionID       uuid.UUID
	DetailID           uuid.UUID
	DiscountPercentage decimal.Decimal
	MaxPrice           decimal.Decimal
	Lines              []PricingReportLine
}

type PricingReportLine struct {
	// DisplayID is "<organisation abbreviation>-<service id>-<prestation id>".
	DisplayID            string
	PrestationID         uuid.UUID
	Code                 string
	Name                 string
	Prix                 decimal.Decimal
	CompanyPrice         decimal.Decimal
	PatientPrice         decimal.Decimal
	MaxPriceExceeded     bool
	OriginalCompanyShare decimal.Decimal
	OriginalPatientShare decimal.Decimal
}
