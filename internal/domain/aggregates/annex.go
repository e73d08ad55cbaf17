package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/conventions/internal/domain/conventions"
)

var AnnexAggregateContract = Contract{
	Name:             "Conventions.AnnexAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Creates an annex and seeds one head price line per prestation of its service in one transaction.",
}

// AnnexAggregate owns annex creation.
type AnnexAggregate interface {
	Aggregate

	CreateAnnex(ctx context.Context, in CreateAnnexInput) (CreateAnnexResult, error)
}

type CreateAnnexInput struct {
	ConventionID         uuid.UUID
	ServiceID            uuid.UUID
	Name                 string
	PrestationPrixStatus conventions.PriceStatus
	MinPrice             decimal.Decimal
	ActorID              uuid.UUID
}

type CreateAnnexResult struct {
	Annex *conventions.Annex
	Lines []*conventions.PrestationPricing
}
