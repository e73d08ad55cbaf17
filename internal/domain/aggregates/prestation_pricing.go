package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/conventions/internal/domain/conventions"
)

var PrestationPricingAggregateContract = Contract{
	Name:             "Conventions.PrestationPricingAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns ad-hoc edits of single price lines inside an existing annex or avenant scope.",
}

// PrestationPricingAggregate creates, edits and removes individual price lines.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type PrestationPricingAggregate interface {
	Aggregate

	// Create adds a head price line for (prestation, scope). Manual shares override the
	// computed split only when both are supplied.
	Create(ctx context.Context, in CreatePricingInput) (*conventions.PrestationPricing, error)

	// Update rewrites prix and split of an un-superseded line in place. Manual shares are
	// kept only when their sum matches prix within 0.01; otherwise the split is recomputed.
	Update(ctx context.Context, in UpdatePricingInput) (*conventions.PrestationPricing, error)

	// Delete hard-removes a line that is not part of a revision chain.
	Delete(ctx context.Context, in DeletePricingInput) error
}

type CreatePricingInput struct {
	Scope         Scope
	PrestationID  uuid.UUID
	Prix          decimal.Decimal
	ManualCompany *decimal.Decimal
	ManualPatient *decimal.Decimal
	ActorID       uuid.UUID
}

type UpdatePricingInput struct {
	LineID        uuid.UUID
	Prix          decimal.Decimal
	ManualCompany *decimal.Decimal
	ManualPatient *decimal.Decimal
	ActorID       uuid.UUID
}

type DeletePricingInput struct {
	LineID  uuid.UUID
	ActorID uuid.UUID
}
