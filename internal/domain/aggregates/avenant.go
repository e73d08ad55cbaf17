package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/conventions/internal/domain/conventions"
)

var AvenantAggregateContract = Contract{
	Name:             "Conventions.AvenantAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns avenant revision chains and the single-active-avenant-per-convention state machine.",
}

// AvenantAggregate opens amendments by duplicating the live price lines and terms of a
// convention, and flips them to authoritative.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type AvenantAggregate interface {
	Aggregate

	// DuplicateFromConvention opens the first avenant of a convention from its annex lines
	// and base detail.
	DuplicateFromConvention(ctx context.Context, in DuplicateInput) (DuplicateResult, error)

	// DuplicateFromAvenant opens a new avenant from the convention's live active avenant.
	DuplicateFromAvenant(ctx context.Context, in DuplicateInput) (DuplicateResult, error)

	// Activate schedules (Delayed) or immediately activates an avenant. Immediate
	// activation archives every other active avenant of the convention atomically.
	Activate(ctx context.Context, in ActivateAvenantInput) (ActivateAvenantResult, error)

	// Lineage follows the supersede chain from avenantID to its tip.
	Lineage(ctx context.Context, avenantID uuid.UUID) ([]*conventions.Avenant, error)
}

type DuplicateInput struct {
	ConventionID uuid.UUID
	Description  string
	ActorID      uuid.UUID
}

type DuplicateResult struct {
	Avenant *conventions.Avenant
	Detail  *conventions.ConventionDetail
	Lines   []*conventions.PrestationPricing
	// SourceAvenantID is uuid.Nil when duplicated from the convention itself.
	SourceAvenantID uuid.UUID
}

type ActivateAvenantInput struct {
	AvenantID      uuid.UUID
	ActivationDate time.Time
	Delayed        bool
	ActorID        uuid.UUID
}

type ActivateAvenantResult struct {
	AvenantID  uuid.UUID
	Status     conventions.AvenantStatus
	ArchivedID []uuid.UUID
	LinesTouch int64
	At         time.Time
}
