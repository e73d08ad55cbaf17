package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

const (
	duplicateSourceConvention = "convention"
	duplicateSourceAvenant    = "avenant"
)

type AvenantAggregateDeps struct {
	Base  BaseDeps
	Repos repos.Set
}

type avenantAggregate struct {
	deps AvenantAggregateDeps
}

func NewAvenantAggregate(deps AvenantAggregateDeps) domainagg.AvenantAggregate {
	deps.Base = deps.Base.withDefaults()
	return &avenantAggregate{deps: deps}
}

func (a *avenantAggregate) Contract() domainagg.Contract {
	return domainagg.AvenantAggregateContract
}

type duplicateMetadata struct {
	Source          string     `json:"source"`
	SourceAvenantID *uuid.UUID `json:"source_avenant_id,omitempty"`
	Lines           int        `json:"lines"`
}

func (m duplicateMetadata) json() datatypes.JSON {
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}

// copyLine clones the split of a live line into an avenant scope. Shares are copied,
// never recomputed.
func copyLine(src *types.PrestationPricing, avenantID, actorID uuid.UUID) *types.PrestationPricing {
	av := avenantID
	return &types.PrestationPricing{
		PrestationID:         src.PrestationID,
		AvenantID:            &av,
		Prix:                 src.Prix,
		CompanyPrice:         src.CompanyPrice,
		PatientPrice:         src.PatientPrice,
		MaxPriceExceeded:     src.MaxPriceExceeded,
		OriginalCompanyShare: src.OriginalCompanyShare,
		OriginalPatientShare: src.OriginalPatientShare,
		Head:                 false,
		CreatedBy:            actorID,
	}
}

func copyDetail(src *types.ConventionDetail, avenantID, actorID uuid.UUID) *types.ConventionDetail {
	av := avenantID
	return &types.ConventionDetail{
		ConventionID:       src.ConventionID,
		AvenantID:          &av,
		StartDate:          src.StartDate,
		EndDate:            src.EndDate,
		DiscountPercentage: src.DiscountPercentage,
		MaxPrice:           src.MaxPrice,
		MinPrice:           src.MinPrice,
		Head:               false,
		CreatedBy:          actorID,
	}
}

// duplicateInto supersedes every source line and the source detail with copies scoped
// to avenantID.
func (a *avenantAggregate) duplicateInto(
	dbc dbctx.Context,
	avenantID uuid.UUID,
	lines []*types.PrestationPricing,
	detail *types.ConventionDetail,
	actorID uuid.UUID,
) ([]*types.PrestationPricing, *types.ConventionDetail, error) {
	r := a.deps.Repos
	copies := make([]*types.PrestationPricing, 0, len(lines))
	for _, l := range lines {
		next, err := r.PrestationPricing.Supersede(dbc, l.ID, copyLine(l, avenantID, actorID))
		if err != nil {
			return nil, nil, err
		}
		copies = append(copies, next)
	}
	nextDetail, err := r.ConventionDetail.Supersede(dbc, detail.ID, copyDetail(detail, avenantID, actorID))
	if err != nil {
		return nil, nil, err
	}
	return copies, nextDetail, nil
}

func (a *avenantAggregate) DuplicateFromConvention(ctx context.Context, in domainagg.DuplicateInput) (domainagg.DuplicateResult, error) {
	const op = "Conventions.Avenant.DuplicateFromConvention"
	var out domainagg.DuplicateResult
	if in.ConventionID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing convention_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		if _, err := r.Convention.LockByID(dbc, in.ConventionID); err != nil {
			return notFound(op, "convention", in.ConventionID, err)
		}
		annexes, err := r.Annex.ListByConvention(dbc, in.ConventionID)
		if err != nil {
			return err
		}
		if len(annexes) == 0 {
			return domainagg.Conflict(op, "convention %s has no annexes", in.ConventionID)
		}
		base, err := r.ConventionDetail.Base(dbc, in.ConventionID)
		if err != nil {
			return notFound(op, "convention detail for convention", in.ConventionID, err)
		}
		if base.UpdatedByID != nil {
			return domainagg.Conflict(op, "convention %s is already amended; duplicate from its active avenant", in.ConventionID)
		}

		annexIDs := make([]uuid.UUID, 0, len(annexes))
		for _, an := range annexes {
			annexIDs = append(annexIDs, an.ID)
		}
		lines, err := r.PrestationPricing.ListLiveByAnnexes(dbc, annexIDs)
		if err != nil {
			return err
		}

		av := &types.Avenant{
			ConventionID: in.ConventionID,
			Description:  strings.TrimSpace(in.Description),
			Status:       types.AvenantPending,
			Head:         true,
			CreatorID:    in.ActorID,
			Metadata:     duplicateMetadata{Source: duplicateSourceConvention, Lines: len(lines)}.json(),
		}
		if _, err := r.Avenant.Create(dbc, av); err != nil {
			return err
		}

		copies, detail, err := a.duplicateInto(dbc, av.ID, lines, base, in.ActorID)
		if err != nil {
			return err
		}
		out = domainagg.DuplicateResult{Avenant: av, Detail: detail, Lines: copies}
		return nil
	})
	return out, err
}

func (a *avenantAggregate) DuplicateFromAvenant(ctx context.Context, in domainagg.DuplicateInput) (domainagg.DuplicateResult, error) {
	const op = "Conventions.Avenant.DuplicateFromAvenant"
	var out domainagg.DuplicateResult
	if in.ConventionID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing convention_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		if _, err := r.Convention.LockByID(dbc, in.ConventionID); err != nil {
			return notFound(op, "convention", in.ConventionID, err)
		}
		src, err := r.Avenant.LatestActive(dbc, in.ConventionID)
		if err != nil {
			if isNotFound(err) {
				return domainagg.Conflict(op, "no active avenant to duplicate from for convention %s", in.ConventionID)
			}
			return err
		}
		srcDetail, err := r.ConventionDetail.GetByAvenant(dbc, src.ID)
		if err != nil {
			return notFound(op, "convention detail for avenant", src.ID, err)
		}
		if srcDetail.UpdatedByID != nil {
			return domainagg.Conflict(op, "convention detail %s of avenant %s was already superseded", srcDetail.ID, src.ID)
		}
		lines, err := r.PrestationPricing.ListLiveByAvenant(dbc, src.ID)
		if err != nil {
			return err
		}

		srcID := src.ID
		av := &types.Avenant{
			ConventionID: in.ConventionID,
			Description:  strings.TrimSpace(in.Description),
			Status:       types.AvenantPending,
			Head:         false,
			CreatorID:    in.ActorID,
			Metadata:     duplicateMetadata{Source: duplicateSourceAvenant, SourceAvenantID: &srcID, Lines: len(lines)}.json(),
		}
		if _, err := r.Avenant.Supersede(dbc, src.ID, av); err != nil {
			return err
		}
		if src.Head {
			if err := r.Avenant.UpdateFields(dbc, src.ID, map[string]interface{}{"head": false}); err != nil {
				return err
			}
		}

		copies, detail, err := a.duplicateInto(dbc, av.ID, lines, srcDetail, in.ActorID)
		if err != nil {
			return err
		}
		out = domainagg.DuplicateResult{Avenant: av, Detail: detail, Lines: copies, SourceAvenantID: src.ID}
		return nil
	})
	return out, err
}

func (a *avenantAggregate) Activate(ctx context.Context, in domainagg.ActivateAvenantInput) (domainagg.ActivateAvenantResult, error) {
	const op = "Conventions.Avenant.Activate"
	var out domainagg.ActivateAvenantResult
	if in.AvenantID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing avenant_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return out, err
	}
	if in.ActivationDate.IsZero() {
		return out, domainagg.InvalidInput(op, "missing activation date")
	}
	at := in.ActivationDate.UTC()
	target := types.AvenantActive
	if in.Delayed {
		target = types.AvenantScheduled
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		av, err := r.Avenant.GetByID(dbc, in.AvenantID)
		if err != nil {
			return notFound(op, "avenant", in.AvenantID, err)
		}
		// Convention row lock first: every activation of the convention queues here.
		if _, err := r.Convention.LockByID(dbc, av.ConventionID); err != nil {
			return notFound(op, "convention", av.ConventionID, err)
		}
		av, err = r.Avenant.LockByID(dbc, in.AvenantID)
		if err != nil {
			return notFound(op, "avenant", in.AvenantID, err)
		}
		if !av.Status.CanTransitionTo(target) {
			return InvariantError(fmt.Sprintf("avenant %s cannot move from %s to %s", av.ID, av.Status, target))
		}

		var archived []uuid.UUID
		if !in.Delayed {
			others, err := r.Avenant.ListActiveExcept(dbc, av.ConventionID, av.ID)
			if err != nil {
				return err
			}
			for _, o := range others {
				if err := casMove(a.deps.Base.CASGuard, dbc, types.Avenant{}, o.ID, types.AvenantActive, types.AvenantArchived, map[string]any{
					"inactive_at": at,
					"head":        false,
				}); err != nil {
					return err
				}
				archived = append(archived, o.ID)
			}
		}

		updates := map[string]any{
			"activation_at": at,
			"approver_id":   in.ActorID,
		}
		if !in.Delayed {
			updates["head"] = true
		}
		if err := casMove(a.deps.Base.CASGuard, dbc, types.Avenant{}, av.ID, av.Status, target, updates); err != nil {
			return err
		}

		touched, err := r.PrestationPricing.SetActivationAtByAvenant(dbc, av.ID, at)
		if err != nil {
			return err
		}
		if _, err := r.ConventionDetail.SetStartDateByAvenant(dbc, av.ID, domainagg.DateOnly(at)); err != nil {
			return err
		}

		a.deps.Base.Log.Info("avenant activation applied",
			"avenant_id", av.ID,
			"convention_id", av.ConventionID,
			"status", target,
			"archived", len(archived),
			"approver_id", in.ActorID,
		)
		out = domainagg.ActivateAvenantResult{
			AvenantID:  av.ID,
			Status:     target,
			ArchivedID: archived,
			LinesTouch: touched,
			At:         at,
		}
		return nil
	})
	return out, err
}

func (a *avenantAggregate) Lineage(ctx context.Context, avenantID uuid.UUID) ([]*types.Avenant, error) {
	const op = "Conventions.Avenant.Lineage"
	if avenantID == uuid.Nil {
		return nil, domainagg.InvalidInput(op, "missing avenant_id")
	}
	chain, err := a.deps.Repos.Avenant.Lineage(dbctx.Context{Ctx: ctx}, avenantID)
	if err != nil {
		return nil, MapError(op, notFound(op, "avenant", avenantID, err))
	}
	return chain, nil
}
