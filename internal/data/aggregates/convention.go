package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/domain/pricing"
	"github.com/clinicore/conventions/internal/observability"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

type ConventionAggregateDeps struct {
	Base  BaseDeps
	Repos repos.Set
}

type conventionAggregate struct {
	deps ConventionAggregateDeps
}

func NewConventionAggregate(deps ConventionAggregateDeps) domainagg.ConventionAggregate {
	deps.Base = deps.Base.withDefaults()
	return &conventionAggregate{deps: deps}
}

func (a *conventionAggregate) Contract() domainagg.Contract {
	return domainagg.ConventionAggregateContract
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := domainagg.DateOnly(*t)
	return &d
}

func validateConventionInput(op string, in domainagg.ConventionInput, requireOrg bool) error {
	if requireOrg && in.OrganisationID == uuid.Nil {
		return domainagg.InvalidInput(op, "missing organisation_id")
	}
	if requireOrg && strings.TrimSpace(in.Name) == "" {
		return domainagg.InvalidInput(op, "missing name")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return err
	}
	start, end := dateOnlyPtr(in.StartDate), dateOnlyPtr(in.EndDate)
	if start != nil && end != nil && end.Before(*start) {
		return domainagg.InvalidInput(op, "end_date %s is before start_date %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if err := pricing.Validate(in.MinPrice, in.DiscountPercentage, in.MaxPrice); err != nil {
		return domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	return nil
}

func (a *conventionAggregate) Create(ctx context.Context, in domainagg.ConventionInput) (domainagg.ConventionResult, error) {
	const op = "Conventions.Convention.Create"
	var out domainagg.ConventionResult
	if err := validateConventionInput(op, in, true); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		if _, err := r.Organisation.GetByID(dbc, in.OrganisationID); err != nil {
			return notFound(op, "organisation", in.OrganisationID, err)
		}
		start := dateOnlyPtr(in.StartDate)
		conv := &types.Convention{
			OrganisationID: in.OrganisationID,
			Name:           strings.TrimSpace(in.Name),
			Status:         types.ConventionScheduled,
			ActivationAt:   start,
			CreatedBy:      in.ActorID,
		}
		if _, err := r.Convention.Create(dbc, conv); err != nil {
			return err
		}
		detail := &types.ConventionDetail{
			ConventionID:       conv.ID,
			StartDate:          start,
			EndDate:            dateOnlyPtr(in.EndDate),
			DiscountPercentage: in.DiscountPercentage.Round(pricing.Places),
			MaxPrice:           in.MaxPrice.Round(pricing.Places),
			MinPrice:           in.MinPrice.Round(pricing.Places),
			Head:               true,
			CreatedBy:          in.ActorID,
		}
		if _, err := r.ConventionDetail.Create(dbc, detail); err != nil {
			return err
		}
		out = domainagg.ConventionResult{Convention: conv, Detail: detail}
		return nil
	})
	return out, err
}

// Update rewrites the base terms in place. Once an avenant has superseded them, terms
// change only through avenants.
func (a *conventionAggregate) Update(ctx context.Context, conventionID uuid.UUID, in domainagg.ConventionInput) (domainagg.ConventionResult, error) {
	const op = "Conventions.Convention.Update"
	var out domainagg.ConventionResult
	if conventionID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing convention_id")
	}
	if err := validateConventionInput(op, in, false); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		conv, err := r.Convention.LockByID(dbc, conventionID)
		if err != nil {
			return notFound(op, "convention", conventionID, err)
		}
		if conv.Status == types.ConventionTerminated {
			return domainagg.Conflict(op, "convention %s is terminated", conv.ID)
		}

		convUpdates := map[string]interface{}{"updated_by": in.ActorID}
		if name := strings.TrimSpace(in.Name); name != "" {
			convUpdates["name"] = name
		}
		if in.OrganisationID != uuid.Nil && in.OrganisationID != conv.OrganisationID {
			if _, err := r.Organisation.GetByID(dbc, in.OrganisationID); err != nil {
				return notFound(op, "organisation", in.OrganisationID, err)
			}
			convUpdates["organisation_id"] = in.OrganisationID
		}
		if conv.Status == types.ConventionScheduled && in.StartDate != nil {
			convUpdates["activation_at"] = dateOnlyPtr(in.StartDate)
		}
		if err := r.Convention.UpdateFields(dbc, conv.ID, convUpdates); err != nil {
			return err
		}

		terms := map[string]interface{}{
			"start_date":          dateOnlyPtr(in.StartDate),
			"end_date":            dateOnlyPtr(in.EndDate),
			"discount_percentage": in.DiscountPercentage.Round(pricing.Places),
			"max_price":           in.MaxPrice.Round(pricing.Places),
			"min_price":           in.MinPrice.Round(pricing.Places),
		}
		base, err := r.ConventionDetail.Base(dbc, conv.ID)
		switch {
		case isNotFound(err):
			base = &types.ConventionDetail{
				ConventionID:       conv.ID,
				StartDate:          dateOnlyPtr(in.StartDate),
				EndDate:            dateOnlyPtr(in.EndDate),
				DiscountPercentage: in.DiscountPercentage.Round(pricing.Places),
				MaxPrice:           in.MaxPrice.Round(pricing.Places),
				MinPrice:           in.MinPrice.Round(pricing.Places),
				Head:               true,
				CreatedBy:          in.ActorID,
			}
			if _, err := r.ConventionDetail.Create(dbc, base); err != nil {
				return err
			}
		case err != nil:
			return err
		case base.UpdatedByID != nil:
			return domainagg.Conflict(op, "base terms of convention %s were superseded by an avenant", conv.ID)
		default:
			if err := r.ConventionDetail.UpdateFields(dbc, base.ID, terms); err != nil {
				return err
			}
		}

		conv, err = r.Convention.GetByID(dbc, conv.ID)
		if err != nil {
			return err
		}
		detail, err := r.ConventionDetail.GetByID(dbc, base.ID)
		if err != nil {
			return err
		}
		out = domainagg.ConventionResult{Convention: conv, Detail: detail}
		return nil
	})
	return out, err
}

func (a *conventionAggregate) transition(dbc dbctx.Context, conv *types.Convention, to types.ConventionStatus, updates map[string]any) error {
	return casMove(a.deps.Base.CASGuard, dbc, types.Convention{}, conv.ID, conv.Status, to, updates)
}

func (a *conventionAggregate) Activate(ctx context.Context, in domainagg.ActivateConventionInput) (*types.Convention, error) {
	const op = "Conventions.Convention.Activate"
	if in.ConventionID == uuid.Nil {
		return nil, domainagg.InvalidInput(op, "missing convention_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return nil, err
	}
	if in.ActivationDate.IsZero() {
		return nil, domainagg.InvalidInput(op, "missing activation date")
	}
	at := in.ActivationDate.UTC()
	to := types.ConventionActive
	if in.Delayed {
		to = types.ConventionScheduled
	}

	var out *types.Convention
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		conv, err := r.Convention.LockByID(dbc, in.ConventionID)
		if err != nil {
			return notFound(op, "convention", in.ConventionID, err)
		}
		if _, err := r.ConventionDetail.Authoritative(dbc, conv.ID); err != nil {
			return notFound(op, "convention detail for convention", conv.ID, err)
		}
		if err := a.transition(dbc, conv, to, map[string]any{
			"activation_at": at,
			"updated_by":    in.ActorID,
		}); err != nil {
			return err
		}
		out, err = r.Convention.GetByID(dbc, conv.ID)
		return err
	})
	return out, err
}

func (a *conventionAggregate) Expire(ctx context.Context, in domainagg.ExpireConventionInput) (*types.Convention, error) {
	const op = "Conventions.Convention.Expire"
	if in.ConventionID == uuid.Nil {
		return nil, domainagg.InvalidInput(op, "missing convention_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return nil, err
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = a.deps.Base.Now().UTC()
	}

	var out *types.Convention
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		conv, err := r.Convention.LockByID(dbc, in.ConventionID)
		if err != nil {
			return notFound(op, "convention", in.ConventionID, err)
		}
		if err := a.transition(dbc, conv, types.ConventionTerminated, map[string]any{
			"terminated_at": at,
			"updated_by":    in.ActorID,
		}); err != nil {
			return err
		}
		out, err = r.Convention.GetByID(dbc, conv.ID)
		return err
	})
	return out, err
}

// CalculatePricingReport reads without locks: it only looks at authoritative rows.
func (a *conventionAggregate) CalculatePricingReport(ctx context.Context, annexID uuid.UUID) (domainagg.PricingReport, error) {
	const op = "Conventions.Convention.CalculatePricingReport"
	var out domainagg.PricingReport
	if annexID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing annex_id")
	}
	ctx, span := observability.Tracer().Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("annex.id", annexID.String()))

	out, err := a.pricingReport(dbctx.Context{Ctx: ctx}, op, annexID)
	if err != nil {
		mapped := MapError(op, err)
		span.RecordError(mapped)
		return domainagg.PricingReport{}, mapped
	}
	span.SetAttributes(attribute.Int("report.lines", len(out.Lines)))
	return out, nil
}

func (a *conventionAggregate) pricingReport(dbc dbctx.Context, op string, annexID uuid.UUID) (domainagg.PricingReport, error) {
	var out domainagg.PricingReport
	r := a.deps.Repos
	annex, err := r.Annex.GetByID(dbc, annexID)
	if err != nil {
		return out, notFound(op, "annex", annexID, err)
	}
	conv, err := r.Convention.GetByID(dbc, annex.ConventionID)
	if err != nil {
		return out, notFound(op, "convention", annex.ConventionID, err)
	}
	org, err := r.Organisation.GetByID(dbc, conv.OrganisationID)
	if err != nil {
		return out, notFound(op, "organisation", conv.OrganisationID, err)
	}
	detail, err := r.ConventionDetail.Authoritative(dbc, conv.ID)
	if err != nil {
		return out, notFound(op, "convention detail for convention", conv.ID, err)
	}
	if err := validateTerms(op, detail); err != nil {
		return out, err
	}
	items, err := r.Prestation.ListActiveByService(dbc, annex.ServiceID)
	if err != nil {
		return out, err
	}

	out = domainagg.PricingReport{
		AnnexID:            annex.ID,
		ConventionID:       conv.ID,
		DetailID:           detail.ID,
		DiscountPercentage: detail.DiscountPercentage,
		MaxPrice:           detail.MaxPrice,
		Lines:              make([]domainagg.PricingReportLine, 0, len(items)),
	}
	for _, item := range items {
		base := item.PriceFor(annex.PrestationPrixStatus)
		split := pricing.Calculate(base, detail.DiscountPercentage, detail.MaxPrice)
		out.Lines = append(out.Lines, domainagg.PricingReportLine{
			DisplayID:            fmt.Sprintf("%s-%s-%s", org.Abbreviation, annex.ServiceID, item.ID),
			PrestationID:         item.ID,
			Code:                 item.Code,
			Name:                 item.Name,
			Prix:                 base,
			CompanyPrice:         split.CompanyShare,
			PatientPrice:         split.PatientShare,
			MaxPriceExceeded:     split.Exceeded,
			OriginalCompanyShare: split.OriginalCompanyShare,
			OriginalPatientShare: split.OriginalPatientShare,
		})
	}
	return out, nil
}
