package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/domain/pricing"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

type PrestationPricingAggregateDeps struct {
	Base  BaseDeps
	Repos repos.Set
}

type prestationPricingAggregate struct {
	deps PrestationPricingAggregateDeps
}

func NewPrestationPricingAggregate(deps PrestationPricingAggregateDeps) domainagg.PrestationPricingAggregate {
	deps.Base = deps.Base.withDefaults()
	return &prestationPricingAggregate{deps: deps}
}

func (a *prestationPricingAggregate) Contract() domainagg.Contract {
	return domainagg.PrestationPricingAggregateContract
}

func validateManualShares(op string, company, patient *decimal.Decimal) error {
	if (company == nil) != (patient == nil) {
		return domainagg.InvalidInput(op, "manual shares must be given together")
	}
	if company != nil && company.IsNegative() {
		return domainagg.InvalidInput(op, "manual company share must be >= 0")
	}
	if patient != nil && patient.IsNegative() {
		return domainagg.InvalidInput(op, "manual patient share must be >= 0")
	}
	return nil
}

func (a *prestationPricingAggregate) Create(ctx context.Context, in domainagg.CreatePricingInput) (*types.PrestationPricing, error) {
	const op = "Conventions.PrestationPricing.Create"
	if !in.Scope.Valid() {
		return nil, domainagg.InvalidInput(op, "scope must reference exactly one of annex or avenant")
	}
	if in.PrestationID == uuid.Nil {
		return nil, domainagg.InvalidInput(op, "missing prestation_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return nil, err
	}
	if in.Prix.IsNegative() {
		return nil, domainagg.InvalidInput(op, "prix must be >= 0")
	}
	if err := validateManualShares(op, in.ManualCompany, in.ManualPatient); err != nil {
		return nil, err
	}
	prix := in.Prix.Round(pricing.Places)

	var out *types.PrestationPricing
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		if _, err := r.Prestation.GetByID(dbc, in.PrestationID); err != nil {
			return notFound(op, "prestation", in.PrestationID, err)
		}
		terms, err := resolveScope(dbc, r, op, in.Scope)
		if err != nil {
			return err
		}
		if err := validateTerms(op, terms.Detail); err != nil {
			return err
		}
		exists, err := r.PrestationPricing.ExistsLive(dbc, in.PrestationID, in.Scope)
		if err != nil {
			return err
		}
		if exists {
			return domainagg.Conflict(op, "a head price line already exists for prestation %s in %s", in.PrestationID, in.Scope)
		}

		split := pricing.Calculate(prix, terms.Detail.DiscountPercentage, terms.Detail.MaxPrice)
		annexID, avenantID := scopeIDs(in.Scope)
		line := &types.PrestationPricing{
			PrestationID:         in.PrestationID,
			AnnexID:              annexID,
			AvenantID:            avenantID,
			Prix:                 prix,
			CompanyPrice:         split.CompanyShare,
			PatientPrice:         split.PatientShare,
			MaxPriceExceeded:     split.Exceeded,
			OriginalCompanyShare: split.OriginalCompanyShare,
			OriginalPatientShare: split.OriginalPatientShare,
			Head:                 true,
			CreatedBy:            in.ActorID,
		}
		if in.ManualCompany != nil && in.ManualPatient != nil {
			line.CompanyPrice = in.ManualCompany.Round(pricing.Places)
			line.PatientPrice = in.ManualPatient.Round(pricing.Places)
			line.MaxPriceExceeded = pricing.Exceeds(line.CompanyPrice, terms.Detail.MaxPrice)
		}
		if terms.Avenant != nil && terms.Avenant.ActivationAt != nil {
			at := *terms.Avenant.ActivationAt
			line.ActivationAt = &at
		}

		created, err := r.PrestationPricing.Create(dbc, []*types.PrestationPricing{line})
		if err != nil {
			return err
		}
		out = created[0]
		return nil
	})
	return out, err
}

func (a *prestationPricingAggregate) Update(ctx context.Context, in domainagg.UpdatePricingInput) (*types.PrestationPricing, error) {
	const op = "Conventions.PrestationPricing.Update"
	if in.LineID == uuid.Nil {
		return nil, domainagg.InvalidInput(op, "missing line_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return nil, err
	}
	if in.Prix.IsNegative() {
		return nil, domainagg.InvalidInput(op, "prix must be >= 0")
	}
	if err := validateManualShares(op, in.ManualCompany, in.ManualPatient); err != nil {
		return nil, err
	}
	prix := in.Prix.Round(pricing.Places)

	var out *types.PrestationPricing
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		line, err := r.PrestationPricing.GetByID(dbc, in.LineID)
		if err != nil {
			return notFound(op, "price line", in.LineID, err)
		}
		if line.UpdatedByID != nil {
			return domainagg.Conflict(op, "price line %s was superseded by %s", line.ID, *line.UpdatedByID)
		}
		terms, err := resolveScope(dbc, r, op, lineScope(line))
		if err != nil {
			return err
		}
		if err := validateTerms(op, terms.Detail); err != nil {
			return err
		}

		split := pricing.Calculate(prix, terms.Detail.DiscountPercentage, terms.Detail.MaxPrice)
		company, patient, exceeded := split.CompanyShare, split.PatientShare, split.Exceeded
		if in.ManualCompany != nil && in.ManualPatient != nil {
			mc := in.ManualCompany.Round(pricing.Places)
			mp := in.ManualPatient.Round(pricing.Places)
			if pricing.SumMatches(mc, mp, prix) {
				company, patient = mc, mp
				exceeded = pricing.Exceeds(mc, terms.Detail.MaxPrice)
			} else {
				a.deps.Base.Log.Debug("manual shares ignored, sum does not match prix",
					"line_id", line.ID, "prix", prix.String(), "company", mc.String(), "patient", mp.String())
			}
		}

		if err := r.PrestationPricing.UpdateFields(dbc, line.ID, map[string]interface{}{
			"prix":                   prix,
			"company_price":          company,
			"patient_price":          patient,
			"max_price_exceeded":     exceeded,
			"original_company_share": split.OriginalCompanyShare,
			"original_patient_share": split.OriginalPatientShare,
			"updated_by":             in.ActorID,
		}); err != nil {
			return err
		}
		out, err = r.PrestationPricing.GetByID(dbc, line.ID)
		return err
	})
	return out, err
}

func (a *prestationPricingAggregate) Delete(ctx context.Context, in domainagg.DeletePricingInput) error {
	const op = "Conventions.PrestationPricing.Delete"
	if in.LineID == uuid.Nil {
		return domainagg.InvalidInput(op, "missing line_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return err
	}

	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		line, err := r.PrestationPricing.GetByID(dbc, in.LineID)
		if err != nil {
			return notFound(op, "price line", in.LineID, err)
		}
		if line.UpdatedByID != nil {
			return domainagg.Conflict(op, "price line %s is part of a revision chain", line.ID)
		}
		hasPred, err := r.PrestationPricing.HasPredecessor(dbc, line.ID)
		if err != nil {
			return err
		}
		if hasPred {
			return domainagg.Conflict(op, "price line %s supersedes another line", line.ID)
		}
		if err := r.PrestationPricing.Delete(dbc, line.ID); err != nil {
			return notFound(op, "price line", line.ID, err)
		}
		a.deps.Base.Log.Info("price line deleted", "line_id", line.ID, "actor_id", in.ActorID)
		return nil
	})
}
