package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/domain/pricing"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

type AnnexAggregateDeps struct {
	Base  BaseDeps
	Repos repos.Set
}

type annexAggregate struct {
	deps AnnexAggregateDeps
}

func NewAnnexAggregate(deps AnnexAggregateDeps) domainagg.AnnexAggregate {
	deps.Base = deps.Base.withDefaults()
	return &annexAggregate{deps: deps}
}

func (a *annexAggregate) Contract() domainagg.Contract {
	return domainagg.AnnexAggregateContract
}

func (a *annexAggregate) CreateAnnex(ctx context.Context, in domainagg.CreateAnnexInput) (domainagg.CreateAnnexResult, error) {
	const op = "Conventions.Annex.Create"
	var out domainagg.CreateAnnexResult

	if in.ConventionID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing convention_id")
	}
	if in.ServiceID == uuid.Nil {
		return out, domainagg.InvalidInput(op, "missing service_id")
	}
	if err := requireActor(op, in.ActorID); err != nil {
		return out, err
	}
	status, ok := types.ParsePriceStatus(string(in.PrestationPrixStatus))
	if !ok {
		return out, domainagg.InvalidInput(op, "unknown prestation_prix_status %q", in.PrestationPrixStatus)
	}
	if in.MinPrice.IsNegative() {
		return out, domainagg.InvalidInput(op, "min_price must be >= 0")
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r := a.deps.Repos
		if _, err := r.Convention.GetByID(dbc, in.ConventionID); err != nil {
			return notFound(op, "convention", in.ConventionID, err)
		}
		exists, err := r.Annex.ExistsForService(dbc, in.ConventionID, in.ServiceID)
		if err != nil {
			return err
		}
		if exists {
			return domainagg.Conflict(op, "convention %s already has an annex for service %s", in.ConventionID, in.ServiceID)
		}

		annex := &types.Annex{
			ConventionID:         in.ConventionID,
			ServiceID:            in.ServiceID,
			Name:                 strings.TrimSpace(in.Name),
			PrestationPrixStatus: status,
			MinPrice:             in.MinPrice.Round(pricing.Places),
			IsActive:             true,
			CreatedBy:            in.ActorID,
		}
		if _, err := r.Annex.Create(dbc, annex); err != nil {
			return err
		}

		detail, err := r.ConventionDetail.Authoritative(dbc, in.ConventionID)
		if err != nil {
			return notFound(op, "convention detail for convention", in.ConventionID, err)
		}
		if err := validateTerms(op, detail); err != nil {
			return err
		}

		items, err := r.Prestation.ListActiveByService(dbc, in.ServiceID)
		if err != nil {
			return err
		}
		lines := make([]*types.PrestationPricing, 0, len(items))
		for _, item := range items {
			base := item.PriceFor(status)
			if base.IsNegative() {
				return domainagg.InvalidInput(op, "prestation %s has a negative %s price", item.ID, status)
			}
			split := pricing.Calculate(base, detail.DiscountPercentage, detail.MaxPrice)
			annexID := annex.ID
			lines = append(lines, &types.PrestationPricing{
				PrestationID:         item.ID,
				AnnexID:              &annexID,
				Prix:                 base,
				CompanyPrice:         split.CompanyShare,
				PatientPrice:         split.PatientShare,
				MaxPriceExceeded:     split.Exceeded,
				OriginalCompanyShare: split.OriginalCompanyShare,
				OriginalPatientShare: split.OriginalPatientShare,
				Head:                 true,
				CreatedBy:            in.ActorID,
			})
		}
		created, err := r.PrestationPricing.Create(dbc, lines)
		if err != nil {
			return err
		}

		out = domainagg.CreateAnnexResult{Annex: annex, Lines: created}
		return nil
	})
	return out, err
}
