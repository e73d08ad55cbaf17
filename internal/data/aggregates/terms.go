package aggregates

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/domain/pricing"
	"github.com/clinicore/conventions/internal/platform/dbctx"
)

// notFound turns a missing row into a NotFound error naming what was looked up.
func notFound(op, what string, id uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainagg.NotFound(op, "%s not found: %s", what, id)
	}
	return err
}

// scopeTerms is the pricing context of a price line scope.
type scopeTerms struct {
	ConventionID uuid.UUID
	Annex        *types.Annex
	Avenant      *types.Avenant
	Detail       *types.ConventionDetail
}

// resolveScope loads the detail that prices a scope: the convention's authoritative
// detail for an annex, the avenant's own detail for an avenant.
func resolveScope(dbc dbctx.Context, r repos.Set, op string, scope domainagg.Scope) (scopeTerms, error) {
	var out scopeTerms
	if !scope.Valid() {
		return out, domainagg.InvalidInput(op, "scope must reference exactly one of annex or avenant")
	}
	if scope.IsAvenant() {
		av, err := r.Avenant.GetByID(dbc, scope.AvenantID)
		if err != nil {
			return out, notFound(op, "avenant", scope.AvenantID, err)
		}
		d, err := r.ConventionDetail.GetByAvenant(dbc, av.ID)
		if err != nil {
			return out, notFound(op, "convention detail for avenant", av.ID, err)
		}
		out.ConventionID = av.ConventionID
		out.Avenant = av
		out.Detail = d
		return out, nil
	}

	annex, err := r.Annex.GetByID(dbc, scope.AnnexID)
	if err != nil {
		return out, notFound(op, "annex", scope.AnnexID, err)
	}
	d, err := r.ConventionDetail.Authoritative(dbc, annex.ConventionID)
	if err != nil {
		return out, notFound(op, "convention detail for convention", annex.ConventionID, err)
	}
	out.ConventionID = annex.ConventionID
	out.Annex = annex
	out.Detail = d
	return out, nil
}

// validateTerms rejects a detail whose discount or ceiling cannot price anything.
func validateTerms(op string, d *types.ConventionDetail) error {
	if err := pricing.Validate(d.MinPrice, d.DiscountPercentage, d.MaxPrice); err != nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "convention detail "+d.ID.String()+" has invalid terms", err)
	}
	return nil
}

func scopeIDs(scope domainagg.Scope) (annexID, avenantID *uuid.UUID) {
	if scope.IsAvenant() {
		id := scope.AvenantID
		return nil, &id
	}
	id := scope.AnnexID
	return &id, nil
}

func lineScope(l *types.PrestationPricing) domainagg.Scope {
	if l.AvenantID != nil && *l.AvenantID != uuid.Nil {
		return domainagg.AvenantScope(*l.AvenantID)
	}
	if l.AnnexID != nil {
		return domainagg.AnnexScope(*l.AnnexID)
	}
	return domainagg.Scope{}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
