package repos

import (
	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/data/repos/conventions"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type OrganisationRepo = conventions.OrganisationRepo
type PrestationRepo = conventions.PrestationRepo

type ConventionRepo = conventions.ConventionRepo
type ConventionDetailRepo = conventions.ConventionDetailRepo
type AnnexRepo = conventions.AnnexRepo
type AvenantRepo = conventions.AvenantRepo
type PrestationPricingRepo = conventions.PrestationPricingRepo

func NewOrganisationRepo(db *gorm.DB, baseLog *logger.Logger) OrganisationRepo {
	return conventions.NewOrganisationRepo(db, baseLog)
}
func NewPrestationRepo(db *gorm.DB, baseLog *logger.Logger) PrestationRepo {
	return conventions.NewPrestationRepo(db, baseLog)
}

func NewConventionRepo(db *gorm.DB, baseLog *logger.Logger) ConventionRepo {
	return conventions.NewConventionRepo(db, baseLog)
}
func NewConventionDetailRepo(db *gorm.DB, baseLog *logger.Logger) ConventionDetailRepo {
	return conventions.NewConventionDetailRepo(db, baseLog)
}
func NewAnnexRepo(db *gorm.DB, baseLog *logger.Logger) AnnexRepo {
	return conventions.NewAnnexRepo(db, baseLog)
}
func NewAvenantRepo(db *gorm.DB, baseLog *logger.Logger) AvenantRepo {
	return conventions.NewAvenantRepo(db, baseLog)
}
func NewPrestationPricingRepo(db *gorm.DB, baseLog *logger.Logger) PrestationPricingRepo {
	return conventions.NewPrestationPricingRepo(db, baseLog)
}

// Set bundles every repo the aggregates and scheduler need.
type Set struct {
	Organisation      OrganisationRepo
	Prestation        PrestationRepo
	Convention        ConventionRepo
	ConventionDetail  ConventionDetailRepo
	Annex             AnnexRepo
	Avenant           AvenantRepo
	PrestationPricing PrestationPricingRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Organisation:      NewOrganisationRepo(db, baseLog),
		Prestation:        NewPrestationRepo(db, baseLog),
		Convention:        NewConventionRepo(db, baseLog),
		ConventionDetail:  NewConventionDetailRepo(db, baseLog),
		Annex:             NewAnnexRepo(db, baseLog),
		Avenant:           NewAvenantRepo(db, baseLog),
		PrestationPricing: NewPrestationPricingRepo(db, baseLog),
	}
}
