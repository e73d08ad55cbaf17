package conventions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

// OrganisationRepo reads the organisation catalog. Rows are owned by another subsystem.
type OrganisationRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Organisation, error)
}

type organisationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrganisationRepo(db *gorm.DB, baseLog *logger.Logger) OrganisationRepo {
	return &organisationRepo{
		db:  db,
		log: baseLog.With("repo", "OrganisationRepo"),
	}
}

func (r *organisationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Organisation, error) {
	var org types.Organisation
	if err := dbc.DB(r.db).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// PrestationRepo reads the billable item catalog.
type PrestationRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Prestation, error)
	ListActiveByService(dbc dbctx.Context, serviceID uuid.UUID) ([]*types.Prestation, error)
}

type prestationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPrestationRepo(db *gorm.DB, baseLog *logger.Logger) PrestationRepo {
	return &prestationRepo{
		db:  db,
		log: baseLog.With("repo", "PrestationRepo"),
	}
}

func (r *prestationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Prestation, error) {
	var p types.Prestation
	if err := dbc.DB(r.db).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prestationRepo) ListActiveByService(dbc dbctx.Context, serviceID uuid.UUID) ([]*types.Prestation, error) {
	var out []*types.Prestation
	if serviceID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("service_id = ? AND is_active = ?", serviceID, true).
		Order("code ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
