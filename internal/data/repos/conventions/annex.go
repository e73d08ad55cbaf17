package conventions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type AnnexRepo interface {
	Create(dbc dbctx.Context, a *types.Annex) (*types.Annex, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Annex, error)
	ExistsForService(dbc dbctx.Context, conventionID, serviceID uuid.UUID) (bool, error)
	ListByConvention(dbc dbctx.Context, conventionID uuid.UUID) ([]*types.Annex, error)
}

type annexRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnnexRepo(db *gorm.DB, baseLog *logger.Logger) AnnexRepo {
	return &annexRepo{
		db:  db,
		log: baseLog.With("repo", "AnnexRepo"),
	}
}

func (r *annexRepo) Create(dbc dbctx.Context, a *types.Annex) (*types.Annex, error) {
	if err := dbc.DB(r.db).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (r *annexRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Annex, error) {
	var a types.Annex
	if err := dbc.DB(r.db).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *annexRepo) ExistsForService(dbc dbctx.Context, conventionID, serviceID uuid.UUID) (bool, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Annex{}).
		Where("convention_id = ? AND service_id = ?", conventionID, serviceID).
		Count(&n).Error
	return n > 0, err
}

func (r *annexRepo) ListByConvention(dbc dbctx.Context, conventionID uuid.UUID) ([]*types.Annex, error) {
	var out []*types.Annex
	if conventionID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("convention_id = ?", conventionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
