package conventions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type ConventionDetailRepo interface {
	Create(dbc dbctx.Context, d *types.ConventionDetail) (*types.ConventionDetail, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ConventionDetail, error)
	// Authoritative returns the un-superseded detail of a convention, or gorm.ErrRecordNotFound.
	Authoritative(dbc dbctx.Context, conventionID uuid.UUID) (*types.ConventionDetail, error)
	// Base returns the detail created with the convention itself (no avenant scope).
	Base(dbc dbctx.Context, conventionID uuid.UUID) (*types.ConventionDetail, error)
	GetByAvenant(dbc dbctx.Context, avenantID uuid.UUID) (*types.ConventionDetail, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetStartDateByAvenant(dbc dbctx.Context, avenantID uuid.UUID, start time.Time) (int64, error)

	Supersede(dbc dbctx.Context, oldID uuid.UUID, next *types.ConventionDetail) (*types.ConventionDetail, error)
	Lineage(dbc dbctx.Context, id uuid.UUID) ([]*types.ConventionDetail, error)
}

type conventionDetailRepo struct {
	db  *gorm.DB
	log *logger.Logger
	rev revisionStore[types.ConventionDetail, *types.ConventionDetail]
}

func NewConventionDetailRepo(db *gorm.DB, baseLog *logger.Logger) ConventionDetailRepo {
	return &conventionDetailRepo{
		db:  db,
		log: baseLog.With("repo", "ConventionDetailRepo"),
		rev: newRevisionStore[types.ConventionDetail](db),
	}
}

func (r *conventionDetailRepo) Create(dbc dbctx.Context, d *types.ConventionDetail) (*types.ConventionDetail, error) {
	if err := dbc.DB(r.db).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func (r *conventionDetailRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ConventionDetail, error) {
	var d types.ConventionDetail
	if err := dbc.DB(r.db).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *conventionDetailRepo) Authoritative(dbc dbctx.Context, conventionID uuid.UUID) (*types.ConventionDetail, error) {
	var rows []*types.ConventionDetail
	if err := dbc.DB(r.db).
		Where("convention_id = ? AND updated_by_id IS NULL", conventionID).
		Order("created_at DESC").
		Limit(2).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, gorm.ErrRecordNotFound
	case 1:
		return rows[0], nil
	default:
		r.log.Warn("multiple un-superseded convention details", "convention_id", conventionID, "picked", rows[0].ID)
		return rows[0], nil
	}
}

func (r *conventionDetailRepo) Base(dbc dbctx.Context, conventionID uuid.UUID) (*types.ConventionDetail, error) {
	var d types.ConventionDetail
	if err := dbc.DB(r.db).
		Where("convention_id = ? AND avenant_id IS NULL", conventionID).
		Order("created_at ASC").
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *conventionDetailRepo) GetByAvenant(dbc dbctx.Context, avenantID uuid.UUID) (*types.ConventionDetail, error) {
	var rows []*types.ConventionDetail
	if err := dbc.DB(r.db).
		Where("avenant_id = ?", avenantID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	for _, d := range rows {
		if d.UpdatedByID == nil {
			return d, nil
		}
	}
	return rows[0], nil
}

func (r *conventionDetailRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&types.ConventionDetail{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conventionDetailRepo) SetStartDateByAvenant(dbc dbctx.Context, avenantID uuid.UUID, start time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Model(&types.ConventionDetail{}).
		Where("avenant_id = ?", avenantID).
		Updates(map[string]interface{}{
			"start_date": start,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *conventionDetailRepo) Supersede(dbc dbctx.Context, oldID uuid.UUID, next *types.ConventionDetail) (*types.ConventionDetail, error) {
	return r.rev.Supersede(dbc, oldID, next)
}

func (r *conventionDetailRepo) Lineage(dbc dbctx.Context, id uuid.UUID) ([]*types.ConventionDetail, error) {
	return r.rev.Lineage(dbc, id)
}

// IsNotFound is a small convenience for callers that branch on a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
