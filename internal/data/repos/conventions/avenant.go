package conventions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type AvenantRepo interface {
	Create(dbc dbctx.Context, a *types.Avenant) (*types.Avenant, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Avenant, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Avenant, error)
	// LatestActive returns the newest active, un-superseded avenant of a convention.
	LatestActive(dbc dbctx.Context, conventionID uuid.UUID) (*types.Avenant, error)
	ListActiveExcept(dbc dbctx.Context, conventionID, exceptID uuid.UUID) ([]*types.Avenant, error)
	ListByConvention(dbc dbctx.Context, conventionID uuid.UUID) ([]*types.Avenant, error)
	ListScheduledDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.Avenant, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	Supersede(dbc dbctx.Context, oldID uuid.UUID, next *types.Avenant) (*types.Avenant, error)
	Lineage(dbc dbctx.Context, id uuid.UUID) ([]*types.Avenant, error)
}

type avenantRepo struct {
	db  *gorm.DB
	log *logger.Logger
	rev revisionStore[types.Avenant, *types.Avenant]
}

func NewAvenantRepo(db *gorm.DB, baseLog *logger.Logger) AvenantRepo {
	return &avenantRepo{
		db:  db,
		log: baseLog.With("repo", "AvenantRepo"),
		rev: newRevisionStore[types.Avenant](db),
	}
}

func (r *avenantRepo) Create(dbc dbctx.Context, a *types.Avenant) (*types.Avenant, error) {
	if err := dbc.DB(r.db).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (r *avenantRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Avenant, error) {
	var a types.Avenant
	if err := dbc.DB(r.db).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *avenantRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Avenant, error) {
	var a types.Avenant
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *avenantRepo) LatestActive(dbc dbctx.Context, conventionID uuid.UUID) (*types.Avenant, error) {
	var a types.Avenant
	if err := dbc.DB(r.db).
		Where("convention_id = ? AND status = ? AND updated_by_id IS NULL", conventionID, types.AvenantActive).
		Order("activation_at DESC").
		Order("created_at DESC").
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *avenantRepo) ListActiveExcept(dbc dbctx.Context, conventionID, exceptID uuid.UUID) ([]*types.Avenant, error) {
	var out []*types.Avenant
	if err := dbc.DB(r.db).
		Where("convention_id = ? AND status = ? AND id <> ?", conventionID, types.AvenantActive, exceptID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *avenantRepo) ListByConvention(dbc dbctx.Context, conventionID uuid.UUID) ([]*types.Avenant, error) {
	var out []*types.Avenant
	if err := dbc.DB(r.db).
		Where("convention_id = ?", conventionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *avenantRepo) ListScheduledDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.Avenant, error) {
	var out []*types.Avenant
	q := dbc.DB(r.db).
		Where("status = ? AND activation_at IS NOT NULL AND activation_at <= ?", types.AvenantScheduled, now.UTC()).
		Order("activation_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *avenantRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Avenant{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *avenantRepo) Supersede(dbc dbctx.Context, oldID uuid.UUID, next *types.Avenant) (*types.Avenant, error) {
	return r.rev.Supersede(dbc, oldID, next)
}

func (r *avenantRepo) Lineage(dbc dbctx.Context, id uuid.UUID) ([]*types.Avenant, error) {
	return r.rev.Lineage(dbc, id)
}
