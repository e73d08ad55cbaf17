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

type ConventionRepo interface {
	Create(dbc dbctx.Context, c *types.Convention) (*types.Convention, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Convention, error)
	// LockByID reads the row with SELECT ... FOR UPDATE; it serializes avenant activation
	// per convention.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Convention, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListScheduledDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.Convention, error)
	// ListExpiredActive returns active conventions whose authoritative detail ended before now.
	ListExpiredActive(dbc dbctx.Context, now time.Time, limit int) ([]*types.Convention, error)
}

type conventionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConventionRepo(db *gorm.DB, baseLog *logger.Logger) ConventionRepo {
	return &conventionRepo{
		db:  db,
		log: baseLog.With("repo", "ConventionRepo"),
	}
}

func (r *conventionRepo) Create(dbc dbctx.Context, c *types.Convention) (*types.Convention, error) {
	if err := dbc.DB(r.db).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conventionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Convention, error) {
	var c types.Convention
	if err := dbc.DB(r.db).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conventionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Convention, error) {
	var c types.Convention
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conventionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Convention{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conventionRepo) ListScheduledDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.Convention, error) {
	var out []*types.Convention
	q := dbc.DB(r.db).
		Where("status = ? AND activation_at IS NOT NULL AND activation_at <= ?", types.ConventionScheduled, now.UTC()).
		Order("activation_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conventionRepo) ListExpiredActive(dbc dbctx.Context, now time.Time, limit int) ([]*types.Convention, error) {
	var out []*types.Convention
	q := dbc.DB(r.db).
		Where("status = ?", types.ConventionActive).
		Where(`EXISTS (
        SELECT 1 FROM convention_detail d
        WHERE d.convention_id = convention.id
          AND d.updated_by_id IS NULL
          AND d.end_date IS NOT NULL
          AND d.end_date < ?
      )`, now.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
