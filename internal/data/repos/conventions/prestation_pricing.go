package conventions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type PrestationPricingRepo interface {
	Create(dbc dbctx.Context, lines []*types.PrestationPricing) ([]*types.PrestationPricing, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PrestationPricing, error)
	// ExistsLive reports whether (prestation, scope) already has a head or un-superseded line.
	ExistsLive(dbc dbctx.Context, prestationID uuid.UUID, scope domainagg.Scope) (bool, error)
	// ListLiveByAnnexes returns un-superseded annex lines of the given annexes.
	ListLiveByAnnexes(dbc dbctx.Context, annexIDs []uuid.UUID) ([]*types.PrestationPricing, error)
	ListLiveByAvenant(dbc dbctx.Context, avenantID uuid.UUID) ([]*types.PrestationPricing, error)
	ListByScope(dbc dbctx.Context, scope domainagg.Scope) ([]*types.PrestationPricing, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetActivationAtByAvenant(dbc dbctx.Context, avenantID uuid.UUID, at time.Time) (int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error

	Supersede(dbc dbctx.Context, oldID uuid.UUID, next *types.PrestationPricing) (*types.PrestationPricing, error)
	Lineage(dbc dbctx.Context, id uuid.UUID) ([]*types.PrestationPricing, error)
	HasPredecessor(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type prestationPricingRepo struct {
	db  *gorm.DB
	log *logger.Logger
	rev revisionStore[types.PrestationPricing, *types.PrestationPricing]
}

func NewPrestationPricingRepo(db *gorm.DB, baseLog *logger.Logger) PrestationPricingRepo {
	return &prestationPricingRepo{
		db:  db,
		log: baseLog.With("repo", "PrestationPricingRepo"),
		rev: newRevisionStore[types.PrestationPricing](db),
	}
}

func (r *prestationPricingRepo) Create(dbc dbctx.Context, lines []*types.PrestationPricing) ([]*types.PrestationPricing, error) {
	if len(lines) == 0 {
		return []*types.PrestationPricing{}, nil
	}
	if err := dbc.DB(r.db).Create(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *prestationPricingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PrestationPricing, error) {
	var p types.PrestationPricing
	if err := dbc.DB(r.db).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func scoped(q *gorm.DB, scope domainagg.Scope) *gorm.DB {
	if scope.IsAvenant() {
		return q.Where("avenant_id = ?", scope.AvenantID)
	}
	return q.Where("annex_id = ? AND avenant_id IS NULL", scope.AnnexID)
}

func (r *prestationPricingRepo) ExistsLive(dbc dbctx.Context, prestationID uuid.UUID, scope domainagg.Scope) (bool, error) {
	var n int64
	q := dbc.DB(r.db).Model(&types.PrestationPricing{}).
		Where("prestation_id = ?", prestationID).
		Where("(head = ? OR updated_by_id IS NULL)", true)
	if err := scoped(q, scope).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *prestationPricingRepo) ListLiveByAnnexes(dbc dbctx.Context, annexIDs []uuid.UUID) ([]*types.PrestationPricing, error) {
	var out []*types.PrestationPricing
	if len(annexIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("annex_id IN ? AND avenant_id IS NULL AND updated_by_id IS NULL", annexIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *prestationPricingRepo) ListLiveByAvenant(dbc dbctx.Context, avenantID uuid.UUID) ([]*types.PrestationPricing, error) {
	var out []*types.PrestationPricing
	if err := dbc.DB(r.db).
		Where("avenant_id = ? AND updated_by_id IS NULL", avenantID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *prestationPricingRepo) ListByScope(dbc dbctx.Context, scope domainagg.Scope) ([]*types.PrestationPricing, error) {
	var out []*types.PrestationPricing
	if err := scoped(dbc.DB(r.db), scope).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *prestationPricingRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.PrestationPricing{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *prestationPricingRepo) SetActivationAtByAvenant(dbc dbctx.Context, avenantID uuid.UUID, at time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Model(&types.PrestationPricing{}).
		Where("avenant_id = ?", avenantID).
		Updates(map[string]interface{}{
			"activation_at": at,
			"updated_at":    time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *prestationPricingRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.PrestationPricing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *prestationPricingRepo) Supersede(dbc dbctx.Context, oldID uuid.UUID, next *types.PrestationPricing) (*types.PrestationPricing, error) {
	return r.rev.Supersede(dbc, oldID, next)
}

func (r *prestationPricingRepo) Lineage(dbc dbctx.Context, id uuid.UUID) ([]*types.PrestationPricing, error) {
	return r.rev.Lineage(dbc, id)
}

func (r *prestationPricingRepo) HasPredecessor(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.rev.HasPredecessor(dbc, id)
}
