package conventions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/platform/dbctx"
)

var (
	// ErrStaleRevision means the predecessor was already superseded by another row.
	ErrStaleRevision = errors.New("revision already superseded")
	// ErrRevisionCycle means following updated_by_id revisited a row.
	ErrRevisionCycle = errors.New("revision chain contains a cycle")
)

type revision interface {
	RevisionID() uuid.UUID
	Successor() *uuid.UUID
}

// revisionStore writes and walks "superseded by" chains for any model that carries
// an updated_by_id column pointing at its successor.
type revisionStore[T any, P interface {
	*T
	revision
}] struct {
	db *gorm.DB
}

func newRevisionStore[T any, P interface {
	*T
	revision
}](db *gorm.DB) revisionStore[T, P] {
	return revisionStore[T, P]{db: db}
}

// Supersede inserts next and points oldID at it. The pointer is only set while oldID
// is still the tip, so two writers racing on the same predecessor cannot both win.
func (s revisionStore[T, P]) Supersede(dbc dbctx.Context, oldID uuid.UUID, next P) (P, error) {
	if oldID == uuid.Nil || next == nil {
		return nil, errors.New("supersede: predecessor id and next revision are required")
	}
	tx := dbc.DB(s.db)
	if err := tx.Create(next).Error; err != nil {
		return nil, err
	}
	newID := next.RevisionID()
	if newID == oldID {
		return nil, ErrRevisionCycle
	}

	var zero T
	res := tx.Model(&zero).
		Where("id = ? AND updated_by_id IS NULL", oldID).
		Updates(map[string]interface{}{
			"updated_by_id": newID,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&zero).Where("id = ?", oldID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, ErrStaleRevision
	}
	return next, nil
}

func (s revisionStore[T, P]) get(tx *gorm.DB, id uuid.UUID) (P, error) {
	var row T
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return P(&row), nil
}

// Lineage returns the chain starting at id and ending at its tip, in order.
func (s revisionStore[T, P]) Lineage(dbc dbctx.Context, id uuid.UUID) ([]P, error) {
	tx := dbc.DB(s.db)
	seen := map[uuid.UUID]bool{}
	var out []P
	cur := id
	for {
		if seen[cur] {
			return nil, ErrRevisionCycle
		}
		seen[cur] = true
		row, err := s.get(tx, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
		next := row.Successor()
		if next == nil || *next == uuid.Nil {
			return out, nil
		}
		cur = *next
	}
}

// Tip returns the un-superseded end of the chain containing id.
func (s revisionStore[T, P]) Tip(dbc dbctx.Context, id uuid.UUID) (P, error) {
	chain, err := s.Lineage(dbc, id)
	if err != nil {
		return nil, err
	}
	return chain[len(chain)-1], nil
}

// HasPredecessor reports whether another row points at id.
func (s revisionStore[T, P]) HasPredecessor(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	var zero T
	var n int64
	if err := dbc.DB(s.db).Model(&zero).Where("updated_by_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
