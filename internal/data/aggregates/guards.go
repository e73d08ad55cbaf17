package aggregates

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/clinicore/conventions/internal/platform/dbctx"
)

// lifecycle is a closed status enum that knows its legal transitions.
type lifecycle[S any] interface {
	~string
	CanTransitionTo(to S) bool
}

// CASGuard moves rows between statuses with a compare-and-set update.
type CASGuard struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCASGuard(db *gorm.DB, now func() time.Time) CASGuard {
	if now == nil {
		now = time.Now
	}
	return CASGuard{db: db, now: now}
}

func (g CASGuard) clock() func() time.Time {
	if g.now == nil {
		return time.Now
	}
	return g.now
}

// casMove sets status to `to` on the row identified by id, only while the row is
// still in `from`. An illegal transition is an invariant violation; a row another
// writer moved first is a conflict.
func casMove[S lifecycle[S]](g CASGuard, dbc dbctx.Context, model schema.Tabler, id uuid.UUID, from, to S, updates map[string]any) error {
	if !from.CanTransitionTo(to) {
		return InvariantError(fmt.Sprintf("%s %s cannot move from %s to %s", model.TableName(), id, from, to))
	}
	if dbc.Tx == nil && g.db == nil {
		return fmt.Errorf("cas guard: no database handle")
	}
	db := dbc.DB(g.db)
	set := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		set[k] = v
	}
	set["status"] = to
	if _, ok := set["updated_at"]; !ok {
		set["updated_at"] = g.clock()()
	}
	res := db.Table(model.TableName()).
		Where("id = ? AND status = ?", id, from).
		Updates(set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ConflictError(fmt.Sprintf("%s %s left status %s concurrently", model.TableName(), id, from))
	}
	return nil
}
