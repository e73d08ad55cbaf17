// Package scheduler turns dated intents into state: scheduled avenants and conventions
// whose activation date has passed are activated, conventions past their end date expire.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clinicore/conventions/internal/clients/redis"
	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	types "github.com/clinicore/conventions/internal/domain/conventions"
	"github.com/clinicore/conventions/internal/platform/dbctx"
	"github.com/clinicore/conventions/internal/platform/logger"
)

// SystemActorID is recorded as approver on transitions the scheduler performs.
var SystemActorID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("conventions.scheduler"))

const lockKey = "scheduler:promote"

type PromoterDeps struct {
	Log         *logger.Logger
	Repos       repos.Set
	Avenants    domainagg.AvenantAggregate
	Conventions domainagg.ConventionAggregate
	// Locker is optional; without it every RunOnce proceeds.
	Locker redis.Locker

	ActorID     uuid.UUID
	BatchSize   int
	Concurrency int
	LockTTL     time.Duration
}

type Promoter struct {
	deps PromoterDeps
	log  *logger.Logger
}

// Summary counts what one RunOnce did.
type Summary struct {
	Skipped              bool
	AvenantsActivated    int64
	ConventionsActivated int64
	ConventionsExpired   int64
	Failed               int64
}

func NewPromoter(deps PromoterDeps) *Promoter {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.ActorID == uuid.Nil {
		deps.ActorID = SystemActorID
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = 200
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 55 * time.Second
	}
	return &Promoter{deps: deps, log: deps.Log.With("component", "ActivationPromoter")}
}

// RunOnce promotes everything due at now. Each item commits on its own; a failing item
// is logged and counted, never fatal for the rest.
func (p *Promoter) RunOnce(ctx context.Context, now time.Time) (Summary, error) {
	var out Summary
	if p.deps.Avenants == nil || p.deps.Conventions == nil {
		return out, fmt.Errorf("promoter: aggregates required")
	}
	now = now.UTC()

	if p.deps.Locker != nil {
		release, ok, err := p.deps.Locker.TryLock(ctx, lockKey, p.deps.LockTTL)
		if err != nil {
			return out, fmt.Errorf("promoter lock: %w", err)
		}
		if !ok {
			p.log.Debug("promotion tick skipped, lock held elsewhere")
			out.Skipped = true
			return out, nil
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	var failed atomic.Int64
	activated, err := p.promoteAvenants(ctx, now, &failed)
	if err != nil {
		return out, err
	}
	out.AvenantsActivated = activated
	if out.ConventionsActivated, err = p.activateConventions(ctx, now, &failed); err != nil {
		return out, err
	}
	if out.ConventionsExpired, err = p.expireConventions(ctx, now, &failed); err != nil {
		return out, err
	}
	out.Failed = failed.Load()

	if out.AvenantsActivated+out.ConventionsActivated+out.ConventionsExpired+out.Failed > 0 {
		p.log.Info("promotion tick",
			"avenants_activated", out.AvenantsActivated,
			"conventions_activated", out.ConventionsActivated,
			"conventions_expired", out.ConventionsExpired,
			"failed", out.Failed,
		)
	}
	return out, nil
}

// promoteAvenants activates due avenants. Avenants of one convention go in activation
// order on one goroutine so the latest one ends up active.
func (p *Promoter) promoteAvenants(ctx context.Context, now time.Time, failed *atomic.Int64) (int64, error) {
	due, err := p.deps.Repos.Avenant.ListScheduledDue(dbctx.Context{Ctx: ctx}, now, p.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list scheduled avenants: %w", err)
	}
	byConvention := map[uuid.UUID][]*types.Avenant{}
	var order []uuid.UUID
	for _, av := range due {
		if _, ok := byConvention[av.ConventionID]; !ok {
			order = append(order, av.ConventionID)
		}
		byConvention[av.ConventionID] = append(byConvention[av.ConventionID], av)
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Concurrency)
	for _, convID := range order {
		group := byConvention[convID]
		sort.SliceStable(group, func(i, j int) bool { return group[i].ActivationAt.Before(*group[j].ActivationAt) })
		g.Go(func() error {
			for _, av := range group {
				p.guard("avenant", av.ID, failed, func() error {
					_, err := p.deps.Avenants.Activate(gctx, domainagg.ActivateAvenantInput{
						AvenantID:      av.ID,
						ActivationDate: *av.ActivationAt,
						ActorID:        p.deps.ActorID,
					})
					if err == nil {
						done.Add(1)
					}
					return err
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return done.Load(), err
	}
	return done.Load(), nil
}

func (p *Promoter) activateConventions(ctx context.Context, now time.Time, failed *atomic.Int64) (int64, error) {
	due, err := p.deps.Repos.Convention.ListScheduledDue(dbctx.Context{Ctx: ctx}, now, p.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list scheduled conventions: %w", err)
	}
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Concurrency)
	for _, conv := range due {
		g.Go(func() error {
			p.guard("convention", conv.ID, failed, func() error {
				_, err := p.deps.Conventions.Activate(gctx, domainagg.ActivateConventionInput{
					ConventionID:   conv.ID,
					ActivationDate: *conv.ActivationAt,
					ActorID:        p.deps.ActorID,
				})
				if err == nil {
					done.Add(1)
				}
				return err
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return done.Load(), err
	}
	return done.Load(), nil
}

func (p *Promoter) expireConventions(ctx context.Context, now time.Time, failed *atomic.Int64) (int64, error) {
	due, err := p.deps.Repos.Convention.ListExpiredActive(dbctx.Context{Ctx: ctx}, now, p.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired conventions: %w", err)
	}
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Concurrency)
	for _, conv := range due {
		g.Go(func() error {
			p.guard("convention", conv.ID, failed, func() error {
				_, err := p.deps.Conventions.Expire(gctx, domainagg.ExpireConventionInput{
					ConventionID: conv.ID,
					At:           now,
					ActorID:      p.deps.ActorID,
				})
				if err == nil {
					done.Add(1)
				}
				return err
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return done.Load(), err
	}
	return done.Load(), nil
}

// guard runs fn, turning an error or a panic into a logged failure.
func (p *Promoter) guard(kind string, id uuid.UUID, failed *atomic.Int64, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			failed.Add(1)
			p.log.Error("promotion panic", "kind", kind, "id", id, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		failed.Add(1)
		p.log.Warn("promotion failed", "kind", kind, "id", id, "code", domainagg.CodeOf(err), "error", err)
	}
}
