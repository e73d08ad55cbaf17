package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/data/db"
	"github.com/clinicore/conventions/internal/data/repos"
	"github.com/clinicore/conventions/internal/jobs/scheduler"
	"github.com/clinicore/conventions/internal/observability"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type App struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Cfg        Config
	Repos      repos.Set
	Aggregates Aggregates
	Clients    Clients
	Promoter   *scheduler.Promoter
	Scheduler  *scheduler.Scheduler

	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	closed       bool
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)

	dbs, err := db.NewService(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := dbs.DB()

	reposet := repos.NewSet(theDB, log)
	aggs := wireAggregates(theDB, log, cfg, reposet)

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	promoter := scheduler.NewPromoter(scheduler.PromoterDeps{
		Log:         log,
		Repos:       reposet,
		Avenants:    aggs.Avenants,
		Conventions: aggs.Conventions,
		Locker:      clients.Locker,
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
		LockTTL:     cfg.Scheduler.LockTTL,
	})
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(log, promoter, cfg.Scheduler.Spec, cfg.Scheduler.Timeout)
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Aggregates:   aggs,
		Clients:      clients,
		Promoter:     promoter,
		Scheduler:    sched,
		dbService:    dbs,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background jobs. Calling it twice is a no-op.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			cancel()
			a.cancel = nil
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	return nil
}

// Close stops jobs and releases every resource. Safe to call more than once.
func (a *App) Close() {
	if a == nil || a.closed {
		return
	}
	a.closed = true
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Scheduler != nil {
		select {
		case <-a.Scheduler.Stop().Done():
		case <-time.After(a.Cfg.Scheduler.Timeout + 5*time.Second):
			a.Log.Warn("scheduler did not stop in time")
		}
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
