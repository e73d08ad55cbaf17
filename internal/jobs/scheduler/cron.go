package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clinicore/conventions/internal/platform/logger"
)

const DefaultSpec = "@every 1m"

// Scheduler drives a Promoter from a cron spec. Overlapping ticks are skipped.
type Scheduler struct {
	log      *logger.Logger
	promoter *Promoter
	spec     string
	timeout  time.Duration
	now      func() time.Time

	cron *cron.Cron
}

func New(log *logger.Logger, promoter *Promoter, spec string, timeout time.Duration) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSpec
	}
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	return &Scheduler{
		log:      log.With("component", "ActivationScheduler"),
		promoter: promoter,
		spec:     spec,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Start registers the tick and starts the cron loop. Ticks stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.promoter == nil {
		return fmt.Errorf("scheduler: promoter required")
	}
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler spec %q: %w", s.spec, err)
	}
	s.cron = c
	c.Start()
	s.log.Info("scheduler started", "spec", s.spec)
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.promoter.RunOnce(tctx, s.now()); err != nil {
		s.log.Warn("promotion tick failed", "error", err)
	}
}

// Stop stops scheduling and returns a context done once the running tick finished.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
