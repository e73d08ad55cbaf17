package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clinicore/conventions/internal/app"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run schema migrations and exit")
	promoteOnce := flag.Bool("promote-once", false, "run a single activation tick and exit")
	flag.Parse()

	// A missing .env is fine outside local runs.
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if *migrateOnly {
		a.Log.Info("Migrations applied, exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *promoteOnce {
		sum, err := a.Promoter.RunOnce(ctx, time.Now())
		if err != nil {
			a.Log.Error("Promotion tick failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		a.Log.Info("Promotion tick done",
			"skipped", sum.Skipped,
			"avenants_activated", sum.AvenantsActivated,
			"conventions_activated", sum.ConventionsActivated,
			"conventions_expired", sum.ConventionsExpired,
			"failed", sum.Failed,
		)
		return
	}

	if err := a.Start(); err != nil {
		a.Log.Error("Failed to start app", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Log.Info("Conventions engine running")

	<-ctx.Done()
	a.Log.Info("Shutting down")
}
