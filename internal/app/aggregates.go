package app

import (
	"gorm.io/gorm"

	"github.com/clinicore/conventions/internal/data/aggregates"
	"github.com/clinicore/conventions/internal/data/repos"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	"github.com/clinicore/conventions/internal/platform/logger"
)

// Aggregates is the write surface of the engine.
type Aggregates struct {
	Conventions       domainagg.ConventionAggregate
	Annexes           domainagg.AnnexAggregate
	Avenants          domainagg.AvenantAggregate
	PrestationPricing domainagg.PrestationPricingAggregate
}

func wireAggregates(db *gorm.DB, log *logger.Logger, cfg Config, set repos.Set) Aggregates {
	log.Info("Wiring aggregates...")
	base := aggregates.BaseDeps{
		DB:    db,
		Log:   log,
		Hooks: aggregates.NewLogHooks(log, cfg.HookSlowThreshold),
	}
	// validated by LoadConfig
	if opts, _ := cfg.DB.TxOptions(); opts != nil {
		base.Runner = aggregates.NewGormTxRunnerWithOptions(db, opts)
		log.Info("Aggregate transactions use explicit isolation", "isolation", opts.Isolation.String())
	}
	return Aggregates{
		Conventions:       aggregates.NewConventionAggregate(aggregates.ConventionAggregateDeps{Base: base, Repos: set}),
		Annexes:           aggregates.NewAnnexAggregate(aggregates.AnnexAggregateDeps{Base: base, Repos: set}),
		Avenants:          aggregates.NewAvenantAggregate(aggregates.AvenantAggregateDeps{Base: base, Repos: set}),
		PrestationPricing: aggregates.NewPrestationPricingAggregate(aggregates.PrestationPricingAggregateDeps{Base: base, Repos: set}),
	}
}
