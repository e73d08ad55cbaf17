package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/clinicore/conventions/internal/domain/conventions"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Read-only catalog
		// =========================
		&types.Organisation{},
		&types.Prestation{},

		// =========================
		// Conventions + revisions
		// =========================
		&types.Convention{},
		&types.ConventionDetail{},
		&types.Annex{},
		&types.Avenant{},
		&types.PrestationPricing{},
	); err != nil {
		return err
	}
	return EnsurePricingIndexes(db)
}

// EnsurePricingIndexes keeps at most one head line per (prestation, annex) and
// (prestation, avenant). Both postgres and sqlite accept partial indexes.
func EnsurePricingIndexes(db *gorm.DB) error {
	if err := db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS idx_prestation_pricing_head_annex
    ON prestation_pricing(prestation_id, annex_id)
    WHERE head = true AND annex_id IS NOT NULL AND avenant_id IS NULL;
  `).Error; err != nil {
		return fmt.Errorf("create idx_prestation_pricing_head_annex: %w", err)
	}
	if err := db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS idx_prestation_pricing_head_avenant
    ON prestation_pricing(prestation_id, avenant_id)
    WHERE head = true AND avenant_id IS NOT NULL;
  `).Error; err != nil {
		return fmt.Errorf("create idx_prestation_pricing_head_avenant: %w", err)
	}
	if err := db.Exec(`
    CREATE INDEX IF NOT EXISTS idx_avenant_convention_status
    ON avenant(convention_id, status);
  `).Error; err != nil {
		return fmt.Errorf("create idx_avenant_convention_status: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
