package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"gorm.io/gorm"
)

// Migrate creates or updates every table and seeds the default chart of accounts.
func Migrate(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	seeded, err := SeedChart(ctx, db, ledger.DefaultChart)
	if err != nil {
		return fmt.Errorf("seed chart of accounts: %w", err)
	}
	logger.Info("Schema migrated", "tables", len(Models()), "chart_accounts_seeded", seeded)
	return nil
}
