package migrate

import (
	"context"
	"fmt"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on startup when running in dev
// with ZEROHUNGER_AUTO_MIGRATE set. Postgres gets the embedded goose
// migrations; sqlite, whose dialect cannot run them, gets a GORM
// AutoMigrate of the models instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Driver()})

	if client.Driver() == db.DriverSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		err := client.DB().WithContext(ctx).AutoMigrate(
			&models.Donation{},
			&models.Claim{},
			&models.ImpactEntry{},
			&models.Notification{},
			&models.OutboxEvent{},
			&models.OutboxDLQ{},
		)
		if err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	logg.Info(ctx, "running embedded goose migrations")
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return err
	}
	logg.Info(ctx, "goose migrations completed")
	return nil
}
