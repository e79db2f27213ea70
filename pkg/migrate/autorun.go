package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot when ORDERDESK_AUTO_MIGRATE is
// on in a dev environment. Elsewhere it is a no-op and cmd/migrate owns schema changes.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := Dialect(cfg.DB)
	migrator, err := NewMigrator(sqlDB, dialect, Embedded())
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	results, err := migrator.Up(ctx)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"dialect":        string(dialect),
		"applied":        len(results),
		"schema_version": version,
	}), "dev auto-migrate complete")
	return nil
}
