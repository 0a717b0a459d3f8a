package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// autoApply reports whether a binary should migrate on boot: always for the
// embedded sqlite driver, otherwise only in dev with the auto-migrate flag.
func autoApply(cfg *config.Config) bool {
	if cfg.DB.Driver == config.DBDriverSQLite {
		return true
	}
	return cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}

// MaybeRunDev brings the schema up to date on boot when autoApply allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !autoApply(cfg) {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	dialect := Dialect(cfg.DB.Driver)

	if err := Up(ctx, sqlDB, dialect); err != nil {
		return fmt.Errorf("auto-migrate %s: %w", cfg.DB.Driver, err)
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"driver":  cfg.DB.Driver,
		"version": version,
	}), "migrate.auto_applied")
	return nil
}
