package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"dirsync/internal/bootstrap/config"
	"dirsync/internal/bootstrap/database"
	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/persistence/schema"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema migrates the primary tables and, when asked or configured,
// the metadata table on its own connection.
func (a *App) InitSchema(ctx context.Context, withMetadata bool) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := schema.MigratePrimary(ctx, a.DB); err != nil {
		return err
	}

	if withMetadata || a.Config.Metadata.AutoMigrate {
		if a.Config.Metadata.DSN == "" {
			return errs.Wrap(errMetadataDSN, "migrate metadata table")
		}
		metaDB, err := database.Open(logCtx, a.Config.Metadata.Database())
		if err != nil {
			return errs.Wrap(err, "open metadata database")
		}
		defer func() {
			if err := database.Close(metaDB); err != nil {
				logging.Warn(logCtx, "close metadata database failed", slog.Any("err", errs.Loggable(err)))
			}
		}()
		if err := schema.MigrateMetadata(ctx, metaDB, a.Config.Metadata.Table); err != nil {
			return err
		}
		logging.Info(logCtx, "metadata table migrated", slog.String("table", a.Config.Metadata.Table))
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

var errMetadataDSN = errors.New("metadata.dsn is required")
