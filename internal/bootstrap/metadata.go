package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"dirsync/internal/bootstrap/config"
	"dirsync/internal/bootstrap/database"
	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/metadata"
	"dirsync/internal/infrastructure/persistence/schema"
	"dirsync/internal/ports"
)

// MetadataOpener connects to the metadata store when the linker runs.
type MetadataOpener struct {
	cfg config.MetadataConfig
}

var _ ports.MetadataStoreOpener = (*MetadataOpener)(nil)

func NewMetadataOpener(cfg config.Config) *MetadataOpener {
	return &MetadataOpener{cfg: cfg.Metadata}
}

func (o *MetadataOpener) OpenMetadataStore(ctx context.Context) (ports.MetadataStore, error) {
	if strings.TrimSpace(o.cfg.DSN) == "" {
		return nil, ports.ErrMetadataNotConfigured
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.metadata")
	db, err := database.Open(logCtx, o.cfg.Database())
	if err != nil {
		return nil, errs.Wrap(err, "open metadata database")
	}

	if o.cfg.AutoMigrate {
		if err := schema.MigrateMetadata(ctx, db, o.cfg.Table); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}

	store := metadata.NewStore(db, o.cfg.Table)
	logging.Info(logCtx, "metadata store opened", slog.String("table", store.Table()))
	return store, nil
}
