package schema

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/persistence/sqlstore/model"
)

// PrimaryModels lists the tables owned by the reconcile job.
func PrimaryModels() []any {
	return []any{
		&model.SnapshotEntry{},
		&model.Change{},
	}
}

func MigratePrimary(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(PrimaryModels()...); err != nil {
		return errs.Wrap(err, "auto migrate primary schema")
	}
	return nil
}

// MigrateMetadata creates the key/name/value table under the configured name.
// Production installations usually own that table already.
func MigrateMetadata(ctx context.Context, db *gorm.DB, table string) error {
	table = strings.TrimSpace(table)
	if table == "" {
		table = model.MetaEntry{}.TableName()
	}
	if err := db.WithContext(ctx).Table(table).AutoMigrate(&model.MetaEntry{}); err != nil {
		return errs.Wrapf(err, "auto migrate metadata table %s", table)
	}
	return nil
}
