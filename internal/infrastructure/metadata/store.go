package metadata

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/persistence/sqlstore/model"
	"dirsync/internal/ports"
)

// Store is the gorm adapter for the external key/name/value table.
type Store struct {
	db    *gorm.DB
	table string
}

var _ ports.MetadataStore = (*Store)(nil)

func NewStore(db *gorm.DB, table string) *Store {
	table = strings.TrimSpace(table)
	if table == "" {
		table = model.MetaEntry{}.TableName()
	}
	return &Store{db: db, table: table}
}

func (s *Store) Table() string { return s.table }

func (s *Store) ListEntries(ctx context.Context, name string) ([]identity.MetadataEntry, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, errors.New("meta name is required")
	}

	var rows []model.MetaEntry
	if err := s.db.WithContext(ctx).
		Table(s.table).
		Where(clause.Eq{Column: clause.Column{Name: "meta_name"}, Value: trimmedName}).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrapf(err, "query %s entries named %s", s.table, trimmedName)
	}

	entries := make([]identity.MetadataEntry, 0, len(rows))
	for _, row := range rows {
		value := ""
		if row.Value != nil {
			value = *row.Value
		}
		entries = append(entries, identity.MetadataEntry{
			Key:   row.Key,
			Name:  row.Name,
			Value: value,
		})
	}
	return entries, nil
}

// Merge inserts the entry or overwrites the value of an existing (key, name).
func (s *Store) Merge(ctx context.Context, entry identity.MetadataEntry) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	if strings.TrimSpace(entry.Key) == "" {
		return errors.New("meta key is required")
	}
	if strings.TrimSpace(entry.Name) == "" {
		return errors.New("meta name is required")
	}

	value := entry.Value
	row := model.MetaEntry{
		Key:   entry.Key,
		Name:  entry.Name,
		Value: &value,
	}

	if err := s.db.WithContext(ctx).Table(s.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "KEY"}, {Name: "meta_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "merge %s %s", s.table, entry.Name)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return errs.Wrap(err, "get metadata sql db")
	}
	if err := sqlDB.Close(); err != nil {
		return errs.Wrap(err, "close metadata sql db")
	}
	return nil
}
