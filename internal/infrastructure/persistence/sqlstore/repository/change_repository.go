package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/persistence/sqlstore/model"
	"dirsync/internal/ports"
)

type ChangeRepository struct {
	db *gorm.DB
}

var _ ports.ChangeLedger = (*ChangeRepository)(nil)

func NewChangeRepository(db *gorm.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// refreshedColumns are rewritten when a known account is detected again.
// created_at and employee_number are never touched.
var refreshedColumns = []string{
	"status",
	"detected_at",
	"display_name",
	"company",
	"department",
	"previous_username",
	"username",
	"previous_email",
	"email",
	"updated_at",
}

func (r *ChangeRepository) RecordNew(ctx context.Context, account identity.Account, previous *identity.Account, detectedAt time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	stamp := identity.FormatTimestamp(detectedAt)
	prevUsername, prevEmail := identity.PreviousValues(previous)
	row := model.Change{
		AccountID:        identity.FormatID(account.ID),
		Status:           string(identity.StatusNew),
		DetectedAt:       stamp,
		DisplayName:      account.DisplayName,
		Company:          optional(account.Company),
		Department:       optional(account.Department),
		PreviousUsername: prevUsername,
		Username:         account.Username,
		PreviousEmail:    prevEmail,
		Email:            account.Email,
		CreatedAt:        stamp,
		UpdatedAt:        stamp,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns(refreshedColumns),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "upsert change %s", row.AccountID)
	}
	return nil
}

func (r *ChangeRepository) RecordChanged(ctx context.Context, account identity.Account, previous identity.Account, detectedAt time.Time) error {
	if !ports.InTx(ctx) {
		if ctx == nil {
			return errors.New("context is required")
		}
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.RecordChanged(ports.WithTxContext(ctx, tx), account, previous, detectedAt)
		})
	}

	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	accountID := identity.FormatID(account.ID)
	var existing model.Change
	err = db.Where("account_id = ?", accountID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.RecordNew(ctx, account, &previous, detectedAt)
	}
	if err != nil {
		return errs.Wrapf(err, "query change %s", accountID)
	}

	stamp := identity.FormatTimestamp(detectedAt)
	prevUsername, prevEmail := identity.PreviousValues(&previous)
	if err := db.Model(&model.Change{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"status":            string(identity.StatusNew),
			"detected_at":       stamp,
			"display_name":      account.DisplayName,
			"company":           optional(account.Company),
			"department":        optional(account.Department),
			"previous_username": prevUsername,
			"username":          account.Username,
			"previous_email":    prevEmail,
			"email":             account.Email,
			"updated_at":        stamp,
		}).Error; err != nil {
		return errs.Wrapf(err, "update change %s", accountID)
	}
	return nil
}

func (r *ChangeRepository) Get(ctx context.Context, accountID uuid.UUID) (identity.ChangeRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return identity.ChangeRecord{}, err
	}

	id := identity.FormatID(accountID)
	var row model.Change
	if err := db.Where("account_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.ChangeRecord{}, errs.Wrapf(ports.ErrChangeNotFound, "account %s", id)
		}
		return identity.ChangeRecord{}, errs.Wrapf(err, "query change %s", id)
	}
	return mapChange(row)
}

func (r *ChangeRepository) List(ctx context.Context, filter ports.ChangeFilter) ([]identity.ChangeRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Change{})
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		query = query.Where("status = ?", strings.ToUpper(status))
	}
	if username := strings.TrimSpace(filter.Username); username != "" {
		query = query.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(username)+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Change
	if err := query.Order("updated_at desc").Order("account_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query changes")
	}

	items := make([]identity.ChangeRecord, 0, len(rows))
	for _, row := range rows {
		item, err := mapChange(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func mapChange(row model.Change) (identity.ChangeRecord, error) {
	detectedAt, err := identity.ParseTimestamp(row.DetectedAt)
	if err != nil {
		return identity.ChangeRecord{}, errs.Wrapf(err, "parse detected_at of %s", row.AccountID)
	}
	createdAt, err := identity.ParseTimestamp(row.CreatedAt)
	if err != nil {
		return identity.ChangeRecord{}, errs.Wrapf(err, "parse created_at of %s", row.AccountID)
	}
	updatedAt, err := identity.ParseTimestamp(row.UpdatedAt)
	if err != nil {
		return identity.ChangeRecord{}, errs.Wrapf(err, "parse updated_at of %s", row.AccountID)
	}

	return identity.ChangeRecord{
		AccountID:        row.AccountID,
		Status:           identity.Status(row.Status),
		DetectedAt:       detectedAt,
		EmployeeNumber:   deref(row.EmployeeNumber),
		DisplayName:      row.DisplayName,
		Company:          deref(row.Company),
		Department:       deref(row.Department),
		PreviousUsername: row.PreviousUsername,
		Username:         row.Username,
		PreviousEmail:    row.PreviousEmail,
		Email:            row.Email,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}
