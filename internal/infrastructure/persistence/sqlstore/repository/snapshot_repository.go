package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/persistence/sqlstore/model"
	"dirsync/internal/ports"
)

const (
	DefaultRetain    = 2
	DefaultBatchSize = 500
)

// SnapshotOptions controls retention and insert batching.
// Retain counts the new capture: 2 keeps the newest existing capture as the
// diff baseline, 1 keeps nothing but the capture being written.
type SnapshotOptions struct {
	Retain    int
	BatchSize int
}

type SnapshotRepository struct {
	db        *gorm.DB
	retain    int
	batchSize int
}

var _ ports.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db *gorm.DB, opts SnapshotOptions) *SnapshotRepository {
	if opts.Retain < 1 {
		opts.Retain = DefaultRetain
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	return &SnapshotRepository{
		db:        db,
		retain:    opts.Retain,
		batchSize: opts.BatchSize,
	}
}

func (r *SnapshotRepository) Write(ctx context.Context, capturedAt time.Time, accounts []identity.Account) error {
	if !ports.InTx(ctx) {
		if ctx == nil {
			return errors.New("context is required")
		}
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.Write(ports.WithTxContext(ctx, tx), capturedAt, accounts)
		})
	}

	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	stamp := identity.FormatTimestamp(capturedAt)
	latest, found, err := maxCapture(db, "")
	if err != nil {
		return err
	}
	if found && stamp <= latest {
		return errs.Wrapf(ports.ErrCaptureNotNewer, "capture %s, latest %s", stamp, latest)
	}

	if found {
		retired, err := r.retire(db, latest)
		if err != nil {
			return err
		}
		logging.Info(ctx, "retired old snapshot entries",
			slog.String("component", "sqlstore.snapshot"),
			slog.Int64("rows", retired),
		)
	}

	if len(accounts) == 0 {
		return nil
	}

	rows := make([]model.SnapshotEntry, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, model.SnapshotEntry{
			CapturedAt:  stamp,
			AccountID:   identity.FormatID(account.ID),
			Username:    account.Username,
			Email:       optional(account.Email),
			DisplayName: optional(account.DisplayName),
			Company:     optional(account.Company),
			Department:  optional(account.Department),
		})
	}
	if err := db.CreateInBatches(rows, r.batchSize).Error; err != nil {
		return errs.Wrapf(err, "insert snapshot %s", stamp)
	}
	return nil
}

// retire deletes every capture older than the newest retain-1 ones.
func (r *SnapshotRepository) retire(db *gorm.DB, latest string) (int64, error) {
	keep := r.retain - 1
	if keep == 0 {
		result := db.Where("captured_at <= ?", latest).Delete(&model.SnapshotEntry{})
		if result.Error != nil {
			return 0, errs.Wrap(result.Error, "delete snapshot entries")
		}
		return result.RowsAffected, nil
	}

	var kept []string
	if err := db.Model(&model.SnapshotEntry{}).
		Distinct().
		Order("captured_at desc").
		Limit(keep).
		Pluck("captured_at", &kept).Error; err != nil {
		return 0, errs.Wrap(err, "query retained captures")
	}
	if len(kept) == 0 {
		return 0, nil
	}

	oldest := kept[len(kept)-1]
	result := db.Where("captured_at < ?", oldest).Delete(&model.SnapshotEntry{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete snapshot entries")
	}
	return result.RowsAffected, nil
}

func (r *SnapshotRepository) LatestBefore(ctx context.Context, capturedAt time.Time) (time.Time, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return time.Time{}, false, err
	}

	latest, found, err := maxCapture(db, identity.FormatTimestamp(capturedAt))
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return parseCapture(latest)
}

func (r *SnapshotRepository) Latest(ctx context.Context) (time.Time, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return time.Time{}, false, err
	}

	latest, found, err := maxCapture(db, "")
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return parseCapture(latest)
}

func (r *SnapshotRepository) Read(ctx context.Context, capturedAt time.Time) (identity.Snapshot, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return identity.Snapshot{}, err
	}

	stamp := identity.FormatTimestamp(capturedAt)
	var rows []model.SnapshotEntry
	if err := db.Where("captured_at = ?", stamp).Order("account_id asc").Find(&rows).Error; err != nil {
		return identity.Snapshot{}, errs.Wrapf(err, "query snapshot %s", stamp)
	}

	snapshot := identity.Snapshot{
		CapturedAt: capturedAt.UTC(),
		Accounts:   make(map[uuid.UUID]identity.Account, len(rows)),
	}
	for _, row := range rows {
		id, err := uuid.Parse(row.AccountID)
		if err != nil {
			return identity.Snapshot{}, errs.Wrapf(err, "parse snapshot account id %q", row.AccountID)
		}
		snapshot.Accounts[id] = identity.Account{
			ID:          id,
			Username:    row.Username,
			Email:       deref(row.Email),
			DisplayName: deref(row.DisplayName),
			Company:     deref(row.Company),
			Department:  deref(row.Department),
		}
	}
	return snapshot, nil
}

func (r *SnapshotRepository) Count(ctx context.Context, capturedAt time.Time) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.SnapshotEntry{}).
		Where("captured_at = ?", identity.FormatTimestamp(capturedAt)).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count snapshot entries")
	}
	return count, nil
}

// maxCapture returns the greatest stored capture, strictly before "before"
// when it is non-empty.
func maxCapture(db *gorm.DB, before string) (string, bool, error) {
	query := db.Model(&model.SnapshotEntry{}).Select("MAX(captured_at)")
	if before != "" {
		query = query.Where("captured_at < ?", before)
	}

	var latest sql.NullString
	if err := query.Scan(&latest).Error; err != nil {
		return "", false, errs.Wrap(err, "query latest capture")
	}
	if !latest.Valid || latest.String == "" {
		return "", false, nil
	}
	return latest.String, true, nil
}

func parseCapture(raw string) (time.Time, bool, error) {
	t, err := identity.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, false, errs.Wrapf(err, "parse capture timestamp %q", raw)
	}
	return t, true, nil
}
