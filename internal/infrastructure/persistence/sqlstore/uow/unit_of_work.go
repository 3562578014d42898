package uow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/ports"
)

// UnitOfWork runs the snapshot write and its baseline read in one gorm
// transaction carried through the context.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx joins a transaction already carried by ctx instead of nesting one.
// The error returned by fn is passed through unchanged.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if fn == nil {
		return errors.New("transaction body is required")
	}
	if ports.InTx(ctx) {
		return fn(ctx)
	}

	logCtx := logging.WithComponent(ctx, "sqlstore.uow")
	started := time.Now()
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
	if err != nil {
		logging.Debug(logCtx, "transaction rolled back", slog.Duration("elapsed", time.Since(started)))
		return err
	}
	logging.Debug(logCtx, "transaction committed", slog.Duration("elapsed", time.Since(started)))
	return nil
}
