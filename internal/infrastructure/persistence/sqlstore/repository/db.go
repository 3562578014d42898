package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dirsync/internal/ports"
)

func dbFromContext(ctx context.Context, base *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return base.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// optional stores empty text as NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
