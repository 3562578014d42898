package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dirsync/internal/domain/identity"
)

var ErrChangeNotFound = errors.New("change record not found")

type ChangeFilter struct {
	Status   identity.Status
	Username string
	Limit    int
}

// ChangeLedger keeps one row per account id. Both record operations are
// idempotent: repeating a call updates the same row.
type ChangeLedger interface {
	RecordNew(ctx context.Context, account identity.Account, previous *identity.Account, detectedAt time.Time) error
	RecordChanged(ctx context.Context, account identity.Account, previous identity.Account, detectedAt time.Time) error
	Get(ctx context.Context, accountID uuid.UUID) (identity.ChangeRecord, error)
	List(ctx context.Context, filter ChangeFilter) ([]identity.ChangeRecord, error)
}
