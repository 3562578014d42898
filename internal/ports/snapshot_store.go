package ports

import (
	"context"
	"errors"
	"time"

	"dirsync/internal/domain/identity"
)

var ErrCaptureNotNewer = errors.New("capture timestamp is not newer than the latest stored capture")

// SnapshotStore persists full directory captures. Write honours the
// transaction carried in ctx (see UnitOfWork) and is all-or-nothing.
type SnapshotStore interface {
	Write(ctx context.Context, capturedAt time.Time, accounts []identity.Account) error
	LatestBefore(ctx context.Context, capturedAt time.Time) (time.Time, bool, error)
	Latest(ctx context.Context) (time.Time, bool, error)
	Read(ctx context.Context, capturedAt time.Time) (identity.Snapshot, error)
	Count(ctx context.Context, capturedAt time.Time) (int64, error)
}
