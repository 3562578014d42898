package ports

import (
	"context"
	"time"

	"dirsync/internal/domain/identity"
)

type ChangeNotice struct {
	Change     identity.Change
	DetectedAt time.Time
	CapturedAt time.Time
}

// ChangeNotifier announces recorded ledger changes to other systems.
type ChangeNotifier interface {
	Publish(ctx context.Context, notices []ChangeNotice) error
}
