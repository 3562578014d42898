package reconcile

import (
	"context"
	"errors"
	"time"

	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

// ListChanges returns ledger rows for the CLI and the console.
func (s *Service) ListChanges(ctx context.Context, filter ports.ChangeFilter) ([]identity.ChangeRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if s.ledger == nil {
		return nil, errors.New("change ledger is required")
	}
	return s.ledger.List(ctx, filter)
}

// GetChange accepts any id form identity.ParseID understands.
func (s *Service) GetChange(ctx context.Context, rawID string) (identity.ChangeRecord, error) {
	if ctx == nil {
		return identity.ChangeRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return identity.ChangeRecord{}, errs.Wrap(err, "check context")
	}
	if s.ledger == nil {
		return identity.ChangeRecord{}, errors.New("change ledger is required")
	}

	id, err := identity.ParseID(rawID)
	if err != nil {
		return identity.ChangeRecord{}, err
	}
	return s.ledger.Get(ctx, id)
}

type CaptureInfo struct {
	CapturedAt time.Time
	Entries    int64
}

type SnapshotStatus struct {
	Latest   *CaptureInfo
	Previous *CaptureInfo
}

// SnapshotStatus reports the newest stored capture and its baseline.
func (s *Service) SnapshotStatus(ctx context.Context) (SnapshotStatus, error) {
	if ctx == nil {
		return SnapshotStatus{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return SnapshotStatus{}, errs.Wrap(err, "check context")
	}
	if s.snapshots == nil {
		return SnapshotStatus{}, errors.New("snapshot store is required")
	}

	var status SnapshotStatus
	latest, found, err := s.snapshots.Latest(ctx)
	if err != nil || !found {
		return status, err
	}
	if status.Latest, err = s.captureInfo(ctx, latest); err != nil {
		return status, err
	}

	previous, found, err := s.snapshots.LatestBefore(ctx, latest)
	if err != nil || !found {
		return status, err
	}
	status.Previous, err = s.captureInfo(ctx, previous)
	return status, err
}

func (s *Service) captureInfo(ctx context.Context, at time.Time) (*CaptureInfo, error) {
	count, err := s.snapshots.Count(ctx, at)
	if err != nil {
		return nil, err
	}
	return &CaptureInfo{CapturedAt: at, Entries: count}, nil
}
