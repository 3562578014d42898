package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

// Run executes one reconcile: directory read, snapshot write, diff, ledger,
// notification and the metadata linker, in that order.
func (s *Service) Run(ctx context.Context, input RunInput) (RunReport, error) {
	if ctx == nil {
		return RunReport{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return RunReport{}, errs.Wrap(err, "check context")
	}
	if err := s.validate(); err != nil {
		return RunReport{}, err
	}

	logCtx := logging.WithComponent(ctx, "usecase.reconcile")

	accounts, err := s.directory.ListAccounts(ctx)
	if err != nil {
		return RunReport{}, errs.WithStack(fmt.Errorf("%w: %w", ErrDirectoryRead, err))
	}

	idx := identity.NewIndex(accounts)
	report := RunReport{
		Accounts:   idx.Len(),
		Invalid:    idx.Invalid(),
		Duplicates: idx.Duplicates(),
	}
	if idx.Duplicates() > 0 {
		logging.Warn(logCtx, "duplicate directory ids dropped", slog.Int("count", idx.Duplicates()))
	}
	if idx.Len() == 0 {
		report.NothingToDo = true
		logging.Info(logCtx, "directory returned no accounts, nothing to do", slog.Int("invalid", idx.Invalid()))
		return report, nil
	}

	capturedAt := s.now().UTC()
	report.CapturedAt = capturedAt
	logCtx = logging.WithAttrs(logCtx, slog.String("captured_at", identity.FormatTimestamp(capturedAt)))

	previous, err := s.writeSnapshot(ctx, capturedAt, idx)
	if err != nil {
		return report, errs.WithStack(fmt.Errorf("%w: %w", ErrSnapshotWrite, err))
	}
	logging.Info(logCtx, "snapshot written", slog.Int("accounts", idx.Len()))

	current := idx.Snapshot()
	current.CapturedAt = capturedAt
	changes := identity.Classify(current, previous)
	if previous != nil {
		report.HasBaseline = true
		report.PreviousCapturedAt = previous.CapturedAt
		report.Summary = identity.Summarize(current, changes)
	} else {
		logging.Info(logCtx, "no previous snapshot, baseline run")
	}

	recorded, err := s.recordChanges(logCtx, changes, capturedAt, &report)
	if err != nil {
		return report, err
	}
	s.publish(logCtx, recorded, capturedAt, &report)

	if input.SkipMetadata {
		report.Metadata = MetadataReport{Skipped: true, SkipReason: "disabled"}
	} else if err := s.linkMetadata(logCtx, idx, &report.Metadata); err != nil {
		return report, err
	}

	logging.Info(logCtx, "reconcile run completed",
		slog.Int("new", report.Summary.New),
		slog.Int("changed", report.Summary.Changed),
		slog.Int("unchanged", report.Summary.Unchanged),
		slog.Int("ledger_failures", len(report.LedgerFailures)),
		slog.Int("links_filled", report.Metadata.LinksFilled),
		slog.Int("values_pushed", report.Metadata.ValuesPushed),
		slog.Int("metadata_failures", len(report.Metadata.Failures)),
	)

	if s.failOnRowErrors && report.RowFailures() > 0 {
		return report, errs.Wrapf(ErrRowFailures, "%d rows failed", report.RowFailures())
	}
	return report, nil
}

func (s *Service) validate() error {
	switch {
	case s.directory == nil:
		return errors.New("directory source is required")
	case s.snapshots == nil:
		return errors.New("snapshot store is required")
	case s.ledger == nil:
		return errors.New("change ledger is required")
	case s.uow == nil:
		return errors.New("unit of work is required")
	}
	return nil
}

// writeSnapshot reads the baseline and replaces old captures in one
// transaction, so the baseline is the capture that existed before this run.
func (s *Service) writeSnapshot(ctx context.Context, capturedAt time.Time, idx *identity.Index) (*identity.Snapshot, error) {
	var previous *identity.Snapshot
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		previousAt, found, err := s.snapshots.LatestBefore(txCtx, capturedAt)
		if err != nil {
			return errs.Wrap(err, "find previous snapshot")
		}
		if found {
			snapshot, err := s.snapshots.Read(txCtx, previousAt)
			if err != nil {
				return errs.Wrap(err, "read previous snapshot")
			}
			previous = &snapshot
		}
		return s.snapshots.Write(txCtx, capturedAt, idx.Accounts())
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// recordChanges writes every change independently. The returned slice holds
// the changes that reached the ledger.
func (s *Service) recordChanges(ctx context.Context, changes []identity.Change, detectedAt time.Time, report *RunReport) ([]identity.Change, error) {
	recorded := make([]identity.Change, 0, len(changes))
	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return recorded, errs.Wrap(err, "record changes")
		}

		var err error
		switch change.Kind {
		case identity.KindNew:
			err = s.ledger.RecordNew(ctx, change.Current, nil, detectedAt)
		case identity.KindChanged:
			err = s.ledger.RecordChanged(ctx, change.Current, *change.Previous, detectedAt)
		default:
			continue
		}

		accountID := identity.FormatID(change.Current.ID)
		if err != nil {
			report.LedgerFailures.Add(accountID, "record "+change.Kind.String(), err)
			logging.Warn(ctx, "ledger write failed",
				slog.String("account_id", accountID),
				slog.String("kind", change.Kind.String()),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		recorded = append(recorded, change)
	}

	report.Recorded = len(recorded)
	return recorded, nil
}

func (s *Service) publish(ctx context.Context, changes []identity.Change, capturedAt time.Time, report *RunReport) {
	if s.notifier == nil || len(changes) == 0 {
		return
	}

	notices := make([]ports.ChangeNotice, 0, len(changes))
	for _, change := range changes {
		notices = append(notices, ports.ChangeNotice{
			Change:     change,
			DetectedAt: capturedAt,
			CapturedAt: capturedAt,
		})
	}

	err := s.notifier.Publish(ctx, notices)
	if err == nil {
		report.Notified = len(notices)
		return
	}

	var rows errs.RowErrors
	if errors.As(err, &rows) {
		report.NotifyFailures = len(rows)
		report.Notified = len(notices) - len(rows)
	} else {
		report.NotifyFailures = len(notices)
	}
	logging.Warn(ctx, "change notification failed",
		slog.Int("failed", report.NotifyFailures),
		slog.Any("err", errs.Loggable(err)),
	)
}
