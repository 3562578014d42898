package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
)

// linkMetadata runs the fill-missing-link pass and then the push pass.
// An unreachable store skips the phase; only cancellation is returned.
func (s *Service) linkMetadata(ctx context.Context, idx *identity.Index, report *MetadataReport) error {
	logCtx := logging.WithAttrs(ctx, slog.String("phase", "metadata"))

	if s.metadata == nil {
		report.Skipped = true
		report.SkipReason = "not configured"
		logging.Info(logCtx, "metadata store not configured, skipping linker")
		return nil
	}

	store, err := s.metadata.OpenMetadataStore(ctx)
	if err != nil {
		report.Skipped = true
		if errors.Is(err, ports.ErrMetadataNotConfigured) {
			report.SkipReason = "not configured"
			logging.Info(logCtx, "metadata store not configured, skipping linker")
			return nil
		}
		report.SkipReason = "unavailable"
		logging.Warn(logCtx, "metadata store unavailable, skipping linker", slog.Any("err", errs.Loggable(err)))
		return nil
	}
	defer func() {
		if closeErr := store.Close(ctx); closeErr != nil {
			logging.Warn(logCtx, "close metadata store failed", slog.Any("err", errs.Loggable(closeErr)))
		}
	}()

	if err := s.fillMissingLinks(logCtx, store, idx, report); err != nil {
		return err
	}
	return s.pushMetadata(logCtx, store, idx, report)
}

func (s *Service) fillMissingLinks(ctx context.Context, store ports.MetadataStore, idx *identity.Index, report *MetadataReport) error {
	usernameLinks, err := store.ListEntries(ctx, s.names.Username)
	if err != nil {
		report.Failures.Add(s.names.Username, "list", err)
		logging.Warn(ctx, "list username links failed", slog.Any("err", errs.Loggable(err)))
		return nil
	}
	stableIDLinks, err := store.ListEntries(ctx, s.names.StableID)
	if err != nil {
		report.Failures.Add(s.names.StableID, "list", err)
		logging.Warn(ctx, "list stable-id links failed", slog.Any("err", errs.Loggable(err)))
		return nil
	}

	planned := identity.PlanMissingLinks(usernameLinks, stableIDLinks, idx, s.names)
	filled, err := s.mergeAll(ctx, store, planned, "fill", report)
	report.LinksFilled = filled
	logging.Info(ctx, "fill-missing-link pass completed",
		slog.Int("candidates", len(planned)),
		slog.Int("filled", filled),
	)
	return err
}

// pushMetadata lists stable-id links again so links filled by the previous
// pass are pushed in the same run.
func (s *Service) pushMetadata(ctx context.Context, store ports.MetadataStore, idx *identity.Index, report *MetadataReport) error {
	stableIDLinks, err := store.ListEntries(ctx, s.names.StableID)
	if err != nil {
		report.Failures.Add(s.names.StableID, "list", err)
		logging.Warn(ctx, "list stable-id links failed", slog.Any("err", errs.Loggable(err)))
		return nil
	}

	planned := identity.PlanMetadataPush(stableIDLinks, idx, s.names)
	pushed, err := s.mergeAll(ctx, store, planned, "push", report)
	report.ValuesPushed = pushed
	logging.Info(ctx, "push-metadata pass completed",
		slog.Int("candidates", len(planned)),
		slog.Int("pushed", pushed),
	)
	return err
}

func (s *Service) mergeAll(ctx context.Context, store ports.MetadataStore, entries []identity.MetadataEntry, op string, report *MetadataReport) (int, error) {
	merged := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return merged, errs.Wrap(err, op+" metadata")
		}
		if err := store.Merge(ctx, entry); err != nil {
			report.Failures.Add(entry.Key+"/"+entry.Name, op, err)
			logging.Warn(ctx, "metadata merge failed",
				slog.String("key", entry.Key),
				slog.String("name", entry.Name),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		merged++
	}
	return merged, nil
}
