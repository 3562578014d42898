package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"dirsync/internal/bootstrap"
	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/usecase/reconcile"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one directory reconcile",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *reconcile.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		skipMetadata, _ := cmd.Flags().GetBool("skip-metadata")
		report, err := svc.Run(ctx, reconcile.RunInput{SkipMetadata: skipMetadata})
		if writeErr := writeRunReport(cmd.OutOrStdout(), report); writeErr != nil {
			return errs.Wrap(writeErr, "write run output")
		}
		if err != nil {
			logging.Error(ctx, "reconcile run failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "reconcile run")
		}
		return nil
	}),
}

func writeRunReport(w io.Writer, report reconcile.RunReport) error {
	if report.NothingToDo {
		_, err := fmt.Fprintln(w, "directory returned no accounts, nothing to do")
		return err
	}
	if report.CapturedAt.IsZero() {
		return nil
	}

	lines := []string{
		fmt.Sprintf("captured:   %s (%d accounts, %d invalid, %d duplicate ids)",
			identity.FormatTimestamp(report.CapturedAt), report.Accounts, report.Invalid, report.Duplicates),
	}
	if report.HasBaseline {
		lines = append(lines,
			fmt.Sprintf("baseline:   %s", identity.FormatTimestamp(report.PreviousCapturedAt)),
			fmt.Sprintf("changes:    new=%d changed=%d unchanged=%d", report.Summary.New, report.Summary.Changed, report.Summary.Unchanged),
			fmt.Sprintf("ledger:     recorded=%d failed=%d", report.Recorded, len(report.LedgerFailures)),
			fmt.Sprintf("notify:     sent=%d failed=%d", report.Notified, report.NotifyFailures),
		)
	} else {
		lines = append(lines, "baseline:   none (first capture)")
	}

	if report.Metadata.Skipped {
		lines = append(lines, fmt.Sprintf("metadata:   skipped (%s)", report.Metadata.SkipReason))
	} else {
		lines = append(lines, fmt.Sprintf("metadata:   filled=%d pushed=%d failed=%d",
			report.Metadata.LinksFilled, report.Metadata.ValuesPushed, len(report.Metadata.Failures)))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("skip-metadata", false, "Skip the metadata linker passes")
}
