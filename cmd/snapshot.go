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

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect stored directory snapshots",
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the newest capture and its baseline",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *reconcile.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, err := svc.SnapshotStatus(ctx)
		if err != nil {
			logging.Error(ctx, "read snapshot status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read snapshot status")
		}

		if err := writeCapture(cmd.OutOrStdout(), "latest", status.Latest); err != nil {
			return errs.Wrap(err, "write snapshot output")
		}
		if err := writeCapture(cmd.OutOrStdout(), "previous", status.Previous); err != nil {
			return errs.Wrap(err, "write snapshot output")
		}
		return nil
	}),
}

func writeCapture(w io.Writer, label string, info *reconcile.CaptureInfo) error {
	if info == nil {
		_, err := fmt.Fprintf(w, "%-9s none\n", label+":")
		return err
	}
	_, err := fmt.Fprintf(w, "%-9s %s entries=%d\n", label+":", identity.FormatTimestamp(info.CapturedAt), info.Entries)
	return err
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
}
