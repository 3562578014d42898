package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"dirsync/internal/bootstrap"
	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/ports"
	"dirsync/internal/usecase/reconcile"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Inspect the change ledger",
}

var changesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List change ledger rows, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *reconcile.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		username, _ := cmd.Flags().GetString("username")
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := svc.ListChanges(ctx, ports.ChangeFilter{
			Status:   identity.Status(status),
			Username: username,
			Limit:    limit,
		})
		if err != nil {
			logging.Error(ctx, "list changes failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list changes")
		}

		if err := writeChanges(cmd.OutOrStdout(), records); err != nil {
			return errs.Wrap(err, "write changes output")
		}
		return nil
	}),
}

var changesShowCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "Show one change ledger row",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *reconcile.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		record, err := svc.GetChange(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get change")
		}
		return errs.Wrap(writeChanges(cmd.OutOrStdout(), []identity.ChangeRecord{record}), "write change output")
	}),
}

func writeChanges(w io.Writer, records []identity.ChangeRecord) error {
	headerStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("no changes"))
		return err
	}

	header := fmt.Sprintf("%-36s  %-6s  %-24s  %-24s  %s", "ACCOUNT", "STATUS", "USERNAME", "PREVIOUS", "UPDATED")
	if _, err := fmt.Fprintln(w, headerStyle.Render(header)); err != nil {
		return err
	}
	for _, record := range records {
		previous := "-"
		if record.PreviousUsername != nil {
			previous = *record.PreviousUsername
		}
		line := fmt.Sprintf("%-36s  %-6s  %-24s  %-24s  %s",
			record.AccountID,
			record.Status,
			record.Username,
			previous,
			identity.FormatTimestamp(record.UpdatedAt),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.AddCommand(changesListCmd)
	changesCmd.AddCommand(changesShowCmd)
	changesListCmd.Flags().String("status", "", "Status filter (NEW)")
	changesListCmd.Flags().String("username", "", "Case-insensitive username substring")
	changesListCmd.Flags().Int("limit", 50, "Maximum rows (0 = all)")
}
