package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"dirsync/internal/bootstrap"
	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/errs"
	"dirsync/internal/usecase/ledgerconsole"
	"dirsync/internal/usecase/reconcile"
)

var consoleChangesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Browse the change ledger",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *reconcile.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		username, _ := cmd.Flags().GetString("username")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := ledgerconsole.NewLedgerModel(ctx, svc, ledgerconsole.Options{
			Username:        username,
			StatusFilter:    status,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run ledger console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleChangesCmd)
	consoleChangesCmd.Flags().String("status", "", "Optional status filter (NEW|all)")
	consoleChangesCmd.Flags().String("username", "", "Case-insensitive username substring")
	consoleChangesCmd.Flags().Int("limit", 200, "Maximum rows")
	consoleChangesCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
