package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
	"policyguard/internal/usecase/riskconsole"
)

var consoleRiskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Start the risk dashboard console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		scanID, _ := cmd.Flags().GetUint64("scan-id")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 10 * time.Second
		}

		model := riskconsole.NewRiskModel(ctx, svc, riskconsole.Options{
			ScanID:          scanID,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run risk console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleRiskCmd)
	consoleRiskCmd.Flags().Uint64("scan-id", 0, "Only list violations of this scan (0 lists all)")
	consoleRiskCmd.Flags().Duration("refresh-interval", 10*time.Second, "Auto refresh interval")
}
