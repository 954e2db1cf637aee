package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduled compliance scan commands",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the auto scan loop until interrupted",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		once, _ := cmd.Flags().GetBool("once")
		if once {
			result := svc.RunSchedulerCycle(ctx)
			status := "skipped"
			if result.Ran {
				status = string(result.Status)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "scheduler cycle status=%s scan=%d next_delay=%s\n", status, result.ScanID, result.NextDelay)
			return errs.Wrap(err, "write scheduler output")
		}

		return compliance.NewScheduler(svc).Run(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerRunCmd.Flags().Bool("once", false, "Run a single cycle and exit")
}
