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

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scan runs, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		rawFormat, _ := cmd.Flags().GetString("format")
		format, err := parseOutputFormat(rawFormat, formatText, formatJSON, formatYAML)
		if err != nil {
			return err
		}

		items, err := svc.History(ctx, limit)
		if err != nil {
			return err
		}
		if format != formatText {
			return writeStructured(cmd.OutOrStdout(), format, items)
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			_, err := fmt.Fprintln(out, "no scans yet")
			return errs.Wrap(err, "write history output")
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(
				out,
				"%d\t%s\t%s\t%s/%s\trules=%d\tviolations=%d\t%.2fs\t%s\n",
				item.ScanID,
				item.ScannedAt.UTC().Format("2006-01-02T15:04:05Z"),
				item.Status,
				item.ScanMode,
				item.InputFormat,
				item.TotalRules,
				item.TotalViolations,
				item.DurationSeconds,
				item.FileName,
			); err != nil {
				return errs.Wrap(err, "write history output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 0, "Max scans to list (0 uses scan.history_limit)")
	historyCmd.Flags().String("format", formatText, "Output format (text|json|yaml)")
}
