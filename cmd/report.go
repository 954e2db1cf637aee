package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the compliance report as JSON or YAML",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		scanID, _ := cmd.Flags().GetUint64("scan-id")
		output, _ := cmd.Flags().GetString("output")
		rawFormat, _ := cmd.Flags().GetString("format")
		format, err := parseOutputFormat(rawFormat, formatJSON, formatYAML)
		if err != nil {
			return err
		}

		report, err := svc.BuildReport(ctx, optionalScanID(scanID))
		if err != nil {
			return err
		}

		if output == "" {
			return writeStructured(cmd.OutOrStdout(), format, report)
		}

		file, err := os.Create(output)
		if err != nil {
			return errs.Wrapf(err, "create report %q", output)
		}
		if err := writeStructured(file, format, report); err != nil {
			_ = file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return errs.Wrapf(err, "close report %q", output)
		}
		logging.Info(ctx, "report written", slog.String("path", output), slog.String("format", format))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Uint64("scan-id", 0, "Restrict the report to one scan (0 for all)")
	reportCmd.Flags().String("format", formatJSON, "Report format (json|yaml)")
	reportCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
}
