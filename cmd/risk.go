package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/domain/risk"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Show risk analysis and dashboard figures",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		scanID, _ := cmd.Flags().GetUint64("scan-id")
		rawFormat, _ := cmd.Flags().GetString("format")
		format, err := parseOutputFormat(rawFormat, formatText, formatJSON, formatYAML)
		if err != nil {
			return err
		}

		analysis, err := svc.RiskAnalysis(ctx, optionalScanID(scanID))
		if err != nil {
			return err
		}
		dashboard, err := svc.Dashboard(ctx, optionalScanID(scanID))
		if err != nil {
			return err
		}

		if format != formatText {
			return writeStructured(cmd.OutOrStdout(), format, struct {
				Analysis  compliance.RiskAnalysis `json:"analysis" yaml:"analysis"`
				Dashboard compliance.Dashboard    `json:"dashboard" yaml:"dashboard"`
			}{analysis, dashboard})
		}

		o := analysis.Overview
		_, err = fmt.Fprintf(
			cmd.OutOrStdout(),
			"status=%s violations=%d total_risk=%d avg=%.2f max=%d min=%d high_risk=%.2f%% top_table=%s dashboard_status=%s\n",
			analysis.Status,
			o.TotalViolations,
			o.TotalRisk,
			o.AverageRisk,
			o.MaxRisk,
			o.MinRisk,
			analysis.HighRiskPercentage,
			topTableName(dashboard.TopRiskyTable),
			dashboard.Status,
		)
		return errs.Wrap(err, "write risk output")
	}),
}

func optionalScanID(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}

func topTableName(table *risk.TableRisk) string {
	if table == nil {
		return "-"
	}
	return table.TableName
}

func init() {
	rootCmd.AddCommand(riskCmd)

	riskCmd.Flags().Uint64("scan-id", 0, "Restrict the analysis to one scan (0 for all)")
	riskCmd.Flags().String("format", formatText, "Output format (text|json|yaml)")
}
