package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/usecase/compliance"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Inspect or change the auto scan configuration",
}

var systemGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the auto scan configuration and last known runtime state",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawFormat, _ := cmd.Flags().GetString("format")
		format, err := parseOutputFormat(rawFormat, formatJSON, formatYAML)
		if err != nil {
			return err
		}

		status, err := svc.SystemStatus(ctx)
		if err != nil {
			return err
		}
		return writeStructured(cmd.OutOrStdout(), format, status)
	}),
}

var systemSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Enable or disable auto scan and change its interval",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		var update domaincompliance.SystemConfigUpdate
		if cmd.Flags().Changed("auto-scan") {
			enabled, _ := cmd.Flags().GetBool("auto-scan")
			update.AutoScanEnabled = &enabled
		}
		if cmd.Flags().Changed("interval") {
			minutes, _ := cmd.Flags().GetInt("interval")
			update.ScanIntervalMinutes = &minutes
		}
		if update.AutoScanEnabled == nil && update.ScanIntervalMinutes == nil {
			return errors.New("nothing to update: pass --auto-scan and/or --interval")
		}

		cfg, err := svc.UpdateSystemConfig(ctx, update)
		if err != nil {
			return err
		}
		return writeStructured(cmd.OutOrStdout(), formatYAML, systemConfigView{
			AutoScanEnabled:     cfg.AutoScanEnabled,
			ScanIntervalMinutes: cfg.ScanIntervalMinutes,
		})
	}),
}

type systemConfigView struct {
	AutoScanEnabled     bool `json:"auto_scan_enabled" yaml:"auto_scan_enabled"`
	ScanIntervalMinutes int  `json:"scan_interval_minutes" yaml:"scan_interval_minutes"`
}

func init() {
	rootCmd.AddCommand(systemCmd)
	systemCmd.AddCommand(systemGetCmd, systemSetCmd)

	systemGetCmd.Flags().String("format", formatYAML, "Output format (json|yaml)")
	systemSetCmd.Flags().Bool("auto-scan", false, "Enable scheduled scans")
	systemSetCmd.Flags().Int("interval", domaincompliance.DefaultScanIntervalMinutes, "Minutes between scheduled scans (1-1440)")
}
