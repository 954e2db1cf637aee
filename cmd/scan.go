package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap"
	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract rules from a policy and evaluate them against a database or dataset",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *compliance.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		policyPath, _ := cmd.Flags().GetString("policy")
		dbURI, _ := cmd.Flags().GetString("db-uri")
		dataPath, _ := cmd.Flags().GetString("data")
		severity, _ := cmd.Flags().GetString("severity")
		rawFormat, _ := cmd.Flags().GetString("format")

		format, err := parseOutputFormat(rawFormat, formatText, formatJSON, formatYAML)
		if err != nil {
			return err
		}
		if strings.TrimSpace(policyPath) == "" {
			return errors.New("--policy is required")
		}

		policy, err := os.ReadFile(policyPath)
		if err != nil {
			return errs.Wrapf(err, "read policy %q", policyPath)
		}

		input := compliance.ScanInput{
			PolicyFileName: filepath.Base(policyPath),
			PolicyContent:  policy,
			DatabaseURI:    dbURI,
			Severity:       severity,
		}
		if strings.TrimSpace(dbURI) == "" && strings.TrimSpace(dataPath) != "" {
			file, err := os.Open(dataPath)
			if err != nil {
				return errs.Wrapf(err, "open dataset %q", dataPath)
			}
			defer file.Close()
			input.DataFileName = filepath.Base(dataPath)
			input.DataFile = file
		}

		result, err := svc.Scan(ctx, input)
		if err != nil {
			return err
		}
		return writeScanResult(cmd.OutOrStdout(), format, result)
	}),
}

type scanResultView struct {
	ScanID          uint64  `json:"scan_id" yaml:"scan_id"`
	TotalRules      int     `json:"total_rules" yaml:"total_rules"`
	TotalViolations int     `json:"total_violations" yaml:"total_violations"`
	ViolationsFound bool    `json:"violations_found" yaml:"violations_found"`
	ScanMode        string  `json:"scan_mode" yaml:"scan_mode"`
	InputFormat     string  `json:"input_format" yaml:"input_format"`
	Status          string  `json:"status" yaml:"status"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
}

func newScanResultView(result compliance.ScanResult) scanResultView {
	return scanResultView{
		ScanID:          result.ScanID,
		TotalRules:      result.TotalRules,
		TotalViolations: result.TotalViolations,
		ViolationsFound: result.ViolationsFound,
		ScanMode:        string(result.ScanMode),
		InputFormat:     string(result.InputFormat),
		Status:          string(result.Status),
		DurationSeconds: result.DurationSeconds,
	}
}

func writeScanResult(w io.Writer, format string, result compliance.ScanResult) error {
	if format != formatText {
		return writeStructured(w, format, newScanResultView(result))
	}
	_, err := fmt.Fprintf(
		w,
		"scan=%d status=%s mode=%s format=%s rules=%d violations=%d duration=%.2fs\n",
		result.ScanID,
		result.Status,
		result.ScanMode,
		result.InputFormat,
		result.TotalRules,
		result.TotalViolations,
		result.DurationSeconds,
	)
	return errs.Wrap(err, "write scan output")
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("policy", "", "Policy document (PDF or text)")
	scanCmd.Flags().String("db-uri", "", "Database to scan (postgres://, sqlite://path or file:); wins over --data")
	scanCmd.Flags().String("data", "", "Dataset to scan (.csv, .xlsx, .json)")
	scanCmd.Flags().String("severity", "", "Severity for rules without one (Low|Medium|High|Critical)")
	scanCmd.Flags().String("format", formatText, "Output format (text|json|yaml)")
}
