/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "policyguard",
	Short:        "Policy-driven compliance scanner",
	Long:         "Extracts rules from policy documents with an LLM, evaluates them against databases or uploaded datasets and tracks risk over time.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if logLevel == "" && logFormat == "" {
			return nil
		}
		return applyLogger(cmd, logLevel, logFormat)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "policyguard"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

// applyLogger swaps the command logger. Empty level or format keep the defaults.
func applyLogger(cmd *cobra.Command, level string, format string) error {
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}
	logger, err := logging.NewLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return errs.Wrap(err, "configure logger")
	}
	logging.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, logger))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ./configs/config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error), overrides log.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text|json), overrides log.format")
}
