package compliance

import (
	"context"
	"errors"
	"log/slog"

	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
)

// EnsureSystemConfig creates the single config row with defaults when missing.
func (s *Service) EnsureSystemConfig(ctx context.Context) (domaincompliance.SystemConfig, error) {
	if ctx == nil {
		return domaincompliance.SystemConfig{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domaincompliance.SystemConfig{}, errs.Wrap(err, "check context")
	}
	if err := s.checkRepo(); err != nil {
		return domaincompliance.SystemConfig{}, err
	}

	cfg, found, err := s.repo.GetSystemConfig(ctx)
	if err != nil {
		return domaincompliance.SystemConfig{}, errs.Wrap(err, "load system config")
	}
	if found {
		return cfg, nil
	}

	cfg = domaincompliance.DefaultSystemConfig()
	if err := s.repo.SaveSystemConfig(ctx, cfg); err != nil {
		return domaincompliance.SystemConfig{}, errs.Wrap(err, "create default system config")
	}
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.system_config")),
		"system config initialised",
		slog.Bool("auto_scan_enabled", cfg.AutoScanEnabled),
		slog.Int("scan_interval_minutes", cfg.ScanIntervalMinutes),
	)
	return cfg, nil
}

func (s *Service) GetSystemConfig(ctx context.Context) (domaincompliance.SystemConfig, error) {
	return s.EnsureSystemConfig(ctx)
}

// UpdateSystemConfig validates the whole update before anything is written.
func (s *Service) UpdateSystemConfig(ctx context.Context, update domaincompliance.SystemConfigUpdate) (domaincompliance.SystemConfig, error) {
	current, err := s.EnsureSystemConfig(ctx)
	if err != nil {
		return domaincompliance.SystemConfig{}, err
	}

	next, err := current.Apply(update)
	if err != nil {
		return current, err
	}
	if next == current {
		return current, nil
	}
	if err := s.repo.SaveSystemConfig(ctx, next); err != nil {
		return current, errs.Wrap(err, "save system config")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.system_config")),
		"system config updated",
		slog.Bool("auto_scan_enabled", next.AutoScanEnabled),
		slog.Int("scan_interval_minutes", next.ScanIntervalMinutes),
	)
	return next, nil
}
