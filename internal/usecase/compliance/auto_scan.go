package compliance

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

// RunAutoScan evaluates every stored rule against the reference database.
// A failing rule is skipped. Any other failure rolls the run back and records
// an AUTO_FAILED run with zero counts instead; the returned error is the cause.
func (s *Service) RunAutoScan(ctx context.Context) (ScanResult, error) {
	if ctx == nil {
		return ScanResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ScanResult{}, errs.Wrap(err, "check context")
	}
	if err := s.checkRepo(); err != nil {
		return ScanResult{}, err
	}
	if s.uow == nil {
		return ScanResult{}, errUnitOfWorkRequired
	}
	if s.sources == nil {
		return ScanResult{}, errSourcesRequired
	}

	autoCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.auto_scan"))
	started := s.now()

	result, scanErr := s.autoScan(autoCtx, started)
	if scanErr == nil {
		result.DurationSeconds = s.now().Sub(started).Seconds()
		logging.Info(autoCtx, "auto scan finished",
			slog.Uint64("scan_id", result.ScanID),
			slog.Int("rules", result.TotalRules),
			slog.Int("violations", result.TotalViolations),
		)
		return result, nil
	}

	logging.Error(autoCtx, "auto scan failed", slog.Any("err", errs.Loggable(scanErr)))

	failed := ScanResult{
		ScanMode:        domaincompliance.ScanModeDatabase,
		InputFormat:     domaincompliance.FormatSQL,
		Status:          domaincompliance.StatusAutoFailed,
		DurationSeconds: s.now().Sub(started).Seconds(),
	}
	run, err := s.repo.CreateScanRun(ctx, ports.ScanRunCreate{
		ScanMode:    failed.ScanMode,
		InputFormat: failed.InputFormat,
		Status:      domaincompliance.StatusAutoFailed,
		ScannedAt:   started,
	})
	if err != nil {
		return failed, errors.Join(scanErr, errs.Wrap(err, "record failed auto scan"))
	}
	failed.ScanID = run.ScanID
	if err := s.repo.FinishScanRun(ctx, run.ScanID, ports.ScanRunFinish{
		Status:          domaincompliance.StatusAutoFailed,
		DurationSeconds: failed.DurationSeconds,
	}); err != nil {
		return failed, errors.Join(scanErr, errs.Wrap(err, "finish failed auto scan"))
	}
	return failed, scanErr
}

func (s *Service) autoScan(ctx context.Context, started time.Time) (ScanResult, error) {
	dsn := strings.TrimSpace(s.options.ReferenceDSN)
	if dsn == "" {
		return ScanResult{}, errs.Wrap(domaincompliance.ErrNoDataSource, "reference database is not configured")
	}

	source, err := s.sources.OpenDatabase(ctx, dsn)
	if err != nil {
		return ScanResult{}, errs.Wrap(err, "open reference database")
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			logging.Warn(ctx, "close reference database failed", slog.Any("err", errs.Loggable(closeErr)))
		}
	}()

	result := ScanResult{
		ScanMode:    domaincompliance.ScanModeDatabase,
		InputFormat: domaincompliance.FormatSQL,
		Status:      domaincompliance.StatusAutoSuccess,
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		rules, err := s.repo.ListRules(txCtx)
		if err != nil {
			return err
		}

		run, err := s.repo.CreateScanRun(txCtx, ports.ScanRunCreate{
			ScanMode:    result.ScanMode,
			InputFormat: result.InputFormat,
			TotalRules:  len(rules),
			Status:      domaincompliance.StatusProcessing,
			ScannedAt:   started,
		})
		if err != nil {
			return err
		}
		result.ScanID = run.ScanID

		violations, err := evaluateRules(txCtx, source, rules, run.ScanID, s.now().UTC(), evaluateBestEffort)
		if err != nil {
			return err
		}
		if err := s.repo.CreateViolations(txCtx, violations); err != nil {
			return err
		}

		result.TotalRules = len(rules)
		result.TotalViolations = len(violations)
		result.ViolationsFound = len(violations) > 0

		return s.repo.FinishScanRun(txCtx, run.ScanID, ports.ScanRunFinish{
			TotalRules:      len(rules),
			TotalViolations: len(violations),
			Status:          domaincompliance.StatusAutoSuccess,
			DurationSeconds: s.now().Sub(started).Seconds(),
		})
	})
	if err != nil {
		return ScanResult{}, err
	}

	s.setCacheBestEffort(ctx, cacheKeyLastScanID, strconv.FormatUint(result.ScanID, 10))
	return result, nil
}
