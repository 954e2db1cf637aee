package compliance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

// Scan extracts rules from the policy, evaluates them against the chosen data
// source and records the run. Everything written by the run commits together
// or not at all; a failed run leaves no rows behind.
func (s *Service) Scan(ctx context.Context, input ScanInput) (ScanResult, error) {
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
	if s.documents == nil {
		return ScanResult{}, errDocumentsRequired
	}

	started := s.now()
	scanCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.compliance.scan"),
		slog.String("policy_file", input.PolicyFileName),
	)
	logging.Debug(scanCtx, "scan phase", slog.String("phase", string(domaincompliance.PhaseStarted)))

	result, err := s.scan(scanCtx, input, started)
	result.DurationSeconds = s.now().Sub(started).Seconds()
	if err != nil {
		logging.Error(scanCtx, "scan failed",
			slog.String("status", string(domaincompliance.StatusFailed)),
			slog.Float64("duration_seconds", result.DurationSeconds),
			slog.Any("err", errs.Loggable(err)),
		)
		s.setCacheBestEffort(ctx, cacheKeyLastScanStatus, string(domaincompliance.StatusFailed))
		return ScanResult{}, err
	}

	logging.Info(scanCtx, "scan finished",
		slog.Uint64("scan_id", result.ScanID),
		slog.String("status", string(result.Status)),
		slog.Int("rules", result.TotalRules),
		slog.Int("violations", result.TotalViolations),
	)
	s.setCacheBestEffort(ctx, cacheKeyLastScanID, strconv.FormatUint(result.ScanID, 10))
	s.setCacheBestEffort(ctx, cacheKeyLastScanStatus, string(result.Status))
	return result, nil
}

func (s *Service) scan(ctx context.Context, input ScanInput, started time.Time) (ScanResult, error) {
	policyText, err := s.documents.ExtractText(ctx, input.PolicyFileName, input.PolicyContent)
	if err != nil {
		return ScanResult{}, errs.Wrap(err, "extract policy text")
	}
	if strings.TrimSpace(policyText) == "" {
		return ScanResult{}, domaincompliance.ErrEmptyPolicy
	}

	source, target, err := s.openScanSource(ctx, input)
	if err != nil {
		return ScanResult{}, err
	}
	defer target.cleanup()
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			logging.Warn(ctx, "close data source failed", slog.Any("err", errs.Loggable(closeErr)))
		}
	}()
	logging.Debug(ctx, "scan phase", slog.String("phase", string(domaincompliance.PhasePolicyLoaded)))

	schema, err := source.Introspect(ctx)
	if err != nil {
		return ScanResult{}, errs.Wrap(err, "introspect data source")
	}
	if schema.IsEmpty() {
		return ScanResult{}, domaincompliance.ErrNoTables
	}

	fallback, ok := domaincompliance.ParseSeverity(input.Severity)
	if !ok {
		fallback = domaincompliance.DefaultSeverity
	}

	// Extraction writes nothing, so it runs before the transaction opens and
	// the application database is not locked while the generator works.
	rules, err := s.extractor.Extract(ctx, policyText, schema, fallback)
	if err != nil {
		return ScanResult{}, errs.Wrap(err, "extract rules")
	}
	if len(rules) == 0 {
		return ScanResult{}, domaincompliance.ErrNoRulesExtracted
	}
	logging.Debug(ctx, "scan phase",
		slog.String("phase", string(domaincompliance.PhaseRulesExtracted)),
		slog.Int("rules", len(rules)),
	)

	result := ScanResult{
		ScanMode:    target.mode,
		InputFormat: target.format,
		TotalRules:  len(rules),
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		policy, err := s.repo.CreatePolicy(txCtx, ports.PolicyCreate{
			FileName:      input.PolicyFileName,
			ExtractedText: policyText,
			CreatedAt:     started,
		})
		if err != nil {
			return err
		}

		run, err := s.repo.CreateScanRun(txCtx, ports.ScanRunCreate{
			ScanMode:    target.mode,
			InputFormat: target.format,
			FileName:    target.fileName,
			Status:      domaincompliance.StatusProcessing,
			ScannedAt:   started,
		})
		if err != nil {
			return err
		}
		result.ScanID = run.ScanID

		stored, err := s.repo.CreateRules(txCtx, policy.PolicyID, rules)
		if err != nil {
			return err
		}

		logging.Debug(ctx, "scan phase", slog.String("phase", string(domaincompliance.PhaseEvaluating)))
		violations, err := evaluateRules(txCtx, source, stored, run.ScanID, s.now().UTC(), evaluateStrict)
		if err != nil {
			return err
		}
		if err := s.repo.CreateViolations(txCtx, violations); err != nil {
			return err
		}

		result.TotalViolations = len(violations)
		result.ViolationsFound = len(violations) > 0
		result.Status = domaincompliance.InteractiveOutcome(len(violations))

		return s.repo.FinishScanRun(txCtx, run.ScanID, ports.ScanRunFinish{
			TotalRules:      len(stored),
			TotalViolations: len(violations),
			Status:          result.Status,
			DurationSeconds: s.now().Sub(started).Seconds(),
		})
	})
	if err != nil {
		return ScanResult{}, err
	}
	return result, nil
}

type scanTarget struct {
	mode     domaincompliance.ScanMode
	format   domaincompliance.InputFormat
	fileName string
	cleanup  func()
}

func (s *Service) openScanSource(ctx context.Context, input ScanInput) (ports.DataSource, scanTarget, error) {
	target := scanTarget{cleanup: func() {}}

	if uri := strings.TrimSpace(input.DatabaseURI); uri != "" {
		source, err := s.sources.OpenDatabase(ctx, uri)
		if err != nil {
			return nil, target, errs.Wrap(err, "open database")
		}
		target.mode = domaincompliance.ScanModeDatabase
		target.format = domaincompliance.FormatSQL
		return source, target, nil
	}

	if input.DataFile == nil {
		return nil, target, domaincompliance.ErrNoDataSource
	}

	format, err := domaincompliance.DetectInputFormat(input.DataFileName)
	if err != nil {
		return nil, target, err
	}

	path, err := s.spoolDataset(input.DataFileName, input.DataFile)
	if err != nil {
		return nil, target, err
	}
	remove := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn(ctx, "remove spooled dataset failed", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
		}
	}

	source, err := s.sources.OpenFile(ctx, input.DataFileName, path)
	if err != nil {
		remove()
		return nil, target, errs.Wrap(err, "open dataset")
	}

	target.mode = domaincompliance.ScanModeFile
	target.format = format
	target.fileName = input.DataFileName
	target.cleanup = remove
	return source, target, nil
}

// spoolDataset copies the upload to a private temp file named after its extension.
func (s *Service) spoolDataset(fileName string, data io.Reader) (string, error) {
	dir := s.options.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errs.Wrapf(err, "create temp dir %q", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("dataset-%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(fileName))))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", errs.Wrap(err, "create spooled dataset")
	}

	if _, err := io.Copy(file, data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", errs.Wrap(err, "write spooled dataset")
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", errs.Wrap(err, "close spooled dataset")
	}
	return path, nil
}
