package compliance

import (
	"context"
	"errors"

	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/domain/risk"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

// History lists scan runs newest first. A non-positive limit uses the configured default.
func (s *Service) History(ctx context.Context, limit int) ([]ScanHistoryItem, error) {
	if err := s.checkRead(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.options.HistoryLimit
	}

	runs, err := s.repo.ListScanRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	items := make([]ScanHistoryItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, ScanHistoryItem{
			ScanID:          run.ScanID,
			ScanMode:        run.ScanMode,
			InputFormat:     run.InputFormat,
			FileName:        run.FileName,
			TotalRules:      run.TotalRules,
			TotalViolations: run.TotalViolations,
			Status:          run.Status,
			DurationSeconds: risk.Round2(run.DurationSeconds),
			ScannedAt:       run.ScannedAt,
		})
	}
	return items, nil
}

// ListViolations returns the latest violations, optionally for one scan.
func (s *Service) ListViolations(ctx context.Context, limit int, scanID *uint64) ([]ViolationItem, error) {
	if err := s.checkRead(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultViolationLimit
	}

	violations, err := s.repo.ListViolations(ctx, ports.ViolationFilter{ScanID: scanID, Limit: limit})
	if err != nil {
		return nil, err
	}

	items := make([]ViolationItem, 0, len(violations))
	for _, v := range violations {
		items = append(items, violationItem(v))
	}
	return items, nil
}

func (s *Service) RiskAnalysis(ctx context.Context, scanID *uint64) (RiskAnalysis, error) {
	facts, err := s.facts(ctx, scanID)
	if err != nil {
		return RiskAnalysis{}, err
	}

	summary := risk.Summarize(facts)
	return RiskAnalysis{
		Overview:           overviewFromSummary(summary),
		Distribution:       risk.Distribution(facts),
		HighRiskPercentage: risk.HighRiskPercentage(facts),
		TopRules:           risk.TopRules(facts, risk.DefaultTopLimit),
		Status:             risk.ClassifyByTotalRisk(summary.TotalRisk),
	}, nil
}

// Dashboard classifies by average risk, unlike RiskAnalysis and BuildReport.
// A nil scanID aggregates every scan.
func (s *Service) Dashboard(ctx context.Context, scanID *uint64) (Dashboard, error) {
	facts, err := s.facts(ctx, scanID)
	if err != nil {
		return Dashboard{}, err
	}

	summary := risk.Summarize(facts)
	dashboard := Dashboard{
		TriggeredRules:  risk.DistinctRules(facts),
		TotalViolations: summary.TotalViolations,
		TotalRisk:       summary.TotalRisk,
		AverageRisk:     risk.Round2(summary.AverageRisk),
		Status:          risk.ClassifyByAverageRisk(summary.AverageRisk),
	}
	if top := risk.TopTables(facts, 1); len(top) > 0 {
		table := top[0]
		dashboard.TopRiskyTable = &table
	}
	return dashboard, nil
}

// BuildReport returns ErrNoViolations when there is nothing to report.
func (s *Service) BuildReport(ctx context.Context, scanID *uint64) (Report, error) {
	facts, err := s.facts(ctx, scanID)
	if err != nil {
		return Report{}, err
	}
	if len(facts) == 0 {
		return Report{}, domaincompliance.ErrNoViolations
	}

	summary := risk.Summarize(facts)
	return Report{
		GeneratedAt: s.now().UTC(),
		Overview:    overviewFromSummary(summary),
		Status:      risk.ClassifyByTotalRisk(summary.TotalRisk),
		TopTables:   risk.TopTables(facts, risk.DefaultTopLimit),
		TopRules:    risk.TopRules(facts, risk.DefaultTopLimit),
	}, nil
}

func (s *Service) SystemStatus(ctx context.Context) (SystemStatus, error) {
	cfg, err := s.EnsureSystemConfig(ctx)
	if err != nil {
		return SystemStatus{}, err
	}

	return SystemStatus{
		AutoScanEnabled:      cfg.AutoScanEnabled,
		ScanIntervalMinutes:  cfg.ScanIntervalMinutes,
		LastScanID:           s.getCacheBestEffort(ctx, cacheKeyLastScanID),
		LastScanStatus:       s.getCacheBestEffort(ctx, cacheKeyLastScanStatus),
		SchedulerLastCycleAt: s.getCacheBestEffort(ctx, cacheKeySchedulerLastCycle),
		SchedulerLastStatus:  s.getCacheBestEffort(ctx, cacheKeySchedulerStatus),
		SchedulerNextCycleAt: s.getCacheBestEffort(ctx, cacheKeySchedulerNextCycle),
	}, nil
}

func (s *Service) facts(ctx context.Context, scanID *uint64) ([]risk.Fact, error) {
	if err := s.checkRead(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListViolationFacts(ctx, ports.ViolationFilter{ScanID: scanID})
}

func (s *Service) checkRead(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return s.checkRepo()
}

func violationItem(v ports.Violation) ViolationItem {
	return ViolationItem{
		ViolationID:       v.ViolationID,
		RuleID:            v.RuleID,
		ScanID:            v.ScanID,
		TableName:         v.TableName,
		RecordID:          v.RecordID,
		FieldName:         v.FieldName,
		ActualValue:       v.ActualValue,
		ExpectedCondition: v.ExpectedCondition,
		Explanation:       v.Explanation,
		RiskValue:         v.RiskValue,
		CreatedAt:         v.CreatedAt,
	}
}
