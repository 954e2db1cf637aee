package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/domain/compliance"
	"policyguard/internal/domain/risk"
	"policyguard/internal/errs"
	"policyguard/internal/infrastructure/persistence/sqlite/model"
	"policyguard/internal/ports"
)

const (
	systemConfigRowID   = 1
	violationBatchSize  = 200
	defaultHistoryLimit = 50
)

type ComplianceRepository struct {
	db *gorm.DB
}

var _ ports.ComplianceRepository = (*ComplianceRepository)(nil)

func NewComplianceRepository(db *gorm.DB) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

func (r *ComplianceRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ComplianceRepository) CreatePolicy(ctx context.Context, input ports.PolicyCreate) (ports.Policy, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Policy{}, err
	}

	row := model.Policy{
		FileName:      input.FileName,
		ExtractedText: input.ExtractedText,
		CreatedAt:     normalizeTime(input.CreatedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Policy{}, errs.Wrap(err, "insert policy")
	}

	return ports.Policy{
		PolicyID:      row.PolicyID,
		FileName:      row.FileName,
		ExtractedText: row.ExtractedText,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (r *ComplianceRepository) CreateRules(ctx context.Context, policyID uint64, rules []compliance.Rule) ([]ports.StoredRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		condition, err := json.Marshal(rule.Condition())
		if err != nil {
			return nil, errs.Wrapf(err, "encode condition of rule on %s.%s", rule.TableName, rule.Field)
		}
		rows = append(rows, model.Rule{
			PolicyID:    policyID,
			Table:       rule.TableName,
			Condition:   datatypes.JSON(condition),
			Description: rule.Description(),
			Severity:    string(rule.Severity),
			CreatedAt:   now,
		})
	}

	if err := db.Create(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "insert rules")
	}

	stored := make([]ports.StoredRule, 0, len(rows))
	for i, row := range rows {
		stored = append(stored, ports.StoredRule{
			RuleID:   row.RuleID,
			PolicyID: row.PolicyID,
			Rule:     rules[i],
		})
	}
	return stored, nil
}

// ListRules returns every stored rule in id order. Rows whose condition no
// longer decodes are skipped with a warning.
func (r *ComplianceRepository) ListRules(ctx context.Context) ([]ports.StoredRule, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Rule
	if err := db.Order("rule_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query rules")
	}

	items := make([]ports.StoredRule, 0, len(rows))
	for _, row := range rows {
		item, err := mapRule(row)
		if err != nil {
			logging.Warn(
				logging.WithAttrs(ctx, slog.String("component", "repository.compliance")),
				"skip undecodable rule",
				slog.Uint64("rule_id", row.RuleID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *ComplianceRepository) CreateScanRun(ctx context.Context, input ports.ScanRunCreate) (ports.ScanRun, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ScanRun{}, err
	}

	row := model.ScanRun{
		ScanMode:    string(input.ScanMode),
		InputFormat: string(input.InputFormat),
		FileName:    input.FileName,
		TotalRules:  input.TotalRules,
		Status:      string(input.Status),
		ScannedAt:   normalizeTime(input.ScannedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.ScanRun{}, errs.Wrap(err, "insert scan run")
	}
	return mapScanRun(row), nil
}

func (r *ComplianceRepository) FinishScanRun(ctx context.Context, scanID uint64, input ports.ScanRunFinish) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.ScanRun{}).
		Where("scan_id = ?", scanID).
		Updates(map[string]any{
			"total_rules":      input.TotalRules,
			"total_violations": input.TotalViolations,
			"status":           string(input.Status),
			"duration_seconds": input.DurationSeconds,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update scan run")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(compliance.ErrNotFound, "scan run %d", scanID)
	}
	return nil
}

func (r *ComplianceRepository) GetScanRun(ctx context.Context, scanID uint64) (ports.ScanRun, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ScanRun{}, err
	}

	var row model.ScanRun
	if err := db.Where("scan_id = ?", scanID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ScanRun{}, errs.Wrapf(compliance.ErrNotFound, "scan run %d", scanID)
		}
		return ports.ScanRun{}, errs.Wrap(err, "query scan run")
	}
	return mapScanRun(row), nil
}

// ListScanRuns returns the newest runs first.
func (r *ComplianceRepository) ListScanRuns(ctx context.Context, limit int) ([]ports.ScanRun, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var rows []model.ScanRun
	if err := db.
		Order("scanned_at desc").
		Order("scan_id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query scan runs")
	}

	items := make([]ports.ScanRun, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapScanRun(row))
	}
	return items, nil
}

func (r *ComplianceRepository) CreateViolations(ctx context.Context, input []ports.ViolationCreate) error {
	if len(input) == 0 {
		return nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	rows := make([]model.Violation, 0, len(input))
	for _, item := range input {
		rows = append(rows, model.Violation{
			RuleID:            item.RuleID,
			ScanID:            item.ScanID,
			Table:             item.TableName,
			RecordID:          item.RecordID,
			FieldName:         item.FieldName,
			ActualValue:       item.ActualValue,
			ExpectedCondition: item.ExpectedCondition,
			Explanation:       item.Explanation,
			RiskValue:         item.RiskValue,
			CreatedAt:         normalizeTime(item.CreatedAt),
		})
	}

	if err := db.CreateInBatches(&rows, violationBatchSize).Error; err != nil {
		return errs.Wrap(err, "insert violations")
	}
	return nil
}

// ListViolations returns violations newest first.
func (r *ComplianceRepository) ListViolations(ctx context.Context, filter ports.ViolationFilter) ([]ports.Violation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := violationQuery(db, filter).Order("created_at desc").Order("violation_id desc")
	var rows []model.Violation
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query violations")
	}

	items := make([]ports.Violation, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapViolation(row))
	}
	return items, nil
}

func (r *ComplianceRepository) ListViolationFacts(ctx context.Context, filter ports.ViolationFilter) ([]risk.Fact, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ViolationID uint64
		RuleID      uint64
		ScanID      uint64
		TableName   string
		RiskValue   int
	}
	if err := violationQuery(db, filter).
		Select("violation_id", "rule_id", "scan_id", "table_name", "risk_value").
		Order("violation_id asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query violation facts")
	}

	facts := make([]risk.Fact, 0, len(rows))
	for _, row := range rows {
		facts = append(facts, risk.Fact{
			ViolationID: row.ViolationID,
			RuleID:      row.RuleID,
			ScanID:      row.ScanID,
			TableName:   row.TableName,
			RiskValue:   row.RiskValue,
		})
	}
	return facts, nil
}

func (r *ComplianceRepository) GetViolation(ctx context.Context, violationID uint64) (ports.Violation, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Violation{}, err
	}

	var row model.Violation
	if err := db.Where("violation_id = ?", violationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Violation{}, errs.Wrapf(compliance.ErrNotFound, "violation %d", violationID)
		}
		return ports.Violation{}, errs.Wrap(err, "query violation")
	}
	return mapViolation(row), nil
}

func (r *ComplianceRepository) GetSystemConfig(ctx context.Context) (compliance.SystemConfig, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return compliance.SystemConfig{}, false, err
	}

	var row model.SystemConfig
	if err := db.Where("id = ?", systemConfigRowID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return compliance.SystemConfig{}, false, nil
		}
		return compliance.SystemConfig{}, false, errs.Wrap(err, "query system config")
	}

	return compliance.SystemConfig{
		AutoScanEnabled:     row.AutoScanEnabled,
		ScanIntervalMinutes: row.ScanIntervalMinutes,
	}, true, nil
}

func (r *ComplianceRepository) SaveSystemConfig(ctx context.Context, cfg compliance.SystemConfig) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.SystemConfig{
		ID:                  systemConfigRowID,
		AutoScanEnabled:     cfg.AutoScanEnabled,
		ScanIntervalMinutes: cfg.ScanIntervalMinutes,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"auto_scan_enabled":     row.AutoScanEnabled,
			"scan_interval_minutes": row.ScanIntervalMinutes,
			"updated_at":            row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert system config")
	}
	return nil
}

func violationQuery(db *gorm.DB, filter ports.ViolationFilter) *gorm.DB {
	query := db.Model(&model.Violation{})
	if filter.ScanID != nil {
		query = query.Where("scan_id = ?", *filter.ScanID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

func mapRule(row model.Rule) (ports.StoredRule, error) {
	var condition compliance.Condition
	if err := json.Unmarshal(row.Condition, &condition); err != nil {
		return ports.StoredRule{}, errs.Wrap(err, "decode rule condition")
	}
	rule, err := compliance.RuleFromCondition(row.Table, row.Severity, condition)
	if err != nil {
		return ports.StoredRule{}, err
	}
	return ports.StoredRule{
		RuleID:   row.RuleID,
		PolicyID: row.PolicyID,
		Rule:     rule,
	}, nil
}

func mapScanRun(row model.ScanRun) ports.ScanRun {
	return ports.ScanRun{
		ScanID:          row.ScanID,
		ScanMode:        compliance.ScanMode(row.ScanMode),
		InputFormat:     compliance.InputFormat(row.InputFormat),
		FileName:        row.FileName,
		TotalRules:      row.TotalRules,
		TotalViolations: row.TotalViolations,
		Status:          compliance.ScanStatus(row.Status),
		DurationSeconds: row.DurationSeconds,
		ScannedAt:       row.ScannedAt,
	}
}

func mapViolation(row model.Violation) ports.Violation {
	return ports.Violation{
		ViolationID:       row.ViolationID,
		RuleID:            row.RuleID,
		ScanID:            row.ScanID,
		TableName:         row.Table,
		RecordID:          row.RecordID,
		FieldName:         row.FieldName,
		ActualValue:       row.ActualValue,
		ExpectedCondition: row.ExpectedCondition,
		Explanation:       row.Explanation,
		RiskValue:         row.RiskValue,
		CreatedAt:         row.CreatedAt,
	}
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
