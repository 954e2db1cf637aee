package compliance

import (
	"context"
	"log/slog"
	"time"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

type evaluationMode int

const (
	// evaluateStrict aborts on the first failing rule.
	evaluateStrict evaluationMode = iota
	// evaluateBestEffort logs a failing rule and moves on.
	evaluateBestEffort
)

// evaluateRules runs every rule against source and turns each offending row
// into a violation of scanID.
func evaluateRules(
	ctx context.Context,
	source ports.DataSource,
	rules []ports.StoredRule,
	scanID uint64,
	at time.Time,
	mode evaluationMode,
) ([]ports.ViolationCreate, error) {
	violations := make([]ports.ViolationCreate, 0)
	for _, stored := range rules {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(err, "check context")
		}

		rows, err := source.FindViolations(ctx, stored.Rule)
		if err != nil {
			if mode == evaluateStrict {
				return nil, errs.Wrapf(err, "evaluate rule %d", stored.RuleID)
			}
			logging.Warn(ctx, "rule evaluation skipped",
				slog.Uint64("rule_id", stored.RuleID),
				slog.String("table", stored.Rule.TableName),
				slog.String("field", stored.Rule.Field),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}

		for _, row := range rows {
			violations = append(violations, violationFromRow(stored, scanID, row, at))
		}
	}
	return violations, nil
}

func violationFromRow(stored ports.StoredRule, scanID uint64, row ports.Row, at time.Time) ports.ViolationCreate {
	rule := stored.Rule

	actual := ""
	if value, ok := row.Value(rule.Field); ok {
		actual = ports.FormatValue(value)
	}

	return ports.ViolationCreate{
		RuleID:            stored.RuleID,
		ScanID:            scanID,
		TableName:         rule.TableName,
		RecordID:          row.Text(0),
		FieldName:         rule.Field,
		ActualValue:       actual,
		ExpectedCondition: rule.ExpectedCondition(),
		Explanation:       rule.Explain(actual),
		RiskValue:         rule.RiskValue(),
		CreatedAt:         at,
	}
}
