package compliance

import "fmt"

// Rule is a single validated predicate over one table column.
type Rule struct {
	TableName string
	Field     string
	Operator  Operator
	Value     Scalar
	Severity  Severity
}

func (r Rule) Description() string {
	return fmt.Sprintf("%s %s %s", r.Field, r.Operator, r.Value)
}

// ExpectedCondition is the condition a compliant row satisfies, e.g. "> 30".
func (r Rule) ExpectedCondition() string {
	return fmt.Sprintf("%s %s", r.Operator, r.Value)
}

func (r Rule) RiskValue() int {
	return RiskValue(string(r.Severity))
}

// Explain renders why a row with the given actual value failed the rule.
func (r Rule) Explain(actual string) string {
	return fmt.Sprintf("%s.%s is %q, expected %s", r.TableName, r.Field, actual, r.ExpectedCondition())
}

// Condition is the persisted predicate payload of a rule.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Scalar   `json:"value"`
}

func (r Rule) Condition() Condition {
	return Condition{
		Field:    r.Field,
		Operator: r.Operator,
		Value:    r.Value,
	}
}

// RuleFromCondition rebuilds a rule from its stored parts, rejecting anything
// outside the closed predicate model.
func RuleFromCondition(table string, severity string, cond Condition) (Rule, error) {
	if table == "" || cond.Field == "" {
		return Rule{}, fmt.Errorf("rule on %q is missing table or field", table)
	}
	op, ok := ParseOperator(string(cond.Operator))
	if !ok {
		return Rule{}, fmt.Errorf("rule on %q has unsupported operator %q", table, cond.Operator)
	}
	if !cond.Value.IsValid() {
		return Rule{}, fmt.Errorf("rule on %q has no value", table)
	}
	sev, ok := ParseSeverity(severity)
	if !ok {
		sev = Severity(severity)
	}
	return Rule{
		TableName: table,
		Field:     cond.Field,
		Operator:  op,
		Value:     cond.Value,
		Severity:  sev,
	}, nil
}
