package datasource

import (
	"fmt"
	"strings"

	"policyguard/internal/domain/compliance"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
)

// violationQuery selects the rows of the rule's table that do not satisfy its
// predicate. Identifiers are quoted; the value is always a bound parameter.
func violationQuery(rule compliance.Rule, style placeholderStyle) (string, error) {
	if strings.TrimSpace(rule.TableName) == "" || strings.TrimSpace(rule.Field) == "" {
		return "", fmt.Errorf("rule is missing table or field")
	}
	op, ok := compliance.ParseOperator(string(rule.Operator))
	if !ok {
		return "", fmt.Errorf("operator %q is not allowed", rule.Operator)
	}

	placeholder := "?"
	if style == placeholderDollar {
		placeholder = "$1"
	}

	return fmt.Sprintf(
		"SELECT * FROM %s WHERE NOT (%s %s %s)",
		quoteIdent(rule.TableName),
		quoteIdent(rule.Field),
		op.SQL(),
		placeholder,
	), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
