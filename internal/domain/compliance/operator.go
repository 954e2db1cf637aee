package compliance

import (
	"sort"
	"strings"
)

// Operator is one comparison of the closed predicate model.
type Operator string

const (
	OpAssign       Operator = "="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

var allowedOperators = map[Operator]struct{}{
	OpAssign:       {},
	OpEqual:        {},
	OpNotEqual:     {},
	OpLess:         {},
	OpGreater:      {},
	OpLessEqual:    {},
	OpGreaterEqual: {},
}

func ParseOperator(raw string) (Operator, bool) {
	op := Operator(strings.TrimSpace(raw))
	if _, ok := allowedOperators[op]; !ok {
		return "", false
	}
	return op, true
}

// AllowedOperators returns the operator set in a stable order for prompts.
func AllowedOperators() []string {
	out := make([]string, 0, len(allowedOperators))
	for op := range allowedOperators {
		out = append(out, string(op))
	}
	sort.Strings(out)
	return out
}

// SQL renders the operator for a query. "==" is not portable to Postgres.
func (o Operator) SQL() string {
	if o == OpEqual {
		return string(OpAssign)
	}
	return string(o)
}
