package datasource

import (
	"testing"

	"policyguard/internal/domain/compliance"
)

func TestViolationQuery(t *testing.T) {
	testCases := []struct {
		name  string
		rule  compliance.Rule
		style placeholderStyle
		want  string
	}{
		{
			name:  "sqlite",
			rule:  compliance.Rule{TableName: "users", Field: "age", Operator: compliance.OpGreater, Value: compliance.NumberValue(30)},
			style: placeholderQuestion,
			want:  `SELECT * FROM "users" WHERE NOT ("age" > ?)`,
		},
		{
			name:  "postgres renders double equals",
			rule:  compliance.Rule{TableName: "users", Field: "country", Operator: compliance.OpEqual, Value: compliance.StringValue("DE")},
			style: placeholderDollar,
			want:  `SELECT * FROM "users" WHERE NOT ("country" = $1)`,
		},
		{
			name:  "quotes embedded quotes",
			rule:  compliance.Rule{TableName: `we"ird`, Field: `a"; DROP TABLE users; --`, Operator: compliance.OpNotEqual, Value: compliance.BoolValue(true)},
			style: placeholderQuestion,
			want:  `SELECT * FROM "we""ird" WHERE NOT ("a""; DROP TABLE users; --" != ?)`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := violationQuery(testCase.rule, testCase.style)
			if err != nil {
				t.Fatalf("violationQuery() error = %v", err)
			}
			if got != testCase.want {
				t.Fatalf("violationQuery() = %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestViolationQueryRejectsUnknownOperator(t *testing.T) {
	rule := compliance.Rule{TableName: "users", Field: "age", Operator: "LIKE", Value: compliance.StringValue("a")}
	if _, err := violationQuery(rule, placeholderQuestion); err == nil {
		t.Fatalf("violationQuery() expected error")
	}
}
