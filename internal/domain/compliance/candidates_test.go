package compliance

import (
	"errors"
	"testing"
)

var usersSchema = Schema{"users": {"id", "age"}}

func TestStripCodeFences(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: " [1] ", want: "[1]"},
		{name: "fence with tag", raw: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "fence without tag", raw: "```\n[]\n```", want: "[]"},
		{name: "fence inline", raw: "```[1,2]```", want: "[1,2]"},
		{name: "trailing prose", raw: "```json\n[]\n```\nHope this helps", want: "[]"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := StripCodeFences(testCase.raw); got != testCase.want {
				t.Fatalf("StripCodeFences() = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestParseCandidatesKeepsSchemaMembersOnly(t *testing.T) {
	raw := `[
		{"table_name":"users","field":"age","operator":">","value":30},
		{"table_name":"ghost","field":"x","operator":"=","value":1},
		{"table_name":"users","field":"salary","operator":">","value":10},
		{"table_name":"users","field":"age","operator":"LIKE","value":"a%"},
		{"table_name":"users","field":"age","operator":"<","value":null},
		"not an object"
	]`

	rules, err := ParseCandidates(raw, usersSchema, SeverityMedium)
	if err != nil {
		t.Fatalf("ParseCandidates() error = %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("ParseCandidates() len = %d, rules = %+v", len(rules), rules)
	}

	got := rules[0]
	if got.TableName != "users" || got.Field != "age" || got.Operator != OpGreater {
		t.Fatalf("rule = %+v", got)
	}
	if n, ok := got.Value.Number(); !ok || n != 30 {
		t.Fatalf("rule value = %v", got.Value)
	}
	if got.Severity != SeverityMedium {
		t.Fatalf("rule severity = %q", got.Severity)
	}

	for _, rule := range rules {
		if !usersSchema.HasColumn(rule.TableName, rule.Field) {
			t.Fatalf("rule outside schema: %+v", rule)
		}
		if _, ok := ParseOperator(string(rule.Operator)); !ok {
			t.Fatalf("rule operator outside allow-list: %+v", rule)
		}
	}
}

func TestParseCandidatesRejectsNonArray(t *testing.T) {
	for _, raw := range []string{`{"table_name":"users"}`, `not json`, ``} {
		if _, err := ParseCandidates(raw, usersSchema, SeverityMedium); !errors.Is(err, ErrExtractionParse) {
			t.Fatalf("ParseCandidates(%q) error = %v, want ErrExtractionParse", raw, err)
		}
	}
}

func TestParseCandidatesUsesProvidedSeverity(t *testing.T) {
	raw := "```json\n[{\"table_name\":\"users\",\"field\":\"age\",\"operator\":\"<=\",\"value\":\"65\",\"severity\":\"critical\"},{\"table_name\":\"users\",\"field\":\"id\",\"operator\":\"!=\",\"value\":false}]\n```"

	rules, err := ParseCandidates(raw, usersSchema, SeverityHigh)
	if err != nil {
		t.Fatalf("ParseCandidates() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("ParseCandidates() len = %d", len(rules))
	}
	if rules[0].Severity != SeverityCritical {
		t.Fatalf("rules[0].Severity = %q", rules[0].Severity)
	}
	if rules[1].Severity != SeverityHigh {
		t.Fatalf("rules[1].Severity = %q", rules[1].Severity)
	}
	if v, ok := rules[1].Value.Bool(); !ok || v {
		t.Fatalf("rules[1].Value = %v", rules[1].Value)
	}
}
