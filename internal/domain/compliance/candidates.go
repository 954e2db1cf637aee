package compliance

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// RuleCandidate documents the object shape requested from the generator.
type RuleCandidate struct {
	TableName string `json:"table_name" jsonschema:"description=Table name taken verbatim from the schema"`
	Field     string `json:"field" jsonschema:"description=Column of table_name taken verbatim from the schema"`
	Operator  string `json:"operator" jsonschema:"enum==,enum===,enum=!=,enum=<,enum=>,enum=<=,enum=>="`
	Value     any    `json:"value" jsonschema:"oneof_type=string;number;boolean"`
}

// StripCodeFences removes a Markdown code fence, with or without a language
// tag, around generated output.
func StripCodeFences(raw string) string {
	content := strings.TrimSpace(raw)
	if !strings.HasPrefix(content, "```") {
		return strings.Trim(content, "` \n\r\t")
	}

	content = strings.TrimPrefix(content, "```")
	if end := strings.Index(content, "```"); end >= 0 {
		content = content[:end]
	}

	if newline := strings.IndexByte(content, '\n'); newline >= 0 {
		tag := strings.TrimSpace(content[:newline])
		if tag != "" && !strings.ContainsAny(tag, "[{") {
			content = content[newline+1:]
		}
	} else if tag := strings.TrimSpace(content); tag != "" && !strings.ContainsAny(tag, "[{") {
		content = ""
	}

	return strings.Trim(content, "` \n\r\t")
}

// ParseCandidates cleans generated output and keeps only the candidates whose
// table, field and operator are members of the schema and operator allow-lists.
// Output that is not a JSON array yields ErrExtractionParse.
func ParseCandidates(raw string, schema Schema, fallback Severity) ([]Rule, error) {
	content := StripCodeFences(raw)
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: invalid json", ErrExtractionParse)
	}

	parsed := gjson.Parse(content)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: got %s", ErrExtractionParse, parsed.Type)
	}

	if _, ok := riskBySeverity[fallback]; !ok {
		fallback = DefaultSeverity
	}

	rules := make([]Rule, 0, 4)
	parsed.ForEach(func(_, item gjson.Result) bool {
		if rule, ok := validateCandidate(item, schema, fallback); ok {
			rules = append(rules, rule)
		}
		return true
	})
	return rules, nil
}

func validateCandidate(item gjson.Result, schema Schema, fallback Severity) (Rule, bool) {
	if !item.IsObject() {
		return Rule{}, false
	}

	table := item.Get("table_name")
	if table.Type != gjson.String || !schema.HasTable(table.Str) {
		return Rule{}, false
	}

	field := item.Get("field")
	if field.Type != gjson.String || !schema.HasColumn(table.Str, field.Str) {
		return Rule{}, false
	}

	operator := item.Get("operator")
	if operator.Type != gjson.String {
		return Rule{}, false
	}
	op, ok := ParseOperator(operator.Str)
	if !ok || string(op) != operator.Str {
		return Rule{}, false
	}

	value, ok := scalarFromResult(item.Get("value"))
	if !ok {
		return Rule{}, false
	}

	severity := fallback
	if raw := item.Get("severity"); raw.Type == gjson.String {
		if parsed, ok := ParseSeverity(raw.Str); ok {
			severity = parsed
		}
	}

	return Rule{
		TableName: table.Str,
		Field:     field.Str,
		Operator:  op,
		Value:     value,
		Severity:  severity,
	}, true
}

func scalarFromResult(result gjson.Result) (Scalar, bool) {
	switch result.Type {
	case gjson.Number:
		return NumberValue(result.Num), true
	case gjson.String:
		return StringValue(result.Str), true
	case gjson.True:
		return BoolValue(true), true
	case gjson.False:
		return BoolValue(false), true
	default:
		return Scalar{}, false
	}
}
