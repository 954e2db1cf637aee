package compliance

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	domaincompliance "policyguard/internal/domain/compliance"
)

var (
	candidateSchemaOnce sync.Once
	candidateSchemaJSON string
)

// candidateSchema is the JSON Schema of one rule candidate.
func candidateSchema() string {
	candidateSchemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: false,
		}
		schema := reflector.Reflect(&domaincompliance.RuleCandidate{})
		schema.Version = ""
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			candidateSchemaJSON = "{}"
			return
		}
		candidateSchemaJSON = string(data)
	})
	return candidateSchemaJSON
}

func extractionPrompt(policyText string, schema domaincompliance.Schema) string {
	var b strings.Builder
	b.WriteString("You convert business compliance policies into database filter rules.\n\n")
	b.WriteString("Database schema. Use only these tables and columns:\n")
	b.WriteString(schema.JSON())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Allowed operators, use them exactly: %s\n\n", strings.Join(domaincompliance.AllowedOperators(), ", "))
	b.WriteString("Every array element must match this JSON Schema:\n")
	b.WriteString(candidateSchema())
	b.WriteString("\n\n")
	b.WriteString("Output rules:\n")
	b.WriteString("- Return only a JSON array of objects, nothing else.\n")
	b.WriteString("- No markdown, no code fences, no explanations.\n")
	b.WriteString("- Each object has exactly the keys table_name, field, operator and value.\n")
	b.WriteString("- value is a single number, string or boolean.\n")
	b.WriteString("- A rule describes the condition compliant rows satisfy.\n")
	b.WriteString("- Never invent tables or columns that are not in the schema.\n")
	b.WriteString("- If the policy cannot be expressed this way, return [].\n\n")
	b.WriteString("Policy text:\n")
	b.WriteString(policyText)
	b.WriteString("\n\nExample output:\n")
	b.WriteString(`[{"table_name": "users", "field": "age", "operator": ">", "value": 30}]`)
	b.WriteString("\n")
	return b.String()
}

func remediationPrompt(violation string) string {
	return fmt.Sprintf("Violation:\n%q\n\nGive only 2-3 short remediation steps as plain text, no markdown.", violation)
}

const remediationSystemPrompt = "You are a strict compliance assistant."

// FallbackRemediation is returned when no generated advice is available.
const FallbackRemediation = "1. Review the affected record.\n2. Correct the field to meet policy requirements.\n3. Re-run compliance scan."
