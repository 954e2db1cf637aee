package compliance

import "strings"

type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"

	DefaultSeverity = SeverityMedium
)

const defaultRiskValue = 3

var riskBySeverity = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   3,
	SeverityHigh:     5,
	SeverityCritical: 8,
}

// RiskValue maps a severity label to its numeric risk. Unknown labels score 3.
func RiskValue(severity string) int {
	if value, ok := riskBySeverity[Severity(severity)]; ok {
		return value
	}
	return defaultRiskValue
}

// ParseSeverity accepts labels case-insensitively.
func ParseSeverity(raw string) (Severity, bool) {
	trimmed := strings.TrimSpace(raw)
	for severity := range riskBySeverity {
		if strings.EqualFold(string(severity), trimmed) {
			return severity, true
		}
	}
	return "", false
}

func (s Severity) RiskValue() int {
	return RiskValue(string(s))
}
