package compliance

import "testing"

func TestRiskValue(t *testing.T) {
	testCases := []struct {
		severity string
		want     int
	}{
		{severity: "Low", want: 1},
		{severity: "Medium", want: 3},
		{severity: "High", want: 5},
		{severity: "Critical", want: 8},
		{severity: "", want: 3},
		{severity: "high", want: 3},
		{severity: "Severe", want: 3},
	}

	for _, testCase := range testCases {
		t.Run(testCase.severity, func(t *testing.T) {
			if got := RiskValue(testCase.severity); got != testCase.want {
				t.Fatalf("RiskValue(%q) = %d, want %d", testCase.severity, got, testCase.want)
			}
		})
	}
}

func TestParseSeverityIgnoresCase(t *testing.T) {
	got, ok := ParseSeverity(" critical ")
	if !ok || got != SeverityCritical {
		t.Fatalf("ParseSeverity() = %q, %v", got, ok)
	}
	if _, ok := ParseSeverity("urgent"); ok {
		t.Fatalf("ParseSeverity(urgent) expected ok=false")
	}
}
