package riskconsole

import (
	"context"
	"errors"
	"strings"
	"testing"

	"policyguard/internal/domain/risk"
	"policyguard/internal/usecase/compliance"
)

type stubSource struct {
	violations      []compliance.ViolationItem
	adviceErr       error
	scanIDs         []*uint64
	dashboardScanID *uint64
}

func (s *stubSource) Dashboard(_ context.Context, scanID *uint64) (compliance.Dashboard, error) {
	s.dashboardScanID = scanID
	return compliance.Dashboard{
		TriggeredRules:  1,
		TotalViolations: 3,
		TotalRisk:       15,
		AverageRisk:     5,
		Status:          risk.StatusHigh,
		TopRiskyTable:   &risk.TableRisk{TableName: "users", TotalRisk: 15},
	}, nil
}

func (s *stubSource) RiskAnalysis(_ context.Context, scanID *uint64) (compliance.RiskAnalysis, error) {
	s.scanIDs = append(s.scanIDs, scanID)
	return compliance.RiskAnalysis{
		Distribution: map[string]int{"10": 1, "5": 3},
		TopRules:     []risk.RuleRisk{{RuleID: 4, TotalRisk: 15}},
		Status:       risk.StatusLow,
	}, nil
}

func (s *stubSource) ListViolations(context.Context, int, *uint64) ([]compliance.ViolationItem, error) {
	return s.violations, nil
}

func (s *stubSource) SuggestRemediation(_ context.Context, id uint64) (compliance.Remediation, error) {
	if s.adviceErr != nil {
		return compliance.Remediation{}, s.adviceErr
	}
	return compliance.Remediation{ViolationID: id, Advice: compliance.FallbackRemediation}, nil
}

func sampleViolations() []compliance.ViolationItem {
	return []compliance.ViolationItem{
		{ViolationID: 11, ScanID: 2, TableName: "users", FieldName: "age", RecordID: "2", ActualValue: "31", ExpectedCondition: "<= 30", RiskValue: 5},
		{ViolationID: 12, ScanID: 2, TableName: "users", FieldName: "age", RecordID: "3", ActualValue: "45", ExpectedCondition: "<= 30", RiskValue: 5},
	}
}

func TestSummaryAndViolationsRender(t *testing.T) {
	source := &stubSource{violations: sampleViolations()}
	model := NewRiskModel(context.Background(), source, Options{ScanID: 2}).(*riskModel)

	next, _ := model.Update(model.loadSummaryCmd()())
	next, _ = next.Update(model.loadViolationsCmd()())
	view := next.View()

	for _, want := range []string{"scope=scan 2", "Violations: 3  Rules triggered: 1", "Top table: users (risk 15)", "Distribution: 5:3 10:1", "Top rules: r4=15", `v11 scan=2 risk=5 users.age record=2 value="31" expected <= 30`} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if len(source.scanIDs) != 1 || source.scanIDs[0] == nil || *source.scanIDs[0] != 2 {
		t.Fatalf("RiskAnalysis scan ids = %v", source.scanIDs)
	}
	if source.dashboardScanID == nil || *source.dashboardScanID != 2 {
		t.Fatalf("Dashboard scan id = %v, want 2", source.dashboardScanID)
	}
}

func TestAdviceForStaleSelectionIsIgnored(t *testing.T) {
	model := &riskModel{ctx: context.Background(), violations: sampleViolations(), selectedIndex: 1}

	next, _ := model.Update(adviceLoadedMsg{violationID: 11, advice: compliance.Remediation{Advice: "old"}})
	if next.(*riskModel).hasAdvice {
		t.Fatalf("advice for a different violation should be ignored")
	}

	next, _ = next.Update(adviceLoadedMsg{violationID: 12, advice: compliance.Remediation{Advice: compliance.FallbackRemediation}})
	updated := next.(*riskModel)
	if !updated.hasAdvice {
		t.Fatalf("advice for the selected violation should be applied")
	}
	if !strings.Contains(updated.View(), "(fallback advice)") {
		t.Fatalf("view should mark fallback advice:\n%s", updated.View())
	}
}

func TestAdviceErrorKeepsConsoleUsable(t *testing.T) {
	source := &stubSource{violations: sampleViolations(), adviceErr: errors.New("generator down")}
	model := &riskModel{ctx: context.Background(), source: source, violations: sampleViolations()}

	cmd := model.loadAdviceCmd()
	if cmd == nil {
		t.Fatalf("loadAdviceCmd() = nil with a selection")
	}
	next, _ := model.Update(cmd())
	updated := next.(*riskModel)
	if updated.hasAdvice || !strings.Contains(updated.status, "generator down") {
		t.Fatalf("status = %q, hasAdvice = %v", updated.status, updated.hasAdvice)
	}
}

func TestViolationsShrinkClampsSelection(t *testing.T) {
	model := &riskModel{ctx: context.Background(), violations: sampleViolations(), selectedIndex: 1}

	next, _ := model.Update(violationsLoadedMsg{items: sampleViolations()[:1]})
	if got := next.(*riskModel).selectedIndex; got != 0 {
		t.Fatalf("selectedIndex = %d, want 0", got)
	}
	next, _ = next.Update(violationsLoadedMsg{})
	if got := next.(*riskModel).selectedIndex; got != 0 {
		t.Fatalf("selectedIndex = %d, want 0", got)
	}
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		total, selected, size int
		start, end            int
	}{
		{total: 3, selected: 2, size: 5, start: 0, end: 3},
		{total: 20, selected: 0, size: 5, start: 0, end: 5},
		{total: 20, selected: 10, size: 5, start: 8, end: 13},
		{total: 20, selected: 19, size: 5, start: 15, end: 20},
	}
	for _, tt := range tests {
		start, end := visibleWindow(tt.total, tt.selected, tt.size)
		if start != tt.start || end != tt.end {
			t.Fatalf("visibleWindow(%d,%d,%d) = %d,%d, want %d,%d", tt.total, tt.selected, tt.size, start, end, tt.start, tt.end)
		}
	}
}
