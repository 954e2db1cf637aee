package risk

import (
	"reflect"
	"testing"
)

func sampleFacts() []Fact {
	return []Fact{
		{ViolationID: 1, RuleID: 10, ScanID: 1, TableName: "users", RiskValue: 5},
		{ViolationID: 2, RuleID: 10, ScanID: 1, TableName: "users", RiskValue: 5},
		{ViolationID: 3, RuleID: 11, ScanID: 1, TableName: "orders", RiskValue: 8},
		{ViolationID: 4, RuleID: 12, ScanID: 2, TableName: "accounts", RiskValue: 1},
		{ViolationID: 5, RuleID: 13, ScanID: 2, TableName: "accounts", RiskValue: 3},
		{ViolationID: 6, RuleID: 14, ScanID: 2, TableName: "payments", RiskValue: 8},
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleFacts())
	want := Summary{TotalViolations: 6, TotalRisk: 30, AverageRisk: 5, MaxRisk: 8, MinRisk: 1}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}

	if empty := Summarize(nil); empty != (Summary{}) {
		t.Fatalf("Summarize(nil) = %+v", empty)
	}
}

func TestSummarizeKeepsRawAverage(t *testing.T) {
	facts := []Fact{{RiskValue: 1}, {RiskValue: 1}, {RiskValue: 3}}
	got := Summarize(facts).AverageRisk
	if got != 5.0/3.0 {
		t.Fatalf("AverageRisk = %v, want %v", got, 5.0/3.0)
	}
	if Round2(got) != 1.67 {
		t.Fatalf("Round2(AverageRisk) = %v, want 1.67", Round2(got))
	}
}

func TestAverageJustBelowThresholdStaysInLowerBand(t *testing.T) {
	facts := make([]Fact, 0, 1000)
	for i := 0; i < 998; i++ {
		facts = append(facts, Fact{RiskValue: 3})
	}
	facts = append(facts, Fact{RiskValue: 1}, Fact{RiskValue: 1})

	summary := Summarize(facts)
	if summary.AverageRisk != 2.996 {
		t.Fatalf("AverageRisk = %v, want 2.996", summary.AverageRisk)
	}
	if got := ClassifyByAverageRisk(summary.AverageRisk); got != StatusLow {
		t.Fatalf("ClassifyByAverageRisk(%v) = %s, want LOW", summary.AverageRisk, got)
	}
	if Round2(summary.AverageRisk) != 3 {
		t.Fatalf("Round2(AverageRisk) = %v, want 3", Round2(summary.AverageRisk))
	}
}

func TestDistributionAndHighRisk(t *testing.T) {
	facts := sampleFacts()

	want := map[string]int{"1": 1, "3": 1, "5": 2, "8": 2}
	if got := Distribution(facts); !reflect.DeepEqual(got, want) {
		t.Fatalf("Distribution() = %v, want %v", got, want)
	}
	if got := HighRiskPercentage(facts); got != 33.33 {
		t.Fatalf("HighRiskPercentage() = %v, want 33.33", got)
	}
	if got := HighRiskPercentage(nil); got != 0 {
		t.Fatalf("HighRiskPercentage(nil) = %v", got)
	}
	if got := DistinctRules(facts); got != 5 {
		t.Fatalf("DistinctRules() = %d, want 5", got)
	}
}

func TestTopRankingsBreakTiesByKey(t *testing.T) {
	facts := sampleFacts()

	tables := TopTables(facts, 3)
	wantTables := []TableRisk{
		{TableName: "users", TotalRisk: 10},
		{TableName: "orders", TotalRisk: 8},
		{TableName: "payments", TotalRisk: 8},
	}
	if !reflect.DeepEqual(tables, wantTables) {
		t.Fatalf("TopTables() = %+v, want %+v", tables, wantTables)
	}

	rules := TopRules(facts, DefaultTopLimit)
	wantRules := []RuleRisk{
		{RuleID: 10, TotalRisk: 10},
		{RuleID: 11, TotalRisk: 8},
		{RuleID: 14, TotalRisk: 8},
		{RuleID: 13, TotalRisk: 3},
		{RuleID: 12, TotalRisk: 1},
	}
	if !reflect.DeepEqual(rules, wantRules) {
		t.Fatalf("TopRules() = %+v, want %+v", rules, wantRules)
	}

	if all := TopTables(facts, 0); len(all) != 4 {
		t.Fatalf("TopTables(limit=0) len = %d, want 4", len(all))
	}
}

func TestAggregatesAreIdempotent(t *testing.T) {
	facts := sampleFacts()

	if Summarize(facts) != Summarize(facts) {
		t.Fatalf("Summarize() differs between calls")
	}
	if !reflect.DeepEqual(TopTables(facts, 5), TopTables(facts, 5)) {
		t.Fatalf("TopTables() differs between calls")
	}
	if !reflect.DeepEqual(TopRules(facts, 5), TopRules(facts, 5)) {
		t.Fatalf("TopRules() differs between calls")
	}
	if !reflect.DeepEqual(Distribution(facts), Distribution(facts)) {
		t.Fatalf("Distribution() differs between calls")
	}
}
