package risk

import (
	"math"
	"sort"
	"strconv"
)

// HighRiskThreshold is the risk value from which a violation counts as high risk.
const HighRiskThreshold = 7

// DefaultTopLimit bounds rankings in risk and report views.
const DefaultTopLimit = 5

// Fact is the projection of a violation the aggregations need.
type Fact struct {
	ViolationID uint64
	RuleID      uint64
	ScanID      uint64
	TableName   string
	RiskValue   int
}

type Summary struct {
	TotalViolations int
	TotalRisk       int
	// AverageRisk is unrounded so classification sees the exact value.
	AverageRisk     float64
	MaxRisk         int
	MinRisk         int
}

// Summarize computes count, sum, average, max and min. Empty input yields zeros.
func Summarize(facts []Fact) Summary {
	if len(facts) == 0 {
		return Summary{}
	}

	summary := Summary{
		TotalViolations: len(facts),
		MaxRisk:         facts[0].RiskValue,
		MinRisk:         facts[0].RiskValue,
	}
	for _, fact := range facts {
		summary.TotalRisk += fact.RiskValue
		if fact.RiskValue > summary.MaxRisk {
			summary.MaxRisk = fact.RiskValue
		}
		if fact.RiskValue < summary.MinRisk {
			summary.MinRisk = fact.RiskValue
		}
	}
	summary.AverageRisk = float64(summary.TotalRisk) / float64(summary.TotalViolations)
	return summary
}

// Distribution counts violations per risk value, keyed by the value as text.
func Distribution(facts []Fact) map[string]int {
	out := make(map[string]int)
	for _, fact := range facts {
		out[strconv.Itoa(fact.RiskValue)]++
	}
	return out
}

// HighRiskPercentage is the share of facts at or above HighRiskThreshold, in percent.
func HighRiskPercentage(facts []Fact) float64 {
	if len(facts) == 0 {
		return 0
	}
	high := 0
	for _, fact := range facts {
		if fact.RiskValue >= HighRiskThreshold {
			high++
		}
	}
	return Round2(float64(high) / float64(len(facts)) * 100)
}

// DistinctRules counts the rules that produced at least one violation.
func DistinctRules(facts []Fact) int {
	seen := make(map[uint64]struct{}, len(facts))
	for _, fact := range facts {
		seen[fact.RuleID] = struct{}{}
	}
	return len(seen)
}

type TableRisk struct {
	TableName string `json:"table_name" yaml:"table_name"`
	TotalRisk int    `json:"total_risk" yaml:"total_risk"`
}

type RuleRisk struct {
	RuleID    uint64 `json:"rule_id" yaml:"rule_id"`
	TotalRisk int    `json:"total_risk" yaml:"total_risk"`
}

// TopTables ranks tables by summed risk, descending, ties by name ascending.
// A non-positive limit returns every table.
func TopTables(facts []Fact, limit int) []TableRisk {
	sums := make(map[string]int)
	for _, fact := range facts {
		sums[fact.TableName] += fact.RiskValue
	}

	out := make([]TableRisk, 0, len(sums))
	for table, total := range sums {
		out = append(out, TableRisk{TableName: table, TotalRisk: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRisk != out[j].TotalRisk {
			return out[i].TotalRisk > out[j].TotalRisk
		}
		return out[i].TableName < out[j].TableName
	})
	return truncate(out, limit)
}

// TopRules ranks rules by summed risk, descending, ties by id ascending.
func TopRules(facts []Fact, limit int) []RuleRisk {
	sums := make(map[uint64]int)
	for _, fact := range facts {
		sums[fact.RuleID] += fact.RiskValue
	}

	out := make([]RuleRisk, 0, len(sums))
	for ruleID, total := range sums {
		out = append(out, RuleRisk{RuleID: ruleID, TotalRisk: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRisk != out[j].TotalRisk {
			return out[i].TotalRisk > out[j].TotalRisk
		}
		return out[i].RuleID < out[j].RuleID
	})
	return truncate(out, limit)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
