package compliance

import (
	"time"

	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/domain/risk"
)

type ScanHistoryItem struct {
	ScanID          uint64                       `json:"scan_id" yaml:"scan_id"`
	ScanMode        domaincompliance.ScanMode    `json:"scan_mode" yaml:"scan_mode"`
	InputFormat     domaincompliance.InputFormat `json:"input_format" yaml:"input_format"`
	FileName        string                       `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	TotalRules      int                          `json:"total_rules" yaml:"total_rules"`
	TotalViolations int                          `json:"total_violations" yaml:"total_violations"`
	Status          domaincompliance.ScanStatus  `json:"status" yaml:"status"`
	DurationSeconds float64                      `json:"duration_seconds" yaml:"duration_seconds"`
	ScannedAt       time.Time                    `json:"scanned_at" yaml:"scanned_at"`
}

type ViolationItem struct {
	ViolationID       uint64    `json:"violation_id" yaml:"violation_id"`
	RuleID            uint64    `json:"rule_id" yaml:"rule_id"`
	ScanID            uint64    `json:"scan_id" yaml:"scan_id"`
	TableName         string    `json:"table_name" yaml:"table_name"`
	RecordID          string    `json:"record_id" yaml:"record_id"`
	FieldName         string    `json:"field_name" yaml:"field_name"`
	ActualValue       string    `json:"actual_value" yaml:"actual_value"`
	ExpectedCondition string    `json:"expected_condition" yaml:"expected_condition"`
	Explanation       string    `json:"explanation" yaml:"explanation"`
	RiskValue         int       `json:"risk_value" yaml:"risk_value"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}

// RiskOverview mirrors risk.Summary for rendering.
type RiskOverview struct {
	TotalViolations int     `json:"total_violations" yaml:"total_violations"`
	TotalRisk       int     `json:"total_risk" yaml:"total_risk"`
	AverageRisk     float64 `json:"average_risk" yaml:"average_risk"`
	MaxRisk         int     `json:"max_risk" yaml:"max_risk"`
	MinRisk         int     `json:"min_risk" yaml:"min_risk"`
}

type RiskAnalysis struct {
	Overview           RiskOverview    `json:"overview" yaml:"overview"`
	Distribution       map[string]int  `json:"risk_distribution" yaml:"risk_distribution"`
	HighRiskPercentage float64         `json:"high_risk_percentage" yaml:"high_risk_percentage"`
	TopRules           []risk.RuleRisk `json:"top_rules" yaml:"top_rules"`
	Status             risk.Status     `json:"status" yaml:"status"`
}

type Dashboard struct {
	TriggeredRules  int             `json:"triggered_rules" yaml:"triggered_rules"`
	TotalViolations int             `json:"total_violations" yaml:"total_violations"`
	TotalRisk       int             `json:"total_risk" yaml:"total_risk"`
	AverageRisk     float64         `json:"average_risk" yaml:"average_risk"`
	Status          risk.Status     `json:"status" yaml:"status"`
	// TopRiskyTable is nil when there are no violations.
	TopRiskyTable   *risk.TableRisk `json:"top_risky_table" yaml:"top_risky_table"`
}

type Report struct {
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Overview    RiskOverview     `json:"overview" yaml:"overview"`
	Status      risk.Status      `json:"status" yaml:"status"`
	TopTables   []risk.TableRisk `json:"top_tables" yaml:"top_tables"`
	TopRules    []risk.RuleRisk  `json:"top_rules" yaml:"top_rules"`
}

// SystemStatus joins the persisted config with the last known runtime state.
type SystemStatus struct {
	AutoScanEnabled      bool   `json:"auto_scan_enabled" yaml:"auto_scan_enabled"`
	ScanIntervalMinutes  int    `json:"scan_interval_minutes" yaml:"scan_interval_minutes"`
	LastScanID           string `json:"last_scan_id,omitempty" yaml:"last_scan_id,omitempty"`
	LastScanStatus       string `json:"last_scan_status,omitempty" yaml:"last_scan_status,omitempty"`
	SchedulerLastCycleAt string `json:"scheduler_last_cycle_at,omitempty" yaml:"scheduler_last_cycle_at,omitempty"`
	SchedulerLastStatus  string `json:"scheduler_last_status,omitempty" yaml:"scheduler_last_status,omitempty"`
	SchedulerNextCycleAt string `json:"scheduler_next_cycle_at,omitempty" yaml:"scheduler_next_cycle_at,omitempty"`
}

func overviewFromSummary(summary risk.Summary) RiskOverview {
	return RiskOverview{
		TotalViolations: summary.TotalViolations,
		TotalRisk:       summary.TotalRisk,
		AverageRisk:     risk.Round2(summary.AverageRisk),
		MaxRisk:         summary.MaxRisk,
		MinRisk:         summary.MinRisk,
	}
}
