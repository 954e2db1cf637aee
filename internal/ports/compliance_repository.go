package ports

import (
	"context"
	"time"

	"policyguard/internal/domain/compliance"
	"policyguard/internal/domain/risk"
)

type PolicyCreate struct {
	FileName      string
	ExtractedText string
	CreatedAt     time.Time
}

type Policy struct {
	PolicyID      uint64
	FileName      string
	ExtractedText string
	CreatedAt     time.Time
}

// StoredRule is a persisted rule together with its identity.
type StoredRule struct {
	RuleID   uint64
	PolicyID uint64
	Rule     compliance.Rule
}

type ScanRunCreate struct {
	ScanMode    compliance.ScanMode
	InputFormat compliance.InputFormat
	FileName    string
	TotalRules  int
	Status      compliance.ScanStatus
	ScannedAt   time.Time
}

// ScanRunFinish closes a run with its final counters.
type ScanRunFinish struct {
	TotalRules      int
	TotalViolations int
	Status          compliance.ScanStatus
	DurationSeconds float64
}

type ScanRun struct {
	ScanID          uint64
	ScanMode        compliance.ScanMode
	InputFormat     compliance.InputFormat
	FileName        string
	TotalRules      int
	TotalViolations int
	Status          compliance.ScanStatus
	DurationSeconds float64
	ScannedAt       time.Time
}

type ViolationCreate struct {
	RuleID            uint64
	ScanID            uint64
	TableName         string
	RecordID          string
	FieldName         string
	ActualValue       string
	ExpectedCondition string
	Explanation       string
	RiskValue         int
	CreatedAt         time.Time
}

type Violation struct {
	ViolationID       uint64
	RuleID            uint64
	ScanID            uint64
	TableName         string
	RecordID          string
	FieldName         string
	ActualValue       string
	ExpectedCondition string
	Explanation       string
	RiskValue         int
	CreatedAt         time.Time
}

// ViolationFilter narrows violation reads. A nil ScanID means every scan.
type ViolationFilter struct {
	ScanID *uint64
	Limit  int
}

type ComplianceReadRepository interface {
	ListRules(ctx context.Context) ([]StoredRule, error)
	GetScanRun(ctx context.Context, scanID uint64) (ScanRun, error)
	ListScanRuns(ctx context.Context, limit int) ([]ScanRun, error)
	ListViolations(ctx context.Context, filter ViolationFilter) ([]Violation, error)
	ListViolationFacts(ctx context.Context, filter ViolationFilter) ([]risk.Fact, error)
	GetViolation(ctx context.Context, violationID uint64) (Violation, error)
	GetSystemConfig(ctx context.Context) (compliance.SystemConfig, bool, error)
}

// ComplianceRepository stores policies, rules, scan runs and violations.
// Writes join the transaction carried by ctx when one is present.
type ComplianceRepository interface {
	ComplianceReadRepository
	CreatePolicy(ctx context.Context, input PolicyCreate) (Policy, error)
	CreateRules(ctx context.Context, policyID uint64, rules []compliance.Rule) ([]StoredRule, error)
	CreateScanRun(ctx context.Context, input ScanRunCreate) (ScanRun, error)
	FinishScanRun(ctx context.Context, scanID uint64, input ScanRunFinish) error
	CreateViolations(ctx context.Context, input []ViolationCreate) error
	SaveSystemConfig(ctx context.Context, cfg compliance.SystemConfig) error
}
