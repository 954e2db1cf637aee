package model

import "time"

type Violation struct {
	ViolationID       uint64    `gorm:"column:violation_id;primaryKey;autoIncrement"`
	RuleID            uint64    `gorm:"column:rule_id;not null;index"`
	ScanID            uint64    `gorm:"column:scan_id;not null;index:idx_scan_risk,priority:1"`
	Table             string    `gorm:"column:table_name;type:text;not null;index"`
	RecordID          string    `gorm:"column:record_id;type:text;not null;index"`
	FieldName         string    `gorm:"column:field_name;type:text;not null"`
	ActualValue       string    `gorm:"column:actual_value;type:text"`
	ExpectedCondition string    `gorm:"column:expected_condition;type:text"`
	Explanation       string    `gorm:"column:explanation;type:text"`
	RiskValue         int       `gorm:"column:risk_value;not null;index;index:idx_scan_risk,priority:2"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;index"`
}

func (Violation) TableName() string {
	return "violations"
}
