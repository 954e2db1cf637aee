package model

import "time"

type ScanRun struct {
	ScanID          uint64      `gorm:"column:scan_id;primaryKey;autoIncrement"`
	ScanMode        string      `gorm:"column:scan_mode;type:text;not null"`
	InputFormat     string      `gorm:"column:input_format;type:text"`
	FileName        string      `gorm:"column:file_name;type:text"`
	TotalRules      int         `gorm:"column:total_rules;not null"`
	TotalViolations int         `gorm:"column:total_violations;not null"`
	Status          string      `gorm:"column:status;type:text;not null;index"`
	DurationSeconds float64     `gorm:"column:duration_seconds;not null"`
	ScannedAt       time.Time   `gorm:"column:scanned_at;not null;index"`
	Violations      []Violation `gorm:"foreignKey:ScanID;references:ScanID;constraint:OnDelete:CASCADE"`
}

func (ScanRun) TableName() string {
	return "scan_runs"
}
