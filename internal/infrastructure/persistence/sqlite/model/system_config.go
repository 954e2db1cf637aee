package model

import "time"

// SystemConfig is a single-row table; the row always has ID 1.
type SystemConfig struct {
	ID                  uint      `gorm:"column:id;primaryKey"`
	AutoScanEnabled     bool      `gorm:"column:auto_scan_enabled;not null"`
	ScanIntervalMinutes int       `gorm:"column:scan_interval_minutes;not null"`
	UpdatedAt           time.Time `gorm:"column:updated_at;not null"`
}

func (SystemConfig) TableName() string {
	return "system_config"
}
