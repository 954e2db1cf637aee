package model

import (
	"time"

	"gorm.io/datatypes"
)

// Rule stores one predicate; Condition holds {"field","operator","value"}.
type Rule struct {
	RuleID      uint64         `gorm:"column:rule_id;primaryKey;autoIncrement"`
	PolicyID    uint64         `gorm:"column:policy_id;not null;index"`
	Table       string         `gorm:"column:table_name;type:text;not null"`
	Condition   datatypes.JSON `gorm:"column:condition_json;not null"`
	Description string         `gorm:"column:description;type:text;not null"`
	Severity    string         `gorm:"column:severity;type:text;not null;default:Medium"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	Violations  []Violation    `gorm:"foreignKey:RuleID;references:RuleID;constraint:OnDelete:CASCADE"`
}

func (Rule) TableName() string {
	return "rules"
}
