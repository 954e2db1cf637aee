package model

import "time"

type Policy struct {
	PolicyID      uint64    `gorm:"column:policy_id;primaryKey;autoIncrement"`
	FileName      string    `gorm:"column:file_name;type:text;not null"`
	ExtractedText string    `gorm:"column:extracted_text;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	Rules         []Rule    `gorm:"foreignKey:PolicyID;references:PolicyID;constraint:OnDelete:CASCADE"`
}

func (Policy) TableName() string {
	return "policies"
}
