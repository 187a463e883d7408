package alert

import (
	"time"

	"gorm.io/datatypes"
)

// Alert is an operational alert row. DedupeKey makes repeated raises of the
// same condition collapse into one open alert instead of a page storm.
type Alert struct {
	ID         string         `gorm:"column:id;primaryKey" json:"id"`
	DedupeKey  string         `gorm:"column:dedupe_key;uniqueIndex" json:"dedupe_key"`
	Level      string         `gorm:"column:level" json:"level"`
	Title      string         `gorm:"column:title" json:"title"`
	Message    string         `gorm:"column:message" json:"message"`
	Metadata   datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	ResolvedAt *time.Time     `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

// Alert levels.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)
