package abuseguard

import (
	"time"

	"gorm.io/datatypes"
)

// Signal is one recorded use of a guarded action. Rate limits and cooldowns
// are both evaluated by counting recent signals, so the table doubles as an
// abuse audit trail.
type Signal struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;index:idx_signal_user_feature" json:"user_id"`
	Feature   string         `gorm:"column:feature;index:idx_signal_user_feature" json:"feature"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	CreatedAt time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (Signal) TableName() string {
	return "abuse_guard_signals"
}
