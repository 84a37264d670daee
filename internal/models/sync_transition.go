package models

import "time"

// SyncTransition is one append-only audit row per run status change.
type SyncTransition struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SyncRunID  string    `gorm:"type:text;index;not null" json:"sync_run_id"`
	FromStatus string    `gorm:"type:text;not null" json:"from_status"`
	ToStatus   string    `gorm:"type:text;not null" json:"to_status"`
	Detail     *string   `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"index;not null" json:"created_at"`
}

func (SyncTransition) TableName() string {
	return "sync_transitions"
}
