package models

import "time"

// SyncProgress is overwritten after every page; its UpdatedAt doubles as the
// liveness signal the stuck-run reaper checks.
type SyncProgress struct {
	SyncRunID           string    `gorm:"primaryKey;type:text" json:"sync_run_id"`
	CurrentPage         int       `gorm:"not null;default:0" json:"current_page"`
	EstimatedTotalPages int       `gorm:"not null;default:0" json:"estimated_total_pages"`
	PercentComplete     float64   `gorm:"not null;default:0" json:"percent_complete"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (SyncProgress) TableName() string {
	return "sync_progress"
}
