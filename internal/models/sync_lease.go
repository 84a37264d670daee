package models

import "time"

// SyncLease is the durable single-run lock. The composite primary key makes
// acquisition an insert that either succeeds or conflicts, so the invariant
// holds across process restarts and multiple workers.
type SyncLease struct {
	AccountScope string    `gorm:"primaryKey;type:text" json:"account_scope"`
	ResourceType string    `gorm:"primaryKey;type:text" json:"resource_type"`
	SyncRunID    string    `gorm:"type:text;not null;comment:run holding the lease" json:"sync_run_id"`
	AcquiredAt   time.Time `gorm:"not null" json:"acquired_at"`
}

func (SyncLease) TableName() string {
	return "sync_leases"
}
