package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRun statuses.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Sync modes.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
	ModeSelective   = "selective"
)

// IsTerminal reports whether a status is one of the final states.
func IsTerminal(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

type SyncRun struct {
	ID               string         `gorm:"primaryKey;type:text" json:"id"`
	AccountScope     string         `gorm:"type:text;index:idx_sync_runs_scope;not null;comment:seller account scope(s), comma-joined" json:"account_scope"`
	ResourceType     string         `gorm:"type:text;index:idx_sync_runs_scope;not null;comment:synced resource kind" json:"resource_type"`
	Mode             string         `gorm:"type:text;not null;comment:full|incremental|selective" json:"mode"`
	Status           string         `gorm:"type:text;index;not null;comment:run lifecycle status" json:"status"`
	ConflictStrategy string         `gorm:"type:text;not null;comment:conflict resolution strategy" json:"conflict_strategy"`
	MaxPages         int            `gorm:"not null;default:0;comment:page cap, 0 = unlimited" json:"max_pages"`
	Fetched          int            `gorm:"not null;default:0" json:"fetched"`
	Created          int            `gorm:"not null;default:0" json:"created"`
	Updated          int            `gorm:"not null;default:0" json:"updated"`
	Unchanged        int            `gorm:"not null;default:0" json:"unchanged"`
	Failed           int            `gorm:"not null;default:0" json:"failed"`
	ErrorCount       int            `gorm:"not null;default:0;comment:total errors, including truncated ones" json:"error_count"`
	ErrorsJSON       datatypes.JSON `gorm:"type:jsonb;comment:bounded list of first errors" json:"errors"`
	CancelRequested  bool           `gorm:"not null;default:false;comment:observed at the next page boundary" json:"cancel_requested"`
	StartedAt        *time.Time     `json:"started_at"`
	CompletedAt      *time.Time     `gorm:"comment:set iff status is terminal" json:"completed_at"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// RunError is one entry of a run's bounded error list.
type RunError struct {
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
	Account  string `json:"account,omitempty"`
	Page     int    `json:"page,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
}
