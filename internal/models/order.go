package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Order struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	RemoteID        string          `gorm:"type:text;uniqueIndex:uniq_orders_remote;not null;comment:marketplace order id" json:"remote_id"`
	AccountScope    string          `gorm:"type:text;uniqueIndex:uniq_orders_remote;not null" json:"account_scope"`
	Status          string          `gorm:"type:text;index;not null" json:"status"`
	BuyerEmail      string          `gorm:"type:text;not null;default:''" json:"buyer_email"`
	Total           decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total"`
	InternalNote    *string         `gorm:"type:text;comment:local-only, never overwritten by remote" json:"internal_note,omitempty"`
	Picked          bool            `gorm:"not null;default:false;comment:local-only warehouse flag" json:"picked"`
	PlacedAt        *time.Time      `json:"placed_at,omitempty"`
	SyncStatus      string          `gorm:"type:text;index;not null;default:never_synced" json:"sync_status"`
	LastSyncRunID   *string         `gorm:"type:text;index" json:"last_sync_run_id,omitempty"`
	RemoteUpdatedAt *time.Time      `json:"remote_updated_at,omitempty"`
	RawJSON         datatypes.JSON  `gorm:"type:jsonb" json:"-"`
	FetchedAt       *time.Time      `json:"fetched_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
