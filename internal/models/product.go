package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LocalRecord sync statuses.
const (
	SyncStatusSynced      = "synced"
	SyncStatusPending     = "pending"
	SyncStatusConflict    = "conflict"
	SyncStatusNeverSynced = "never_synced"
)

type Product struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	RemoteID        string          `gorm:"type:text;uniqueIndex:uniq_products_remote;not null;comment:marketplace offer id" json:"remote_id"`
	AccountScope    string          `gorm:"type:text;uniqueIndex:uniq_products_remote;not null" json:"account_scope"`
	SKU             string          `gorm:"type:text;index;not null" json:"sku"`
	Title           string          `gorm:"type:text;not null" json:"title"`
	Price           decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"price"`
	StockQty        int             `gorm:"not null;default:0" json:"stock_qty"`
	Active          bool            `gorm:"not null;default:true" json:"active"`
	InternalNotes   *string         `gorm:"type:text;comment:local-only, never overwritten by remote" json:"internal_notes,omitempty"`
	SyncStatus      string          `gorm:"type:text;index;not null;default:never_synced" json:"sync_status"`
	LastSyncRunID   *string         `gorm:"type:text;index;comment:run that performed the last mutation" json:"last_sync_run_id,omitempty"`
	RemoteUpdatedAt *time.Time      `gorm:"comment:modification time reported by the marketplace" json:"remote_updated_at,omitempty"`
	RawJSON         datatypes.JSON  `gorm:"type:jsonb;comment:last fetched remote payload" json:"-"`
	FetchedAt       *time.Time      `json:"fetched_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
