package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"marketsync/internal/models"
)

var ErrRunNotFound = errors.New("sync run not found")

// ListRunsParams filters registry queries for dashboards.
type ListRunsParams struct {
	AccountScope string
	ResourceType string
	Status       string
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
}

// Store is the persistence boundary of the sync engine. Only the batch
// upserter writes product/order state; everything else reads.
type Store interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Run registry.
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	GetSyncRun(ctx context.Context, id string) (*models.SyncRun, error)
	SaveSyncRunTx(ctx context.Context, tx *gorm.DB, run *models.SyncRun) error
	ListSyncRuns(ctx context.Context, params ListRunsParams) ([]models.SyncRun, error)
	CountSyncRuns(ctx context.Context, params ListRunsParams) (int64, error)
	ListRunningRuns(ctx context.Context) ([]models.SyncRun, error)
	// LastCompletedRun returns the newest completed run covering the account
	// scope; its completion time is the incremental watermark.
	LastCompletedRun(ctx context.Context, accountScope, resourceType string) (*models.SyncRun, error)
	RequestCancel(ctx context.Context, id string) error
	IsCancelRequested(ctx context.Context, id string) (bool, error)

	// Progress.
	SaveProgress(ctx context.Context, progress *models.SyncProgress) error
	GetProgress(ctx context.Context, runID string) (*models.SyncProgress, error)

	// Audit transitions (append-only).
	AppendTransitionTx(ctx context.Context, tx *gorm.DB, transition *models.SyncTransition) error
	ListTransitions(ctx context.Context, runID string) ([]models.SyncTransition, error)

	// Durable single-run lease.
	AcquireLease(ctx context.Context, lease *models.SyncLease) (bool, error)
	GetLease(ctx context.Context, accountScope, resourceType string) (*models.SyncLease, error)
	ReleaseLeasesTx(ctx context.Context, tx *gorm.DB, runID string) error

	// Retention: purge terminal runs older than cutoff, never the newest
	// completed run per (account_scope, resource_type).
	PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Local records.
	FindProductsByRemoteIDs(ctx context.Context, accountScope string, remoteIDs []string) ([]models.Product, error)
	FindOrdersByRemoteIDs(ctx context.Context, accountScope string, remoteIDs []string) ([]models.Order, error)
}
