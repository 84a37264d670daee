package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketsync/internal/models"
	"marketsync/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Run registry -----------------------------------------------------------

func (s *Store) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	if run == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *Store) GetSyncRun(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) SaveSyncRunTx(ctx context.Context, tx *gorm.DB, run *models.SyncRun) error {
	if run == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(run).Error
}

func applyRunFilters(query *gorm.DB, params repository.ListRunsParams) *gorm.DB {
	if params.AccountScope != "" {
		cond, args := scopeMatch("account_scope", params.AccountScope)
		query = query.Where(cond, args...)
	}
	if params.ResourceType != "" {
		query = query.Where("resource_type = ?", params.ResourceType)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("created_at < ?", *params.Until)
	}
	return query
}

// scopeMatch matches both single-account runs and dual-account runs whose
// comma-joined scope contains the account.
func scopeMatch(column, account string) (string, []any) {
	cond := column + " = ? OR " + column + " LIKE ? OR " + column + " LIKE ? OR " + column + " LIKE ?"
	return "(" + cond + ")", []any{account, account + ",%", "%," + account, "%," + account + ",%"}
}

func (s *Store) ListSyncRuns(ctx context.Context, params repository.ListRunsParams) ([]models.SyncRun, error) {
	query := applyRunFilters(s.db.WithContext(ctx).Model(&models.SyncRun{}), params)
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var runs []models.SyncRun
	if err := query.Order("created_at desc").Limit(limit).Offset(params.Offset).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) CountSyncRuns(ctx context.Context, params repository.ListRunsParams) (int64, error) {
	var count int64
	err := applyRunFilters(s.db.WithContext(ctx).Model(&models.SyncRun{}), params).Count(&count).Error
	return count, err
}

func (s *Store) ListRunningRuns(ctx context.Context) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RunStatusRunning).
		Order("created_at asc").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) LastCompletedRun(ctx context.Context, accountScope, resourceType string) (*models.SyncRun, error) {
	cond, args := scopeMatch("account_scope", accountScope)
	var run models.SyncRun
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RunStatusCompleted).
		Where("resource_type = ?", resourceType).
		Where(cond, args...).
		Order("completed_at desc").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) RequestCancel(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", id).
		Update("cancel_requested", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrRunNotFound
	}
	return nil
}

func (s *Store) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	var requested bool
	err := s.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", id).
		Pluck("cancel_requested", &requested).Error
	return requested, err
}

// --- Progress ---------------------------------------------------------------

func (s *Store) SaveProgress(ctx context.Context, progress *models.SyncProgress) error {
	if progress == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sync_run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_page",
			"estimated_total_pages",
			"percent_complete",
			"updated_at",
		}),
	}).Create(progress).Error
}

func (s *Store) GetProgress(ctx context.Context, runID string) (*models.SyncProgress, error) {
	var progress models.SyncProgress
	err := s.db.WithContext(ctx).First(&progress, "sync_run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// --- Audit transitions ------------------------------------------------------

func (s *Store) AppendTransitionTx(ctx context.Context, tx *gorm.DB, transition *models.SyncTransition) error {
	if transition == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(transition).Error
}

func (s *Store) ListTransitions(ctx context.Context, runID string) ([]models.SyncTransition, error) {
	var transitions []models.SyncTransition
	err := s.db.WithContext(ctx).
		Where("sync_run_id = ?", runID).
		Order("id asc").
		Find(&transitions).Error
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

// --- Lease ------------------------------------------------------------------

// AcquireLease inserts the lease row; a conflict on the composite key means
// another run holds the scope and acquisition reports false.
func (s *Store) AcquireLease(ctx context.Context, lease *models.SyncLease) (bool, error) {
	if lease == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_scope"}, {Name: "resource_type"}},
		DoNothing: true,
	}).Create(lease)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetLease(ctx context.Context, accountScope, resourceType string) (*models.SyncLease, error) {
	var lease models.SyncLease
	err := s.db.WithContext(ctx).
		First(&lease, "account_scope = ? AND resource_type = ?", accountScope, resourceType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *Store) ReleaseLeasesTx(ctx context.Context, tx *gorm.DB, runID string) error {
	return tx.WithContext(ctx).Where("sync_run_id = ?", runID).Delete(&models.SyncLease{}).Error
}

// --- Retention --------------------------------------------------------------

// PurgeRunsBefore deletes terminal runs created before cutoff together with
// their transitions and progress. The newest completed run per
// (account_scope, resource_type) is always kept: it carries the incremental
// watermark.
func (s *Store) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		keep := tx.Model(&models.SyncRun{}).
			Select("MAX(completed_at)").
			Where("status = ?", models.RunStatusCompleted).
			Group("account_scope, resource_type")

		var ids []string
		if err := tx.Model(&models.SyncRun{}).
			Where("created_at < ?", cutoff).
			Where("status IN ?", []string{models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled}).
			Where("completed_at IS NULL OR completed_at NOT IN (?)", keep).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("sync_run_id IN ?", ids).Delete(&models.SyncTransition{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sync_run_id IN ?", ids).Delete(&models.SyncProgress{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.SyncRun{})
		purged = res.RowsAffected
		return res.Error
	})
	return purged, err
}

// --- Local records ----------------------------------------------------------

func (s *Store) FindProductsByRemoteIDs(ctx context.Context, accountScope string, remoteIDs []string) ([]models.Product, error) {
	if len(remoteIDs) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("account_scope = ?", accountScope).
		Where("remote_id IN ?", remoteIDs).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) FindOrdersByRemoteIDs(ctx context.Context, accountScope string, remoteIDs []string) ([]models.Order, error) {
	if len(remoteIDs) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("account_scope = ?", accountScope).
		Where("remote_id IN ?", remoteIDs).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
