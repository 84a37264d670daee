package syncengine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketsync/internal/models"
	"marketsync/internal/repository"
)

// Reaper force-fails runs whose progress stopped moving, usually after a
// crash left a running row and a held lease behind. Without it a dead run
// blocks its (account_scope, resource_type) pair forever.
type Reaper struct {
	Store      repository.Store
	Logger     *zap.Logger
	StaleAfter time.Duration
}

// ReapStale scans running runs and force-fails every stale one, returning
// how many were reaped.
func (r *Reaper) ReapStale(ctx context.Context) (int, error) {
	runs, err := r.Store.ListRunningRuns(ctx)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for i := range runs {
		run := &runs[i]
		stale, err := r.isStale(ctx, run, nil)
		if err != nil {
			return reaped, err
		}
		if !stale {
			continue
		}
		if err := r.ForceFail(ctx, run, "no progress heartbeat, reaped"); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

// isStale reports whether a run has gone longer than StaleAfter without a
// progress update. A lease whose holder row is gone or already terminal is
// stale by definition.
func (r *Reaper) isStale(ctx context.Context, run *models.SyncRun, lease *models.SyncLease) (bool, error) {
	if run == nil {
		return true, nil
	}
	if models.IsTerminal(run.Status) {
		return true, nil
	}
	staleAfter := r.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	ref := run.CreatedAt
	if run.StartedAt != nil {
		ref = *run.StartedAt
	}
	if lease != nil && lease.AcquiredAt.After(ref) {
		ref = lease.AcquiredAt
	}
	progress, err := r.Store.GetProgress(ctx, run.ID)
	if err != nil {
		return false, err
	}
	if progress != nil && progress.UpdatedAt.After(ref) {
		ref = progress.UpdatedAt
	}
	return time.Since(ref) > staleAfter, nil
}

// ForceFail transitions a run to failed, records the reason in its error
// list, and releases its leases, all in one transaction.
func (r *Reaper) ForceFail(ctx context.Context, run *models.SyncRun, reason string) error {
	now := time.Now().UTC()
	from := run.Status
	errs := decodeRunErrors(run.ErrorsJSON)
	errs = append(errs, models.RunError{Kind: "reaped", Detail: reason})
	run.Status = models.RunStatusFailed
	run.ErrorCount++
	run.ErrorsJSON = encodeRunErrors(errs)
	run.CompletedAt = &now
	run.UpdatedAt = now
	err := r.Store.InTx(ctx, func(tx *gorm.DB) error {
		if err := r.Store.SaveSyncRunTx(ctx, tx, run); err != nil {
			return err
		}
		if err := r.Store.AppendTransitionTx(ctx, tx, &models.SyncTransition{
			SyncRunID:  run.ID,
			FromStatus: from,
			ToStatus:   models.RunStatusFailed,
			Detail:     &reason,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		return r.Store.ReleaseLeasesTx(ctx, tx, run.ID)
	})
	if err != nil {
		return err
	}
	if r.Logger != nil {
		r.Logger.Warn("stale sync run force-failed",
			zap.String("sync_run_id", run.ID),
			zap.String("account_scope", run.AccountScope),
			zap.String("resource_type", run.ResourceType),
			zap.String("reason", reason),
		)
	}
	return nil
}
