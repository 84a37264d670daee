package cronrunner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"marketsync/internal/config"
	"marketsync/internal/repository"
	"marketsync/internal/syncengine"
)

// Jobs holds the scheduled maintenance work: periodic incremental syncs, the
// stuck-run reaper, and registry retention.
type Jobs struct {
	Orchestrator *syncengine.Orchestrator
	Store        repository.Store
	Logger       *zap.Logger
	Sync         config.SyncConfig
	Retention    time.Duration
}

func (j *Jobs) Register(r *Runner, specs config.CronConfig) error {
	if _, err := r.Add(specs.IncrementalSync, j.runIncrementalSyncs); err != nil {
		return err
	}
	if _, err := r.Add(specs.Reaper, j.reapStaleRuns); err != nil {
		return err
	}
	if _, err := r.Add(specs.Retention, j.purgeOldRuns); err != nil {
		return err
	}
	return nil
}

func (j *Jobs) runIncrementalSyncs(ctx context.Context) {
	mode := j.Sync.ScheduledMode
	if mode == "" {
		mode = "incremental"
	}
	for _, resource := range j.Sync.ScheduledResources {
		run, err := j.Orchestrator.Start(ctx, syncengine.StartOptions{
			ResourceType:  resource,
			AccountScopes: j.Sync.ScheduledAccounts,
			Mode:          mode,
		})
		if err != nil {
			// A run already in flight is expected when manual and scheduled
			// syncs overlap.
			if errors.Is(err, syncengine.ErrConcurrentRun) {
				if j.Logger != nil {
					j.Logger.Info("scheduled sync skipped, run in flight",
						zap.String("resource_type", resource))
				}
				continue
			}
			if j.Logger != nil {
				j.Logger.Warn("scheduled sync failed to start",
					zap.String("resource_type", resource),
					zap.Error(err))
			}
			continue
		}
		if j.Logger != nil {
			j.Logger.Info("scheduled sync started",
				zap.String("resource_type", resource),
				zap.String("sync_run_id", run.ID))
		}
	}
}

func (j *Jobs) reapStaleRuns(ctx context.Context) {
	reaped, err := j.Orchestrator.Reaper().ReapStale(ctx)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Warn("reaper tick failed", zap.Error(err))
		}
		return
	}
	if reaped > 0 && j.Logger != nil {
		j.Logger.Warn("stale sync runs reaped", zap.Int("count", reaped))
	}
}

func (j *Jobs) purgeOldRuns(ctx context.Context) {
	if j.Retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-j.Retention)
	purged, err := j.Store.PurgeRunsBefore(ctx, cutoff)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Warn("registry retention purge failed", zap.Error(err))
		}
		return
	}
	if purged > 0 && j.Logger != nil {
		j.Logger.Info("old sync runs purged",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff))
	}
}
