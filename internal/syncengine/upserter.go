package syncengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketsync/internal/models"
	"marketsync/internal/repository"
)

// Item is one resolved record awaiting persistence.
type Item struct {
	Remote   RemoteRecord
	Local    LocalView
	Decision Decision
}

// BatchOutcome reports what one committed batch did.
type BatchOutcome struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    int
	Errors    []models.RunError
}

func (o *BatchOutcome) add(other BatchOutcome) {
	o.Created += other.Created
	o.Updated += other.Updated
	o.Unchanged += other.Unchanged
	o.Failed += other.Failed
	o.Errors = append(o.Errors, other.Errors...)
}

// Upserter persists resolved records in fixed-size transactional batches.
// Each batch commits independently, so progress survives interruption; a
// failing item runs in a savepoint and is counted failed without poisoning
// the rest of its batch.
type Upserter struct {
	Store     repository.Store
	Adapter   Adapter
	BatchSize int
	Logger    *zap.Logger
}

// ApplyAll groups items into batches and commits them in order. onBatch is
// invoked after every commit with that batch's outcome so the caller can
// persist running totals incrementally; returning an error from onBatch stops
// further batches.
func (u *Upserter) ApplyAll(ctx context.Context, runID, accountScope string, items []Item, onBatch func(BatchOutcome) error) (BatchOutcome, error) {
	batchSize := u.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var total BatchOutcome
	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		outcome, err := u.applyBatch(ctx, runID, accountScope, items[start:end])
		if err != nil {
			return total, err
		}
		total.add(outcome)
		if u.Logger != nil {
			u.Logger.Info("batch committed",
				zap.String("sync_run_id", runID),
				zap.String("account_scope", accountScope),
				zap.Int("batch_size", end-start),
				zap.Int("created", outcome.Created),
				zap.Int("updated", outcome.Updated),
				zap.Int("unchanged", outcome.Unchanged),
				zap.Int("failed", outcome.Failed),
			)
		}
		if onBatch != nil {
			if err := onBatch(outcome); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// applyBatch commits one batch in a single transaction. Per-item apply steps
// run in nested savepoints: an item that fails rolls back alone while the
// surrounding transaction still commits every successful sibling.
func (u *Upserter) applyBatch(ctx context.Context, runID, accountScope string, batch []Item) (BatchOutcome, error) {
	var outcome BatchOutcome
	err := u.Store.InTx(ctx, func(tx *gorm.DB) error {
		for _, item := range batch {
			switch item.Decision.Action {
			case ActionUnchanged:
				outcome.Unchanged++
				continue
			case ActionManual:
				// Deferred to an operator, not an error. The flag write still
				// runs in a savepoint like any other apply.
			}
			applyErr := tx.Transaction(func(sp *gorm.DB) error {
				return u.Adapter.Apply(sp, runID, accountScope, item.Remote, item.Decision)
			})
			if applyErr != nil {
				outcome.Failed++
				outcome.Errors = append(outcome.Errors, models.RunError{
					Kind:     "apply_failed",
					Detail:   applyErr.Error(),
					Account:  accountScope,
					RemoteID: item.Remote.RemoteID,
				})
				continue
			}
			switch item.Decision.Action {
			case ActionCreate:
				outcome.Created++
			case ActionUpdate:
				outcome.Updated++
			case ActionManual:
				outcome.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		return BatchOutcome{}, fmt.Errorf("commit batch: %w", err)
	}
	return outcome, nil
}
