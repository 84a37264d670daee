package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"marketsync/internal/client/marketplace"
	"marketsync/internal/config"
	"marketsync/internal/models"
	"marketsync/internal/repository"
)

var (
	// ErrConcurrentRun means another run already holds the
	// (account_scope, resource_type) lease and its progress is not stale.
	ErrConcurrentRun = errors.New("concurrent sync run detected")
	// ErrRunFinished means a cancel request arrived after the run reached a
	// terminal state.
	ErrRunFinished = errors.New("sync run already finished")

	errCancelled = errors.New("sync run cancelled")
)

// RemoteSource is the slice of the marketplace client the engine reads from.
type RemoteSource interface {
	FetchPage(ctx context.Context, resource marketplace.Resource, account string, page, pageSize int) (*marketplace.Page, error)
	FetchByID(ctx context.Context, resource marketplace.Resource, account, remoteID string) (*marketplace.Record, error)
}

// StartOptions parameterize one sync run.
type StartOptions struct {
	ResourceType     string
	AccountScopes    []string
	Mode             string
	MaxPages         int
	ConflictStrategy string
	// RemoteIDs drives selective mode.
	RemoteIDs []string
	// Concurrent overrides the configured dual-account scheduling mode.
	Concurrent *bool
	// Budget overrides the computed run deadline.
	Budget time.Duration
}

type runHandle struct {
	cancel        context.CancelFunc
	userCancelled atomic.Bool
}

// Orchestrator coordinates paginate → resolve → upsert per account and owns
// the run lifecycle. Every exit path, including timeout and cancellation,
// commits a terminal run state.
type Orchestrator struct {
	store    repository.Store
	remote   RemoteSource
	logger   *zap.Logger
	cfg      config.SyncConfig
	accounts []string
	adapters map[marketplace.Resource]Adapter
	reaper   *Reaper

	// baseCtx detaches run execution from the trigger request; it ends only
	// on process shutdown.
	baseCtx context.Context

	mu      sync.Mutex
	running map[string]*runHandle
	wg      sync.WaitGroup
}

func NewOrchestrator(baseCtx context.Context, store repository.Store, remote RemoteSource, logger *zap.Logger, cfg config.SyncConfig, accounts []string) *Orchestrator {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	o := &Orchestrator{
		store:    store,
		remote:   remote,
		logger:   logger,
		cfg:      cfg,
		accounts: accounts,
		adapters: map[marketplace.Resource]Adapter{
			marketplace.ResourceProducts: &ProductAdapter{Store: store},
			marketplace.ResourceOrders:   &OrderAdapter{Store: store},
		},
		reaper:  &Reaper{Store: store, Logger: logger, StaleAfter: cfg.StaleAfter},
		baseCtx: baseCtx,
		running: make(map[string]*runHandle),
	}
	return o
}

// Reaper exposes the stuck-run reaper for scheduled invocation.
func (o *Orchestrator) Reaper() *Reaper {
	return o.reaper
}

// Wait blocks until every in-flight run has finalized; used on shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// RunBudget computes the run deadline from the expected page count. A fixed
// short deadline made large catalogs unfinishable, so the budget scales.
func RunBudget(perPage time.Duration, expectedPages int, safetyFactor float64, minBudget time.Duration) time.Duration {
	if perPage <= 0 {
		perPage = 2 * time.Second
	}
	if expectedPages <= 0 {
		expectedPages = 1
	}
	if safetyFactor <= 0 {
		safetyFactor = 3
	}
	budget := time.Duration(float64(perPage) * float64(expectedPages) * safetyFactor)
	if budget < minBudget {
		return minBudget
	}
	return budget
}

// Start validates the request, registers the run, acquires the per-account
// leases, and launches execution. It returns as soon as the run is running;
// callers poll GetStatus for the outcome.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) (*models.SyncRun, error) {
	resource, err := marketplace.ParseResource(opts.ResourceType)
	if err != nil {
		return nil, err
	}
	adapter, ok := o.adapters[resource]
	if !ok {
		return nil, fmt.Errorf("resource %q is not syncable", resource)
	}
	strategy, err := ParseStrategy(opts.ConflictStrategy)
	if err != nil {
		return nil, err
	}
	if strategy == StrategyRemotePriority && opts.ConflictStrategy == "" && o.cfg.DefaultStrategy != "" {
		if strategy, err = ParseStrategy(o.cfg.DefaultStrategy); err != nil {
			return nil, err
		}
	}
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeFull
	}
	switch mode {
	case models.ModeFull, models.ModeIncremental:
	case models.ModeSelective:
		if len(opts.RemoteIDs) == 0 {
			return nil, fmt.Errorf("selective mode requires remote ids")
		}
	default:
		return nil, fmt.Errorf("unsupported sync mode: %q", mode)
	}
	accounts := opts.AccountScopes
	if len(accounts) == 0 {
		accounts = o.accounts
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no account scopes configured")
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = o.cfg.MaxPages
	}

	now := time.Now().UTC()
	run := &models.SyncRun{
		ID:               uuid.NewString(),
		AccountScope:     strings.Join(accounts, ","),
		ResourceType:     string(resource),
		Mode:             mode,
		Status:           models.RunStatusPending,
		ConflictStrategy: string(strategy),
		MaxPages:         maxPages,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := o.store.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}
	o.logTransition(run, "", models.RunStatusPending)

	acquired, err := o.acquireLeases(ctx, run, accounts, resource)
	if err != nil {
		o.failBeforeStart(ctx, run, acquired, err)
		return nil, err
	}

	startedAt := time.Now().UTC()
	run.StartedAt = &startedAt
	if err := o.persistStatus(ctx, run, models.RunStatusRunning, nil); err != nil {
		o.failBeforeStart(ctx, run, acquired, err)
		return nil, err
	}

	budget := opts.Budget
	if budget <= 0 {
		expected := maxPages
		if expected <= 0 {
			expected = o.cfg.EstimatedTotalPages
		}
		budget = RunBudget(o.cfg.PerPageLatency, expected*len(accounts), o.cfg.BudgetSafetyFactor, o.cfg.MinRunBudget)
	}

	runCtx, cancel := context.WithTimeout(o.baseCtx, budget)
	handle := &runHandle{cancel: cancel}
	o.mu.Lock()
	o.running[run.ID] = handle
	o.mu.Unlock()

	o.wg.Add(1)
	go o.execute(runCtx, run, handle, adapter, strategy, accounts, opts)
	return run, nil
}

// Cancel requests cancellation. The durable flag covers runs owned by other
// processes; the in-process handle makes local runs stop at the next page
// boundary without polling delay.
func (o *Orchestrator) Cancel(ctx context.Context, runID string) error {
	run, err := o.store.GetSyncRun(ctx, runID)
	if err != nil {
		return err
	}
	if models.IsTerminal(run.Status) {
		return ErrRunFinished
	}
	if err := o.store.RequestCancel(ctx, runID); err != nil {
		return err
	}
	o.mu.Lock()
	handle := o.running[runID]
	o.mu.Unlock()
	if handle != nil {
		handle.userCancelled.Store(true)
		handle.cancel()
	}
	return nil
}

func (o *Orchestrator) acquireLeases(ctx context.Context, run *models.SyncRun, accounts []string, resource marketplace.Resource) ([]string, error) {
	var acquired []string
	for _, account := range accounts {
		ok, err := o.acquireLease(ctx, account, string(resource), run.ID)
		if err != nil {
			return acquired, err
		}
		if !ok {
			return acquired, ErrConcurrentRun
		}
		acquired = append(acquired, account)
	}
	return acquired, nil
}

// acquireLease inserts the durable lease row. If the row is held by a run
// whose progress went stale, the holder is reaped and the lease taken over.
func (o *Orchestrator) acquireLease(ctx context.Context, account, resource, runID string) (bool, error) {
	lease := &models.SyncLease{
		AccountScope: account,
		ResourceType: resource,
		SyncRunID:    runID,
		AcquiredAt:   time.Now().UTC(),
	}
	ok, err := o.store.AcquireLease(ctx, lease)
	if err != nil || ok {
		return ok, err
	}

	existing, err := o.store.GetLease(ctx, account, resource)
	if err != nil {
		return false, err
	}
	if existing == nil {
		// Holder released between attempts; try once more.
		return o.store.AcquireLease(ctx, lease)
	}
	holder, err := o.store.GetSyncRun(ctx, existing.SyncRunID)
	if err != nil && !errors.Is(err, repository.ErrRunNotFound) {
		return false, err
	}
	stale, err := o.reaper.isStale(ctx, holder, existing)
	if err != nil {
		return false, err
	}
	if !stale {
		return false, nil
	}
	if holder != nil {
		if err := o.reaper.ForceFail(ctx, holder, "stale progress, lease taken over"); err != nil {
			return false, err
		}
	} else if err := o.releaseLease(ctx, existing.SyncRunID); err != nil {
		return false, err
	}
	return o.store.AcquireLease(ctx, lease)
}

func (o *Orchestrator) releaseLease(ctx context.Context, runID string) error {
	return o.store.InTx(ctx, func(tx *gorm.DB) error {
		return o.store.ReleaseLeasesTx(ctx, tx, runID)
	})
}

// failBeforeStart finalizes a run that never got to execute, keeping the
// audit trail complete even for rejected starts.
func (o *Orchestrator) failBeforeStart(ctx context.Context, run *models.SyncRun, acquired []string, cause error) {
	_ = o.releaseLease(ctx, run.ID)
	kind := "start_failed"
	if errors.Is(cause, ErrConcurrentRun) {
		kind = "concurrent_run"
	}
	run.ErrorCount = 1
	run.ErrorsJSON = encodeRunErrors([]models.RunError{{Kind: kind, Detail: cause.Error()}})
	_ = o.persistStatus(ctx, run, models.RunStatusFailed, ptr(cause.Error()))
}

// persistStatus commits a lifecycle transition: run row update plus an
// append-only transition record, and lease release plus completed_at when the
// new status is terminal.
func (o *Orchestrator) persistStatus(ctx context.Context, run *models.SyncRun, status string, detail *string) error {
	from := run.Status
	now := time.Now().UTC()
	run.Status = status
	run.UpdatedAt = now
	if models.IsTerminal(status) {
		run.CompletedAt = &now
	}
	err := o.store.InTx(ctx, func(tx *gorm.DB) error {
		if err := o.store.SaveSyncRunTx(ctx, tx, run); err != nil {
			return err
		}
		if err := o.store.AppendTransitionTx(ctx, tx, &models.SyncTransition{
			SyncRunID:  run.ID,
			FromStatus: from,
			ToStatus:   status,
			Detail:     detail,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		if models.IsTerminal(status) {
			return o.store.ReleaseLeasesTx(ctx, tx, run.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.logTransition(run, from, status)
	return nil
}

func (o *Orchestrator) logTransition(run *models.SyncRun, from, to string) {
	if o.logger == nil {
		return
	}
	o.logger.Info("sync run transition",
		zap.String("sync_run_id", run.ID),
		zap.String("account_scope", run.AccountScope),
		zap.String("resource_type", run.ResourceType),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// runTotals aggregates counts across accounts; concurrent dual-account mode
// updates it from two goroutines.
type runTotals struct {
	mu         sync.Mutex
	fetched    int
	created    int
	updated    int
	unchanged  int
	failed     int
	errorCount int
	errors     []models.RunError
	maxErrors  int
	maxPage    int
}

func (t *runTotals) addOutcome(outcome BatchOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.created += outcome.Created
	t.updated += outcome.Updated
	t.unchanged += outcome.Unchanged
	t.failed += outcome.Failed
	for _, e := range outcome.Errors {
		t.recordLocked(e)
	}
}

func (t *runTotals) addFetched(n int) {
	t.mu.Lock()
	t.fetched += n
	t.mu.Unlock()
}

func (t *runTotals) fail(e models.RunError) {
	t.mu.Lock()
	t.failed++
	t.recordLocked(e)
	t.mu.Unlock()
}

func (t *runTotals) record(e models.RunError) {
	t.mu.Lock()
	t.recordLocked(e)
	t.mu.Unlock()
}

func (t *runTotals) recordLocked(e models.RunError) {
	t.errorCount++
	if t.maxErrors <= 0 || len(t.errors) < t.maxErrors {
		t.errors = append(t.errors, e)
	}
}

// advancePage records the furthest page any account stream has reached and
// reports whether the given page advanced it, so a slower stream never
// rewinds the visible progress.
func (t *runTotals) advancePage(page int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if page <= t.maxPage {
		return t.maxPage, false
	}
	t.maxPage = page
	return page, true
}

func (t *runTotals) apply(run *models.SyncRun) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(run)
}

func (t *runTotals) applyLocked(run *models.SyncRun) {
	run.Fetched = t.fetched
	run.Created = t.created
	run.Updated = t.updated
	run.Unchanged = t.unchanged
	run.Failed = t.failed
	run.ErrorCount = t.errorCount
	run.ErrorsJSON = encodeRunErrors(t.errors)
}

// snapshot applies the totals and copies the run under the lock, so a
// concurrent sibling stream can neither mutate the run mid-save nor observe a
// half-applied one.
func (t *runTotals) snapshot(run *models.SyncRun) models.SyncRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(run)
	run.UpdatedAt = time.Now().UTC()
	return *run
}

func (o *Orchestrator) execute(ctx context.Context, run *models.SyncRun, handle *runHandle, adapter Adapter, strategy Strategy, accounts []string, opts StartOptions) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.running, run.ID)
		o.mu.Unlock()
	}()

	totals := &runTotals{maxErrors: o.cfg.MaxRecordedErrors}

	concurrent := o.cfg.ConcurrentAccounts
	if opts.Concurrent != nil {
		concurrent = *opts.Concurrent
	}

	var terminal error
	if concurrent && len(accounts) > 1 {
		var (
			wg         sync.WaitGroup
			terminalMu sync.Mutex
		)
		workCtx, stop := context.WithCancel(ctx)
		for _, account := range accounts {
			wg.Add(1)
			go func(account string) {
				defer wg.Done()
				if err := o.runAccount(workCtx, run, handle, adapter, strategy, account, opts, totals); err != nil {
					terminalMu.Lock()
					if terminal == nil {
						terminal = err
					}
					terminalMu.Unlock()
					stop()
				}
			}(account)
		}
		wg.Wait()
		stop()
	} else {
		for _, account := range accounts {
			if err := o.runAccount(ctx, run, handle, adapter, strategy, account, opts, totals); err != nil {
				terminal = err
				break
			}
		}
	}

	o.finalize(run, handle, totals, terminal)
}

// finalize commits the terminal state on every exit path. It runs on a fresh
// context: the run context is typically already expired or cancelled here.
func (o *Orchestrator) finalize(run *models.SyncRun, handle *runHandle, totals *runTotals, terminal error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status := models.RunStatusCompleted
	var detail *string
	switch {
	case terminal == nil:
	case errors.Is(terminal, errCancelled):
		status = models.RunStatusCancelled
		detail = ptr("cancellation requested")
	case errors.Is(terminal, context.DeadlineExceeded) && !handle.userCancelled.Load():
		status = models.RunStatusFailed
		detail = ptr("run budget exhausted")
		totals.record(models.RunError{Kind: "timeout", Detail: "run-level timeout budget exhausted"})
	case errors.Is(terminal, context.Canceled) && handle.userCancelled.Load():
		status = models.RunStatusCancelled
		detail = ptr("cancellation requested")
	case errors.Is(terminal, context.Canceled):
		status = models.RunStatusFailed
		detail = ptr("execution context cancelled")
		totals.record(models.RunError{Kind: "aborted", Detail: "execution context cancelled"})
	default:
		status = models.RunStatusFailed
		detail = ptr(terminal.Error())
		kind := "run_failed"
		if marketplace.IsAuthError(terminal) {
			kind = "auth_failed"
		} else if marketplace.IsRemoteUnavailable(terminal) {
			kind = "remote_unavailable"
		}
		totals.record(models.RunError{Kind: kind, Detail: terminal.Error()})
	}

	totals.apply(run)
	if err := o.persistStatus(ctx, run, status, detail); err != nil && o.logger != nil {
		o.logger.Error("final run state commit failed",
			zap.String("sync_run_id", run.ID),
			zap.Error(err),
		)
	}
	if status == models.RunStatusCompleted {
		_ = o.store.SaveProgress(ctx, &models.SyncProgress{
			SyncRunID:       run.ID,
			PercentComplete: 100,
			UpdatedAt:       time.Now().UTC(),
		})
	}
}

func (o *Orchestrator) runAccount(ctx context.Context, run *models.SyncRun, handle *runHandle, adapter Adapter, strategy Strategy, account string, opts StartOptions, totals *runTotals) error {
	if run.Mode == models.ModeSelective {
		return o.runSelective(ctx, run, handle, adapter, strategy, account, opts, totals)
	}

	resource := adapter.Resource()
	var watermark *time.Time
	if run.Mode == models.ModeIncremental {
		last, err := o.store.LastCompletedRun(o.baseCtx, account, string(resource))
		if err != nil {
			return err
		}
		if last != nil && last.CompletedAt != nil {
			watermark = last.CompletedAt
		}
	}

	upserter := &Upserter{Store: o.store, Adapter: adapter, BatchSize: o.cfg.BatchSize, Logger: o.logger}
	paginator := NewPaginator(func(ctx context.Context, page, pageSize int) (*marketplace.Page, error) {
		return o.remote.FetchPage(ctx, resource, account, page, pageSize)
	}, o.cfg.PageSize, run.MaxPages, watermark)

	estimated := o.cfg.EstimatedTotalPages
	if run.MaxPages > 0 {
		estimated = run.MaxPages
	}

	consecutiveFetchFailures := 0
	for {
		if err := o.checkCancelled(run.ID, handle); err != nil {
			return err
		}
		records, page, done, err := paginator.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if marketplace.IsAuthError(err) {
				return err
			}
			// A failed page is one skipped unit of work; the run goes on
			// unless the remote looks persistently down.
			totals.fail(models.RunError{Kind: "page_failed", Detail: err.Error(), Account: account, Page: page})
			consecutiveFetchFailures++
			if consecutiveFetchFailures >= 3 {
				return fmt.Errorf("account %s: %d consecutive page failures: %w", account, consecutiveFetchFailures, err)
			}
			continue
		}
		if done {
			break
		}
		consecutiveFetchFailures = 0

		if o.logger != nil {
			o.logger.Info("page fetched",
				zap.String("sync_run_id", run.ID),
				zap.String("account_scope", account),
				zap.String("resource_type", string(resource)),
				zap.Int("page", page),
				zap.Int("records", len(records)),
			)
		}
		totals.addFetched(len(records))
		if latest, advanced := totals.advancePage(page); advanced {
			o.saveProgress(run.ID, latest, estimated)
		}

		if len(records) == 0 {
			continue
		}
		items, err := o.resolveRecords(ctx, adapter, strategy, account, records, totals)
		if err != nil {
			return err
		}
		if err := o.applyItems(ctx, run, handle, upserter, account, items, totals); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runSelective(ctx context.Context, run *models.SyncRun, handle *runHandle, adapter Adapter, strategy Strategy, account string, opts StartOptions, totals *runTotals) error {
	resource := adapter.Resource()
	records := make([]marketplace.Record, 0, len(opts.RemoteIDs))
	for _, remoteID := range opts.RemoteIDs {
		if err := o.checkCancelled(run.ID, handle); err != nil {
			return err
		}
		rec, err := o.remote.FetchByID(ctx, resource, account, remoteID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if marketplace.IsAuthError(err) {
				return err
			}
			totals.fail(models.RunError{Kind: "fetch_failed", Detail: err.Error(), Account: account, RemoteID: remoteID})
			continue
		}
		records = append(records, *rec)
	}
	totals.addFetched(len(records))
	if latest, advanced := totals.advancePage(1); advanced {
		o.saveProgress(run.ID, latest, 1)
	}
	if len(records) == 0 {
		return nil
	}
	upserter := &Upserter{Store: o.store, Adapter: adapter, BatchSize: o.cfg.BatchSize, Logger: o.logger}
	items, err := o.resolveRecords(ctx, adapter, strategy, account, records, totals)
	if err != nil {
		return err
	}
	return o.applyItems(ctx, run, handle, upserter, account, items, totals)
}

// resolveRecords validates fetched records and resolves each against its
// local counterpart. Malformed records become per-item failures.
func (o *Orchestrator) resolveRecords(ctx context.Context, adapter Adapter, strategy Strategy, account string, records []marketplace.Record, totals *runTotals) ([]Item, error) {
	fetchedAt := time.Now().UTC()
	remotes := make([]RemoteRecord, 0, len(records))
	remoteIDs := make([]string, 0, len(records))
	for _, rec := range records {
		remote, err := adapter.Decode(rec, account, fetchedAt)
		if err != nil {
			totals.fail(models.RunError{Kind: "malformed_record", Detail: err.Error(), Account: account, RemoteID: rec.RemoteID})
			continue
		}
		remotes = append(remotes, remote)
		remoteIDs = append(remoteIDs, remote.RemoteID)
	}
	locals, err := adapter.LoadLocal(ctx, account, remoteIDs)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(remotes))
	for _, remote := range remotes {
		local := locals[remote.RemoteID]
		decision := Resolve(local, remote, strategy, adapter.LocalOnly())
		items = append(items, Item{Remote: remote, Local: local, Decision: decision})
	}
	return items, nil
}

// applyItems commits the resolved page through the upserter. Batches run on
// the base context so an in-flight commit finishes even when the run context
// expires; cancellation and timeout are observed between batches.
func (o *Orchestrator) applyItems(ctx context.Context, run *models.SyncRun, handle *runHandle, upserter *Upserter, account string, items []Item, totals *runTotals) error {
	var stopErr error
	_, err := upserter.ApplyAll(o.baseCtx, run.ID, account, items, func(outcome BatchOutcome) error {
		totals.addOutcome(outcome)
		o.persistCounts(run, totals)
		if cancelErr := o.checkCancelled(run.ID, handle); cancelErr != nil {
			stopErr = cancelErr
			return cancelErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			stopErr = ctxErr
			return ctxErr
		}
		return nil
	})
	if stopErr != nil {
		return stopErr
	}
	return err
}

// checkCancelled observes both the in-process handle and the durable flag,
// so cancellation works whether or not this process owns the run.
func (o *Orchestrator) checkCancelled(runID string, handle *runHandle) error {
	if handle.userCancelled.Load() {
		return errCancelled
	}
	requested, err := o.store.IsCancelRequested(o.baseCtx, runID)
	if err != nil {
		return nil
	}
	if requested {
		handle.userCancelled.Store(true)
		return errCancelled
	}
	return nil
}

// saveProgress is best-effort: a lost progress write costs dashboard
// freshness, never correctness.
func (o *Orchestrator) saveProgress(runID string, page, estimated int) {
	if estimated < page {
		estimated = page
	}
	percent := float64(page) / float64(estimated) * 100
	if percent > 99 {
		percent = 99
	}
	_ = o.store.SaveProgress(o.baseCtx, &models.SyncProgress{
		SyncRunID:           runID,
		CurrentPage:         page,
		EstimatedTotalPages: estimated,
		PercentComplete:     percent,
		UpdatedAt:           time.Now().UTC(),
	})
}

// persistCounts flushes running totals after each batch so an interrupted run
// leaves accurate partial numbers behind.
func (o *Orchestrator) persistCounts(run *models.SyncRun, totals *runTotals) {
	snap := totals.snapshot(run)
	_ = o.store.InTx(o.baseCtx, func(tx *gorm.DB) error {
		return o.store.SaveSyncRunTx(o.baseCtx, tx, &snap)
	})
}

func encodeRunErrors(errs []models.RunError) datatypes.JSON {
	if len(errs) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(payload)
}

func decodeRunErrors(raw datatypes.JSON) []models.RunError {
	if len(raw) == 0 {
		return nil
	}
	var errs []models.RunError
	if err := json.Unmarshal(raw, &errs); err != nil {
		return nil
	}
	return errs
}

func ptr[T any](v T) *T {
	return &v
}
