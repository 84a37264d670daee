package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"marketsync/internal/client/marketplace"
	"marketsync/internal/config"
	"marketsync/internal/models"
	"marketsync/internal/repository"
)

// fakeRemote serves a fixed record set page by page. It can delay pages,
// fail specific pages, or block from a given page until released, which makes
// timeout and cancellation tests deterministic.
type fakeRemote struct {
	mu      sync.Mutex
	records []marketplace.Record
	byID    map[string]marketplace.Record

	perPageDelay time.Duration
	failPages    map[int]error
	// blockFromPage > 0 parks requests for that page and later until
	// release is closed or the context ends.
	blockFromPage int
	release       chan struct{}

	pageCalls int
}

func newFakeRemote(records []marketplace.Record) *fakeRemote {
	byID := make(map[string]marketplace.Record, len(records))
	for _, rec := range records {
		byID[rec.RemoteID] = rec
	}
	return &fakeRemote{records: records, byID: byID, release: make(chan struct{})}
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls
}

func (f *fakeRemote) FetchPage(ctx context.Context, resource marketplace.Resource, account string, page, pageSize int) (*marketplace.Page, error) {
	f.mu.Lock()
	f.pageCalls++
	delay := f.perPageDelay
	failErr := f.failPages[page]
	blocked := f.blockFromPage > 0 && page >= f.blockFromPage
	f.mu.Unlock()

	if blocked {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failErr != nil {
		return nil, failErr
	}

	start := (page - 1) * pageSize
	if start > len(f.records) {
		start = len(f.records)
	}
	end := start + pageSize
	if end > len(f.records) {
		end = len(f.records)
	}
	total := (len(f.records) + pageSize - 1) / pageSize
	return &marketplace.Page{Items: f.records[start:end], Page: page, TotalPages: total}, nil
}

func (f *fakeRemote) FetchByID(ctx context.Context, resource marketplace.Resource, account, remoteID string) (*marketplace.Record, error) {
	rec, ok := f.byID[remoteID]
	if !ok {
		return nil, &marketplace.RemoteRejectedError{Status: 404, Diagnostic: "no such record"}
	}
	return &rec, nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		PageSize:            100,
		BatchSize:           100,
		PerPageLatency:      50 * time.Millisecond,
		BudgetSafetyFactor:  3,
		MinRunBudget:        10 * time.Second,
		StaleAfter:          time.Hour,
		MaxRecordedErrors:   20,
		DefaultStrategy:     string(StrategyRemotePriority),
		EstimatedTotalPages: 3,
	}
}

func newTestOrchestrator(store repository.Store, remote RemoteSource, cfg config.SyncConfig) *Orchestrator {
	return NewOrchestrator(context.Background(), store, remote, zap.NewNop(), cfg, []string{"acct-a"})
}

func waitForTerminal(t *testing.T, store repository.Store, runID string) *models.SyncRun {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		run, err := store.GetSyncRun(context.Background(), runID)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if models.IsTerminal(run.Status) {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal state", runID)
	return nil
}

func productFixtures(t *testing.T, n int, price string, updatedAt *time.Time) []marketplace.Record {
	t.Helper()
	records := make([]marketplace.Record, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("R-%04d", i)
		records = append(records, productRecord(t, id, "SKU-"+id, "Widget "+id, price, 3, updatedAt))
	}
	return records
}

func TestFullSyncCreatesEverything(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 250, "4.50", nil))
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Fetched != 250 || final.Created != 250 || final.Updated != 0 || final.Failed != 0 {
		t.Fatalf("counts = fetched %d created %d updated %d failed %d", final.Fetched, final.Created, final.Updated, final.Failed)
	}
	if final.CompletedAt == nil {
		t.Fatal("completed run lacks completed_at")
	}

	progress, err := store.GetProgress(context.Background(), run.ID)
	if err != nil || progress == nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.PercentComplete != 100 {
		t.Fatalf("percent = %v, want 100", progress.PercentComplete)
	}

	lease, err := store.GetLease(context.Background(), "acct-a", "products")
	if err != nil {
		t.Fatalf("get lease: %v", err)
	}
	if lease != nil {
		t.Fatalf("lease still held after completion: %+v", lease)
	}

	transitions, err := store.ListTransitions(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("transitions: %v", err)
	}
	want := []string{models.RunStatusRunning, models.RunStatusCompleted}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %d, want %d", len(transitions), len(want))
	}
	for i, to := range want {
		if transitions[i].ToStatus != to {
			t.Fatalf("transition %d = %q, want %q", i, transitions[i].ToStatus, to)
		}
	}
}

func TestNewestWinsSplitsUpdatedAndUnchanged(t *testing.T) {
	store := openTestStore(t)
	seedTime := time.Now().UTC().Add(-time.Hour)
	seed := newFakeRemote(productFixtures(t, 100, "10.00", &seedTime))
	cfg := testSyncConfig()
	orch := newTestOrchestrator(store, seed, cfg)

	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("seed start: %v", err)
	}
	if final := waitForTerminal(t, store, run.ID); final.Status != models.RunStatusCompleted {
		t.Fatalf("seed status = %q", final.Status)
	}

	// Half the catalog changed remotely after the seed, half carries an
	// older remote timestamp than the local rows.
	newer := time.Now().UTC().Add(time.Hour)
	older := time.Now().UTC().Add(-2 * time.Hour)
	var records []marketplace.Record
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("R-%04d", i)
		ts := newer
		if i >= 50 {
			ts = older
		}
		records = append(records, productRecord(t, id, "SKU-"+id, "Widget "+id, "12.00", 3, &ts))
	}
	orch2 := newTestOrchestrator(store, newFakeRemote(records), cfg)
	run2, err := orch2.Start(context.Background(), StartOptions{
		ResourceType:     "products",
		Mode:             models.ModeFull,
		ConflictStrategy: string(StrategyNewestWins),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run2.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Updated != 50 || final.Unchanged != 50 {
		t.Fatalf("updated = %d unchanged = %d, want 50/50", final.Updated, final.Unchanged)
	}
}

func TestIncrementalSyncSkipsRecordsBeforeWatermark(t *testing.T) {
	store := openTestStore(t)
	old := time.Now().UTC().Add(-time.Hour)
	cfg := testSyncConfig()

	orch := newTestOrchestrator(store, newFakeRemote(productFixtures(t, 120, "4.50", &old)), cfg)
	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("seed start: %v", err)
	}
	if final := waitForTerminal(t, store, run.ID); final.Status != models.RunStatusCompleted {
		t.Fatalf("seed status = %q", final.Status)
	}

	// Same catalog, all timestamps before the first run's completion: the
	// watermark filters every record client-side.
	remote := newFakeRemote(productFixtures(t, 120, "4.50", &old))
	orch2 := newTestOrchestrator(store, remote, cfg)
	run2, err := orch2.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeIncremental})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run2.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Fetched != 0 || final.Created != 0 || final.Updated != 0 {
		t.Fatalf("counts = fetched %d created %d updated %d, want zeros", final.Fetched, final.Created, final.Updated)
	}
	if remote.calls() == 0 {
		t.Fatal("remote never paged; watermark must filter, not skip fetching")
	}
}

func TestRunBudgetExhaustionFailsWithTimeout(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 500, "4.50", nil))
	remote.perPageDelay = 150 * time.Millisecond
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{
		ResourceType: "products",
		Mode:         models.ModeFull,
		Budget:       400 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	errs := decodeRunErrors(final.ErrorsJSON)
	found := false
	for _, e := range errs {
		if e.Kind == "timeout" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %+v, want a timeout entry", errs)
	}
	// Pages fetched before the deadline stay committed.
	if final.Created == 0 {
		t.Fatal("no partial progress committed before the deadline")
	}
	if lease, _ := store.GetLease(context.Background(), "acct-a", "products"); lease != nil {
		t.Fatalf("lease still held after timeout: %+v", lease)
	}
}

func TestConcurrentStartIsRejected(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 300, "4.50", nil))
	remote.blockFromPage = 2
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	first, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	second, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if !errors.Is(err, ErrConcurrentRun) {
		t.Fatalf("second start err = %v, want ErrConcurrentRun", err)
	}
	if second != nil {
		t.Fatalf("second start returned a run: %+v", second)
	}

	close(remote.release)
	if final := waitForTerminal(t, store, first.ID); final.Status != models.RunStatusCompleted {
		t.Fatalf("first run status = %q, want completed", final.Status)
	}

	// The lease is released with the first run, so the pair is syncable again.
	again, err := newTestOrchestrator(store, newFakeRemote(nil), testSyncConfig()).
		Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("start after completion: %v", err)
	}
	waitForTerminal(t, store, again.ID)
}

func TestCancelStopsAtPageBoundaryAndKeepsBatches(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 300, "4.50", nil))
	remote.blockFromPage = 2
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Wait until page 1 is committed before cancelling.
	deadline := time.Now().Add(10 * time.Second)
	for {
		current, err := store.GetSyncRun(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if current.Created >= 100 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first page never committed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := orch.Cancel(context.Background(), run.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusCancelled {
		t.Fatalf("status = %q, want cancelled", final.Status)
	}
	if final.Created != 100 {
		t.Fatalf("created = %d, want the committed first page kept", final.Created)
	}
	if lease, _ := store.GetLease(context.Background(), "acct-a", "products"); lease != nil {
		t.Fatalf("lease still held after cancel: %+v", lease)
	}

	if err := orch.Cancel(context.Background(), run.ID); !errors.Is(err, ErrRunFinished) {
		t.Fatalf("cancel after terminal = %v, want ErrRunFinished", err)
	}
}

func TestSelectiveSyncFetchesOnlyRequestedIDs(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 50, "4.50", nil))
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{
		ResourceType: "products",
		Mode:         models.ModeSelective,
		RemoteIDs:    []string{"R-0001", "R-0002", "missing"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Fetched != 2 || final.Created != 2 || final.Failed != 1 {
		t.Fatalf("counts = fetched %d created %d failed %d, want 2/2/1", final.Fetched, final.Created, final.Failed)
	}
	if remote.calls() != 0 {
		t.Fatalf("selective mode paged the listing endpoint %d times", remote.calls())
	}
}

func TestFailedPageIsSkippedAndCounted(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 250, "4.50", nil))
	remote.failPages = map[int]error{2: &marketplace.RemoteUnavailableError{Cause: fmt.Errorf("boom")}}
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	// Pages 1 and 3 commit; page 2 is one counted failure.
	if final.Created != 150 || final.Failed != 1 {
		t.Fatalf("created = %d failed = %d, want 150/1", final.Created, final.Failed)
	}
	errs := decodeRunErrors(final.ErrorsJSON)
	if len(errs) != 1 || errs[0].Kind != "page_failed" || errs[0].Page != 2 {
		t.Fatalf("errors = %+v, want one page_failed entry for page 2", errs)
	}
}

func TestMalformedRecordsFailIndividually(t *testing.T) {
	store := openTestStore(t)
	records := productFixtures(t, 99, "4.50", nil)
	records = append(records, malformedRecord(t, "bad-1"))
	orch := newTestOrchestrator(store, newFakeRemote(records), testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Created != 99 || final.Failed != 1 {
		t.Fatalf("created = %d failed = %d, want 99/1", final.Created, final.Failed)
	}
	errs := decodeRunErrors(final.ErrorsJSON)
	if len(errs) != 1 || errs[0].Kind != "malformed_record" || errs[0].RemoteID != "bad-1" {
		t.Fatalf("errors = %+v, want one malformed_record entry for bad-1", errs)
	}
}

func TestAuthFailureIsTerminal(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 250, "4.50", nil))
	remote.failPages = map[int]error{1: &marketplace.AuthError{Status: 401}}
	orch := newTestOrchestrator(store, remote, testSyncConfig())

	run, err := orch.Start(context.Background(), StartOptions{ResourceType: "products", Mode: models.ModeFull})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	errs := decodeRunErrors(final.ErrorsJSON)
	found := false
	for _, e := range errs {
		if e.Kind == "auth_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %+v, want an auth_failed entry", errs)
	}
}

func TestStartRejectsBadRequests(t *testing.T) {
	store := openTestStore(t)
	orch := newTestOrchestrator(store, newFakeRemote(nil), testSyncConfig())
	ctx := context.Background()

	if _, err := orch.Start(ctx, StartOptions{ResourceType: "widgets"}); err == nil {
		t.Fatal("unknown resource accepted")
	}
	if _, err := orch.Start(ctx, StartOptions{ResourceType: "products", Mode: "sideways"}); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if _, err := orch.Start(ctx, StartOptions{ResourceType: "products", Mode: models.ModeSelective}); err == nil {
		t.Fatal("selective mode without ids accepted")
	}
	if _, err := orch.Start(ctx, StartOptions{ResourceType: "products", ConflictStrategy: "coin_flip"}); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}

func TestConcurrentAccountsSyncBothScopes(t *testing.T) {
	store := openTestStore(t)
	remote := newFakeRemote(productFixtures(t, 250, "4.50", nil))
	cfg := testSyncConfig()
	// Small batches force frequent count flushes from both account
	// goroutines at once.
	cfg.BatchSize = 25
	orch := NewOrchestrator(context.Background(), store, remote, zap.NewNop(), cfg, []string{"acct-a", "acct-b"})

	run, err := orch.Start(context.Background(), StartOptions{
		ResourceType:  "products",
		AccountScopes: []string{"acct-a", "acct-b"},
		Mode:          models.ModeFull,
		Concurrent:    ptr(true),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, store, run.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Fetched != 500 || final.Created != 500 || final.Failed != 0 {
		t.Fatalf("counts = fetched %d created %d failed %d", final.Fetched, final.Created, final.Failed)
	}

	remoteIDs := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		remoteIDs = append(remoteIDs, fmt.Sprintf("R-%04d", i))
	}
	for _, account := range []string{"acct-a", "acct-b"} {
		if got := countProducts(t, store, account, remoteIDs); got != 250 {
			t.Fatalf("account %s has %d products, want 250", account, got)
		}
		lease, err := store.GetLease(context.Background(), account, "products")
		if err != nil {
			t.Fatalf("get lease %s: %v", account, err)
		}
		if lease != nil {
			t.Fatalf("lease for %s still held after completion", account)
		}
	}

	progress, err := store.GetProgress(context.Background(), run.ID)
	if err != nil || progress == nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.PercentComplete != 100 {
		t.Fatalf("percent = %v, want 100", progress.PercentComplete)
	}
}

func TestProgressPageNeverRegresses(t *testing.T) {
	totals := &runTotals{}
	if page, advanced := totals.advancePage(2); !advanced || page != 2 {
		t.Fatalf("advance to 2 = (%d, %v)", page, advanced)
	}
	if page, advanced := totals.advancePage(1); advanced || page != 2 {
		t.Fatalf("stale page 1 after 2 = (%d, %v), want (2, false)", page, advanced)
	}
	if page, advanced := totals.advancePage(2); advanced {
		t.Fatalf("repeated page 2 advanced, page = %d", page)
	}
	if page, advanced := totals.advancePage(3); !advanced || page != 3 {
		t.Fatalf("advance to 3 = (%d, %v)", page, advanced)
	}
}
