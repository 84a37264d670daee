package syncengine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"marketsync/internal/client/marketplace"
)

func makePage(count int, updatedAt *time.Time) *marketplace.Page {
	page := &marketplace.Page{}
	for i := 0; i < count; i++ {
		page.Items = append(page.Items, marketplace.Record{
			RemoteID:  fmt.Sprintf("r-%d", i),
			UpdatedAt: updatedAt,
		})
	}
	return page
}

func TestPaginator_StopsOnShortPage(t *testing.T) {
	pages := []int{100, 100, 40}
	var fetched []int
	p := NewPaginator(func(ctx context.Context, page, pageSize int) (*marketplace.Page, error) {
		fetched = append(fetched, page)
		return makePage(pages[page-1], nil), nil
	}, 100, 0, nil)

	total := 0
	for {
		records, _, done, err := p.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if done {
			break
		}
		total += len(records)
	}
	if total != 240 {
		t.Fatalf("total records = %d, want 240", total)
	}
	if len(fetched) != 3 {
		t.Fatalf("fetched pages = %v, want exactly 3", fetched)
	}
}

func TestPaginator_MaxPagesCap(t *testing.T) {
	calls := 0
	p := NewPaginator(func(ctx context.Context, page, pageSize int) (*marketplace.Page, error) {
		calls++
		return makePage(pageSize, nil), nil
	}, 50, 2, nil)

	for {
		_, _, done, err := p.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if done {
			break
		}
	}
	if calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls)
	}
}

func TestPaginator_CancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := NewPaginator(func(ctx context.Context, page, pageSize int) (*marketplace.Page, error) {
		calls++
		return makePage(pageSize, nil), nil
	}, 10, 0, nil)

	if _, _, _, err := p.Next(ctx); err != nil {
		t.Fatalf("first page: %v", err)
	}
	cancel()
	if _, _, _, err := p.Next(ctx); err == nil {
		t.Fatalf("expected context error after cancel")
	}
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1 (no fetch after cancel)", calls)
	}
}

func TestPaginator_WatermarkFiltersButTerminatesOnFetchedCount(t *testing.T) {
	watermark := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := watermark.Add(-time.Hour)
	recent := watermark.Add(time.Hour)

	p := NewPaginator(func(ctx context.Context, page, pageSize int) (*marketplace.Page, error) {
		// Full page fetched, but every record predates the watermark.
		return makePage(pageSize, &old), nil
	}, 10, 3, &watermark)

	records, _, done, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if done {
		t.Fatalf("full page must not end the sequence even when fully filtered")
	}
	if len(records) != 0 {
		t.Fatalf("filtered records = %d, want 0", len(records))
	}

	// A record without a timestamp always passes the filter.
	p2 := NewPaginator(func(ctx context.Context, page, pageSize int) (*marketplace.Page, error) {
		page2 := makePage(2, &recent)
		page2.Items = append(page2.Items, marketplace.Record{RemoteID: "no-ts"})
		return page2, nil
	}, 10, 1, &watermark)
	records, _, _, err = p2.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 (2 recent + 1 without timestamp)", len(records))
	}
}
