package syncengine

import (
	"context"
	"time"

	"marketsync/internal/client/marketplace"
)

// PageFetch fetches one 1-based page for a fixed (account, resource) pair.
type PageFetch func(ctx context.Context, page, pageSize int) (*marketplace.Page, error)

// Paginator drives the page loop for one (account, resource) stream. The
// sequence is lazy, finite, and non-restartable: a short page ends it, an
// optional maxPages cap bounds it, and cancellation is observed between
// pages so a cancelled run stops promptly instead of draining the remainder.
type Paginator struct {
	fetch    PageFetch
	pageSize int
	maxPages int
	// watermark filters fetched records client-side in incremental mode; the
	// remote API has no reliable changed-since parameter.
	watermark *time.Time

	page int
	done bool
}

func NewPaginator(fetch PageFetch, pageSize, maxPages int, watermark *time.Time) *Paginator {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Paginator{fetch: fetch, pageSize: pageSize, maxPages: maxPages, watermark: watermark}
}

// Next returns the next page of records, its page number, and whether the
// sequence is exhausted. Records filtered out by the watermark still end the
// sequence correctly: termination is decided on the fetched count, not the
// filtered one.
func (p *Paginator) Next(ctx context.Context) ([]marketplace.Record, int, bool, error) {
	if p.done {
		return nil, p.page, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, p.page, false, err
	}
	if p.maxPages > 0 && p.page >= p.maxPages {
		p.done = true
		return nil, p.page, true, nil
	}

	p.page++
	fetched, err := p.fetch(ctx, p.page, p.pageSize)
	if err != nil {
		return nil, p.page, false, err
	}
	if len(fetched.Items) < p.pageSize {
		p.done = true
	}
	records := fetched.Items
	if p.watermark != nil {
		records = filterSince(records, *p.watermark)
	}
	return records, p.page, false, nil
}

// Done reports whether the stream is exhausted.
func (p *Paginator) Done() bool {
	return p.done
}

// Page returns the number of the most recently fetched page.
func (p *Paginator) Page() int {
	return p.page
}

// filterSince keeps records changed after the watermark. A record without a
// remote timestamp always passes: it cannot be proven unchanged.
func filterSince(records []marketplace.Record, since time.Time) []marketplace.Record {
	out := make([]marketplace.Record, 0, len(records))
	for _, rec := range records {
		if rec.UpdatedAt == nil || rec.UpdatedAt.After(since) {
			out = append(out, rec)
		}
	}
	return out
}
