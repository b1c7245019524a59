package feed

import (
	"context"
	"fmt"

	"github.com/nexocrm/leadview"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize matches the store's range query size.
	DefaultPageSize = 1000

	// DefaultMaxPages caps a single fetch at 100 pages (100k leads).
	// Hitting the cap is logged as a warning, not treated as an error.
	DefaultMaxPages = 100
)

// Config tunes a Fetcher. Zero values fall back to the defaults above.
type Config struct {
	PageSize int
	MaxPages int
}

// Store is the page source. Satisfied by the postgres lead store.
type Store interface {
	ListOpen(ctx context.Context, offset, limit int) ([]leadview.Lead, error)
}

// Fetcher pages through the open-lead query, narrowing each page with the
// viewer's visibility predicate before merging it into a Collection. The
// first page is fetched synchronously; the rest continue on a background
// goroutine that never blocks the caller.
type Fetcher struct {
	store    Store
	log      *zap.SugaredLogger
	pageSize int
	maxPages int
}

func NewFetcher(store Store, log *zap.SugaredLogger, cfg Config) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Fetcher{
		store:    store,
		log:      log,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
}

// Run fetches the first page into col and returns; the returned channel
// closes when the background continuation finishes. A first-page error is
// returned to the caller. A continuation error only halts the
// continuation: everything merged so far stays in col.
//
// ctx must outlive the calling request; cancelling it is how a
// superseding fetch generation stops a stale continuation.
func (f *Fetcher) Run(ctx context.Context, viewer leadview.Viewer, subs leadview.Subordinates, col *Collection) (<-chan struct{}, error) {
	first, err := f.store.ListOpen(ctx, 0, f.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching first page: %w", err)
	}
	col.Merge(leadview.FilterVisible(first, viewer, subs))

	done := make(chan struct{})
	if len(first) < f.pageSize {
		close(done)
		return done, nil
	}

	go func() {
		defer close(done)
		f.continueRun(ctx, viewer, subs, col)
	}()
	return done, nil
}

func (f *Fetcher) continueRun(ctx context.Context, viewer leadview.Viewer, subs leadview.Subordinates, col *Collection) {
	for page := 1; ; page++ {
		if page >= f.maxPages {
			f.log.Warnw("feed: page cap reached, truncating fetch",
				"cap", f.maxPages, "held", col.Len())
			return
		}
		if ctx.Err() != nil {
			return
		}

		batch, err := f.store.ListOpen(ctx, page*f.pageSize, f.pageSize)
		if err != nil {
			// Partial data already merged stays displayed.
			f.log.Warnw("feed: background page fetch failed",
				"page", page+1, "held", col.Len(), "err", err)
			return
		}
		if len(batch) == 0 {
			return
		}

		col.Merge(leadview.FilterVisible(batch, viewer, subs))

		if len(batch) < f.pageSize {
			return
		}
	}
}
