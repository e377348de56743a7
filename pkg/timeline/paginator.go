package timeline

import (
	"context"
	"time"

	"membitnode/pkg/dedup"
	"membitnode/pkg/logger"
	"membitnode/pkg/models"
	"membitnode/pkg/ratelimit"
)

const (
	// MaxItems is the per-cycle item budget.
	MaxItems = 100

	// InterPageDelay is the fixed gap between successive page requests.
	InterPageDelay = 300 * time.Millisecond
)

// Pager is the page-fetching contract the paginator depends on, satisfied by
// *Client and by fakes in tests.
type Pager interface {
	FetchPage(ctx context.Context, cursor string, seenIDs []string) (*timelineResponse, error)
}

// Paginator walks the cursor-linked home timeline until the item budget is
// reached or the feed is exhausted.
type Paginator struct {
	pager    Pager
	window   *dedup.SeenWindow
	pacer    *ratelimit.Pacer
	logger   logger.Logger
	maxItems int
}

// NewPaginator creates a paginator over the given pager. The seen window is
// shared with the owning node: its contents ride along as the exclusion hint
// and newly extracted IDs are merged back after each collection.
func NewPaginator(pager Pager, window *dedup.SeenWindow, log logger.Logger) *Paginator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{
		pager:    pager,
		window:   window,
		pacer:    ratelimit.NewPacer(InterPageDelay),
		logger:   log,
		maxItems: MaxItems,
	}
}

// Collect fetches pages until maxItems items have accumulated or no further
// cursor is available. A transport failure on any page aborts pagination and
// returns whatever accumulated so far; the failure is logged, never
// propagated.
func (p *Paginator) Collect(ctx context.Context) []*models.TimelineItem {
	var collected []*models.TimelineItem
	cursor := ""
	page := 0

	for len(collected) < p.maxItems {
		if err := p.pacer.Wait(ctx); err != nil {
			break
		}
		page++

		resp, err := p.pager.FetchPage(ctx, cursor, p.window.IDs())
		if err != nil {
			p.logger.WarnWithFields("timeline page fetch failed, returning partial results", map[string]interface{}{
				"page":      page,
				"collected": len(collected),
				"error":     err.Error(),
			})
			break
		}

		items := ExtractItems(resp, p.logger)
		collected = append(collected, items...)
		if len(collected) >= p.maxItems {
			break
		}

		cursor = ExtractCursor(resp)
		if cursor == "" {
			p.logger.DebugWithFields("feed exhausted", map[string]interface{}{
				"pages":     page,
				"collected": len(collected),
			})
			break
		}
	}

	ids := make([]string, 0, len(collected))
	for _, item := range collected {
		ids = append(ids, item.TweetID)
	}
	p.window.Merge(ids)

	if len(collected) > p.maxItems {
		collected = collected[:p.maxItems]
	}
	return collected
}
