package types

import (
	"context"
	"time"
)

// NewsItem is a single normalized entry produced by a Source.
// URL identifies the item across sources and runs.
type NewsItem struct {
	Source      string
	Title       string
	URL         string
	PublishedAt time.Time // always UTC
}

// Key returns the merge key of the item: its URL, or the title when the URL is empty
func (i NewsItem) Key() string {
	if i.URL != "" {
		return i.URL
	}
	return i.Title
}

// Source fetches news items from a single kind of upstream
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string
	// Fetch returns at most maxItems entries per upstream endpoint, none of them
	// published before now-lookback. A non-nil error may accompany partial results.
	Fetch(ctx context.Context, maxItems int, lookback time.Duration) ([]NewsItem, error)
}

// IsFresh reports whether publishedAt is not older than now-lookback. The bound is
// inclusive and a non-positive lookback accepts everything.
func IsFresh(publishedAt, now time.Time, lookback time.Duration) bool {
	if lookback <= 0 {
		return true
	}
	return !publishedAt.Before(now.Add(-lookback))
}
