package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/scipunch/technews/fetcher/types"
)

// RSSSource reads RSS and Atom feeds using gofeed. Each feed is parsed
// independently so one broken feed does not hide the others.
type RSSSource struct {
	feeds  []string
	parser *gofeed.Parser
	now    func() time.Time
}

// NewRSSSource creates a source over the given feed URLs.
// timeout bounds every single feed request.
func NewRSSSource(feeds []string, timeout time.Duration, opts ...Option) *RSSSource {
	o := buildOptions(timeout, opts)
	parser := gofeed.NewParser()
	parser.Client = o.client
	return &RSSSource{
		feeds:  feeds,
		parser: parser,
		now:    o.now,
	}
}

func (s *RSSSource) Name() string {
	return "rss"
}

// Fetch parses every feed and returns the fresh entries of all of them.
// Errors of individual feeds are joined and returned next to the items that were parsed.
func (s *RSSSource) Fetch(ctx context.Context, maxItems int, lookback time.Duration) ([]types.NewsItem, error) {
	var (
		items []types.NewsItem
		errs  []error
	)
	for _, url := range s.feeds {
		feedItems, err := s.fetchFeed(ctx, url, maxItems, lookback)
		if err != nil {
			slog.Warn("failed to parse feed", "url", url, "with", err)
			errs = append(errs, &SourceError{Source: s.Name(), URL: url, Err: err})
			continue
		}
		slog.Debug("parsed feed", "url", url, "fresh", len(feedItems))
		items = append(items, feedItems...)
	}
	return items, errors.Join(errs...)
}

func (s *RSSSource) fetchFeed(ctx context.Context, url string, maxItems int, lookback time.Duration) ([]types.NewsItem, error) {
	feed, err := s.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	now := s.now().UTC()
	entries := feed.Items
	if maxItems > 0 && len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	items := make([]types.NewsItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		publishedAt := entryTimestamp(entry, now)
		if !types.IsFresh(publishedAt, now, lookback) {
			continue
		}

		items = append(items, types.NewsItem{
			Source:      strings.TrimSpace(feed.Title),
			Title:       title,
			URL:         link,
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}

// entryTimestamp prefers the published date over the updated one and falls back to now
func entryTimestamp(entry *gofeed.Item, now time.Time) time.Time {
	if entry.Published != "" {
		if entry.PublishedParsed != nil {
			return entry.PublishedParsed.UTC()
		}
		return timestampOr(entry.Published, now)
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return timestampOr(entry.Updated, now)
}
