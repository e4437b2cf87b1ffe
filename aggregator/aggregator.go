// Package aggregator merges items from all sources and picks the freshest ones
// that were never picked before.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/scipunch/technews/fetcher/types"
	"github.com/scipunch/technews/seen"
)

const (
	MinPicks = 1
	MaxPicks = 5

	defaultMaxItems = 15
	defaultLookback = 24 * time.Hour
)

// Filter drops items before deduplication
type Filter interface {
	Apply(items []types.NewsItem) []types.NewsItem
}

// Observer receives per-source fetch outcomes
type Observer interface {
	SourceFetched(source string, items int, err error)
}

type Options struct {
	// Lookback is the freshness window passed to every source
	Lookback time.Duration
	// MaxItems returns the per-endpoint item limit of a source
	MaxItems func(types.Source) int
	Filter   Filter
	Observer Observer
}

// Aggregator is not safe for concurrent runs sharing one store
type Aggregator struct {
	sources []types.Source
	store   seen.Store
	opts    Options
}

func New(sources []types.Source, store seen.Store, opts Options) *Aggregator {
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	return &Aggregator{sources: sources, store: store, opts: opts}
}

// PickFreshTop returns up to n never seen items, newest first, marking each one seen as it is picked.
// n is clamped to [MinPicks, MaxPicks]. Seen store failures abort the pick.
func (a *Aggregator) PickFreshTop(ctx context.Context, n int) ([]types.NewsItem, error) {
	n = clamp(n)

	candidates := a.collect(ctx)
	if a.opts.Filter != nil {
		candidates = a.opts.Filter.Apply(candidates)
	}
	candidates = Merge(candidates)
	SortNewestFirst(candidates)
	slog.Info("collected candidates", "amount", len(candidates))

	picks := make([]types.NewsItem, 0, n)
	for _, item := range candidates {
		if len(picks) >= n {
			break
		}
		isSeen, err := a.store.IsSeen(ctx, item.Key())
		if err != nil {
			return picks, fmt.Errorf("failed to check seen state of %s with %w", item.Key(), err)
		}
		if isSeen {
			continue
		}
		if err := a.store.MarkSeen(ctx, item.Key()); err != nil {
			return picks, fmt.Errorf("failed to mark %s as seen with %w", item.Key(), err)
		}
		picks = append(picks, item)
	}
	return picks, nil
}

// collect queries every source in order. Failed sources still contribute their partial results.
func (a *Aggregator) collect(ctx context.Context) []types.NewsItem {
	var all []types.NewsItem
	for _, src := range a.sources {
		maxItems := defaultMaxItems
		if a.opts.MaxItems != nil {
			maxItems = a.opts.MaxItems(src)
		}
		items, err := src.Fetch(ctx, maxItems, a.opts.Lookback)
		if err != nil {
			slog.Warn("source failed", "source", src.Name(), "items", len(items), "with", err)
		} else {
			slog.Info("fetched source", "source", src.Name(), "items", len(items))
		}
		if a.opts.Observer != nil {
			a.opts.Observer.SourceFetched(src.Name(), len(items), err)
		}
		all = append(all, items...)
	}
	return all
}

// Merge deduplicates items by Key. A later occurrence replaces an earlier one
// but keeps the position of the first occurrence.
func Merge(items []types.NewsItem) []types.NewsItem {
	index := make(map[string]int, len(items))
	merged := make([]types.NewsItem, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			merged[i] = item
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// SortNewestFirst orders items by PublishedAt descending. Equal timestamps keep their order.
func SortNewestFirst(items []types.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

func clamp(n int) int {
	if n < MinPicks {
		return MinPicks
	}
	if n > MaxPicks {
		return MaxPicks
	}
	return n
}
