package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scipunch/technews/fetcher/types"
	"github.com/scipunch/technews/seen"
)

var base = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	name     string
	items    []types.NewsItem
	err      error
	calls    int
	maxItems int
	lookback time.Duration
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(_ context.Context, maxItems int, lookback time.Duration) ([]types.NewsItem, error) {
	s.calls++
	s.maxItems = maxItems
	s.lookback = lookback
	return s.items, s.err
}

type failingStore struct {
	failIsSeen bool
}

var errDisk = errors.New("disk gone")

func (s failingStore) IsSeen(context.Context, string) (bool, error) {
	if s.failIsSeen {
		return false, errDisk
	}
	return false, nil
}

func (s failingStore) MarkSeen(context.Context, string) error { return errDisk }

type recordingObserver struct {
	sources []string
	errs    []error
}

func (o *recordingObserver) SourceFetched(source string, _ int, err error) {
	o.sources = append(o.sources, source)
	o.errs = append(o.errs, err)
}

func item(source, title, url string, age time.Duration) types.NewsItem {
	return types.NewsItem{Source: source, Title: title, URL: url, PublishedAt: base.Add(-age)}
}

func urls(items []types.NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.URL)
	}
	return out
}

func TestPickFreshTop_SkipsSeenAndMarksPicks(t *testing.T) {
	ctx := context.Background()
	store := seen.NewMemory()
	require.NoError(t, store.MarkSeen(ctx, "https://a.example/A"))

	rss := &fakeSource{name: "rss", items: []types.NewsItem{
		item("Feed", "A", "https://a.example/A", time.Hour),
		item("Feed", "B", "https://a.example/B", 2*time.Hour),
	}}
	agg := New([]types.Source{rss}, store, Options{})

	picks, err := agg.PickFreshTop(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/B"}, urls(picks))

	ok, err := store.IsSeen(ctx, "https://a.example/B")
	require.NoError(t, err)
	require.True(t, ok)

	// nothing new the second time around
	picks, err = agg.PickFreshTop(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, picks)
}

func TestPickFreshTop_AtMostOnceAcrossRuns(t *testing.T) {
	ctx := context.Background()
	store := seen.NewMemory()
	var items []types.NewsItem
	for i, u := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		items = append(items, item("Feed", "T"+u, "https://x.example/"+u, time.Duration(i)*time.Minute))
	}
	agg := New([]types.Source{&fakeSource{name: "rss", items: items}}, store, Options{})

	seenURLs := map[string]bool{}
	for run := 0; run < 4; run++ {
		picks, err := agg.PickFreshTop(ctx, 2)
		require.NoError(t, err)
		for _, p := range picks {
			require.False(t, seenURLs[p.URL], "%s picked twice", p.URL)
			seenURLs[p.URL] = true
		}
	}
	require.Len(t, seenURLs, 7)
}

func TestPickFreshTop_NewestFirstAndClamp(t *testing.T) {
	var items []types.NewsItem
	for i := 0; i < 8; i++ {
		items = append(items, item("Feed", "T", "https://x.example/"+string(rune('a'+i)), time.Duration(8-i)*time.Hour))
	}
	agg := New([]types.Source{&fakeSource{name: "rss", items: items}}, seen.NewMemory(), Options{})

	picks, err := agg.PickFreshTop(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, picks, MaxPicks)
	require.Equal(t, "https://x.example/h", picks[0].URL)
	for i := 1; i < len(picks); i++ {
		require.False(t, picks[i].PublishedAt.After(picks[i-1].PublishedAt))
	}

	picks, err = agg.PickFreshTop(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, picks, MinPicks)
}

func TestPickFreshTop_SourceErrorIsolated(t *testing.T) {
	broken := &fakeSource{name: "rss", err: errors.New("feed down"), items: []types.NewsItem{
		item("Feed", "Partial", "https://x.example/partial", time.Hour),
	}}
	healthy := &fakeSource{name: "newsapi", items: []types.NewsItem{
		item("Wire", "Ok", "https://x.example/ok", 2*time.Hour),
	}}
	obs := &recordingObserver{}
	agg := New([]types.Source{broken, healthy}, seen.NewMemory(), Options{Observer: obs})

	picks, err := agg.PickFreshTop(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.example/partial", "https://x.example/ok"}, urls(picks))
	require.Equal(t, []string{"rss", "newsapi"}, obs.sources)
	require.Error(t, obs.errs[0])
	require.NoError(t, obs.errs[1])
}

func TestPickFreshTop_StorageErrorsAreFatal(t *testing.T) {
	src := &fakeSource{name: "rss", items: []types.NewsItem{item("Feed", "A", "https://x.example/a", time.Hour)}}

	_, err := New([]types.Source{src}, failingStore{failIsSeen: true}, Options{}).PickFreshTop(context.Background(), 2)
	require.ErrorIs(t, err, errDisk)

	_, err = New([]types.Source{src}, failingStore{}, Options{}).PickFreshTop(context.Background(), 2)
	require.ErrorIs(t, err, errDisk)
}

func TestPickFreshTop_PassesLimits(t *testing.T) {
	rss := &fakeSource{name: "rss"}
	api := &fakeSource{name: "newsapi"}
	agg := New([]types.Source{rss, api}, seen.NewMemory(), Options{
		Lookback: 6 * time.Hour,
		MaxItems: func(s types.Source) int {
			if s.Name() == "newsapi" {
				return 10
			}
			return 15
		},
	})

	_, err := agg.PickFreshTop(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 15, rss.maxItems)
	require.Equal(t, 10, api.maxItems)
	require.Equal(t, 6*time.Hour, rss.lookback)
}

type titleFilter struct{ drop string }

func (f titleFilter) Apply(items []types.NewsItem) []types.NewsItem {
	var out []types.NewsItem
	for _, it := range items {
		if it.Title != f.drop {
			out = append(out, it)
		}
	}
	return out
}

func TestPickFreshTop_FilterRunsBeforeDedup(t *testing.T) {
	ctx := context.Background()
	store := seen.NewMemory()
	src := &fakeSource{name: "rss", items: []types.NewsItem{
		item("Feed", "Sponsored", "https://x.example/ad", time.Minute),
		item("Feed", "Real news", "https://x.example/news", time.Hour),
	}}
	agg := New([]types.Source{src}, store, Options{Filter: titleFilter{drop: "Sponsored"}})

	picks, err := agg.PickFreshTop(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.example/news"}, urls(picks))

	ok, _ := store.IsSeen(ctx, "https://x.example/ad")
	require.False(t, ok, "filtered items must not be marked seen")
}

func TestMerge_LastOccurrenceWinsAtFirstPosition(t *testing.T) {
	items := []types.NewsItem{
		item("rss", "One", "https://x.example/1", time.Hour),
		item("rss", "Two", "https://x.example/2", time.Hour),
		item("newsapi", "One (wire)", "https://x.example/1", 3*time.Hour),
		{Source: "tg", Title: "No url"},
		{Source: "tg2", Title: "No url"},
	}

	merged := Merge(items)
	require.Len(t, merged, 3)
	require.Equal(t, "One (wire)", merged[0].Title)
	require.Equal(t, "newsapi", merged[0].Source)
	require.Equal(t, "Two", merged[1].Title)
	require.Equal(t, "tg2", merged[2].Source)
}

func TestSortNewestFirst_IsStable(t *testing.T) {
	items := []types.NewsItem{
		item("s", "old", "1", 3*time.Hour),
		item("s", "tie-a", "2", time.Hour),
		item("s", "tie-b", "3", time.Hour),
		item("s", "new", "4", 0),
	}
	SortNewestFirst(items)
	require.Equal(t, []string{"4", "2", "3", "1"}, urls(items))
}

func TestPickFreshTop_TwoSourceScenario(t *testing.T) {
	ctx := context.Background()
	store := seen.NewMemory()
	require.NoError(t, store.MarkSeen(ctx, "https://news.example/A"))

	rss := &fakeSource{name: "rss", items: []types.NewsItem{
		item("Feed", "Story A", "https://news.example/A", 30*time.Minute),
		item("Feed", "Story B", "https://news.example/B", 90*time.Minute),
	}}
	api := &fakeSource{name: "newsapi", items: []types.NewsItem{
		item("Wire", "Story B (wire)", "https://news.example/B", 90*time.Minute),
		item("Wire", "Story C", "https://news.example/C", 10*time.Hour),
	}}
	agg := New([]types.Source{rss, api}, store, Options{})

	picks, err := agg.PickFreshTop(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"https://news.example/B", "https://news.example/C"}, urls(picks))
	require.Equal(t, "Story B (wire)", picks[0].Title)
	require.Equal(t, 1, rss.calls)
	require.Equal(t, 1, api.calls)
}
