package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LJTian/InTheLoop/internal/aggregator"
	"github.com/LJTian/InTheLoop/internal/processor"
	"github.com/LJTian/InTheLoop/internal/registry"
	"github.com/LJTian/InTheLoop/internal/trending"
)

type fakeFeeds struct {
	err    error
	hidden map[string]struct{}
}

func (f *fakeFeeds) Current(ctx context.Context) (*registry.Registry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.Registry{Categories: []registry.Category{{Name: "Technology", Feeds: []string{"https://a.example.com/rss"}}}}, nil
}

func (f *fakeFeeds) HiddenURLs(ctx context.Context) (map[string]struct{}, error) {
	return f.hidden, nil
}

type fakeAgg struct {
	calls    int
	articles []processor.Article
}

func (a *fakeAgg) Aggregate(ctx context.Context, reg *registry.Registry, hidden map[string]struct{}) ([]processor.Article, aggregator.Report) {
	a.calls++
	// 与真实抓取一样，ctx 失效后所有 feed 都失败
	if ctx.Err() != nil {
		return nil, aggregator.Report{}
	}
	return a.articles, aggregator.Report{Feeds: []aggregator.FeedOutcome{{Category: "Technology", URL: "https://a.example.com/rss", Accepted: len(a.articles)}}}
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func testArticles(now time.Time) []processor.Article {
	return []processor.Article{
		{Title: "Chip shortage hits carmakers", Summary: "Factories idle", Link: "https://a/1", Category: "Technology", Site: "a", Published: now},
		{Title: "Chip shortage eases", Summary: "Suppliers expand", Link: "https://a/2", Category: "Business", Site: "a", Published: now},
		{Title: "Analysts weigh chip shortage", Summary: "Forecasts vary", Link: "https://a/3", Category: "Technology", Site: "a", Published: now},
		{Title: "Rain expected", Summary: "Chip shortage lingers", Link: "https://a/4", Category: "World", Site: "a", Published: now},
	}
}

func newTestPipeline(opts ...Option) (*Pipeline, *fakeAgg, *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	agg := &fakeAgg{articles: testArticles(clk.t)}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(&fakeFeeds{}, agg, opts...), agg, clk
}

func TestGetArticlesFilters(t *testing.T) {
	p, _, _ := newTestPipeline()
	ctx := context.Background()

	cases := []struct {
		name     string
		q        Query
		expected int
	}{
		{"all", Query{}, 4},
		{"category exact", Query{Category: "Technology"}, 2},
		{"category no partial match", Query{Category: "Tech"}, 0},
		{"search title case-insensitive", Query{Search: "ANALYSTS"}, 1},
		{"search summary", Query{Search: "lingers"}, 1},
		{"category and search", Query{Category: "Technology", Search: "chip"}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l := p.GetArticles(ctx, c.q)
			if len(l.Articles) != c.expected {
				t.Fatalf("got %d articles, want %d", len(l.Articles), c.expected)
			}
			if l.Total != 4 {
				t.Fatalf("Total = %d, want 4", l.Total)
			}
		})
	}
}

func TestGetArticlesUsesCache(t *testing.T) {
	p, agg, clk := newTestPipeline()
	ctx := context.Background()

	first := p.GetArticles(ctx, Query{})
	clk.t = clk.t.Add(10 * time.Minute)
	second := p.GetArticles(ctx, Query{Category: "World"})
	if agg.calls != 1 {
		t.Fatalf("aggregated %d times, want 1", agg.calls)
	}
	if !first.CachedAt.Equal(second.CachedAt) {
		t.Fatalf("cached time changed within window")
	}

	refreshed := p.Refresh(ctx)
	if agg.calls != 2 || !refreshed.CachedAt.Equal(clk.t) {
		t.Fatalf("Refresh should recompute at call time: calls=%d cached=%v", agg.calls, refreshed.CachedAt)
	}
	if got := p.LastReport().Accepted(); got != 4 {
		t.Fatalf("LastReport accepted = %d", got)
	}
}

func TestRegistryErrorKeepsPreviousSnapshot(t *testing.T) {
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	feeds := &fakeFeeds{}
	agg := &fakeAgg{articles: testArticles(clk.t)}
	p := New(feeds, agg, WithClock(clk.Now))
	ctx := context.Background()

	first := p.GetArticles(ctx, Query{})
	feeds.err = errors.New("db down")
	clk.t = clk.t.Add(time.Minute)
	l := p.Refresh(ctx)
	if len(l.Articles) != 4 {
		t.Fatalf("expected previous articles to survive, got %d", len(l.Articles))
	}
	if !l.CachedAt.Equal(first.CachedAt) {
		t.Fatalf("failed refresh should not restamp the snapshot: %v vs %v", l.CachedAt, first.CachedAt)
	}
	if agg.calls != 1 {
		t.Fatalf("aggregator should not run without a registry")
	}
}

func TestRegistryRecoveryReaggregates(t *testing.T) {
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	feeds := &fakeFeeds{err: errors.New("db down")}
	agg := &fakeAgg{articles: testArticles(clk.t)}
	p := New(feeds, agg, WithClock(clk.Now))
	ctx := context.Background()

	if l := p.GetArticles(ctx, Query{}); l.Total != 0 || !l.CachedAt.IsZero() {
		t.Fatalf("expected empty unstamped listing while registry is down, got %+v", l)
	}

	feeds.err = nil
	clk.t = clk.t.Add(time.Second)
	l := p.GetArticles(ctx, Query{})
	if l.Total != 4 || agg.calls != 1 {
		t.Fatalf("read after recovery should aggregate: total=%d calls=%d", l.Total, agg.calls)
	}
}

func TestCancelledRefreshKeepsSnapshot(t *testing.T) {
	p, agg, clk := newTestPipeline()

	before := p.GetArticles(context.Background(), Query{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clk.t = clk.t.Add(time.Minute)
	p.Refresh(ctx)

	after := p.GetArticles(context.Background(), Query{})
	if after.Total != before.Total || agg.calls != 2 {
		t.Fatalf("cancelled refresh dropped the snapshot: before=%d after=%d calls=%d", before.Total, after.Total, agg.calls)
	}
}

type memTrendCache struct {
	data map[string]TrendingResult
	gets int
	hits int
}

func key(at time.Time, n int) string { return fmt.Sprintf("%d:%d", at.UnixNano(), n) }

func (m *memTrendCache) GetTrending(ctx context.Context, at time.Time, n int) (TrendingResult, bool, error) {
	m.gets++
	r, ok := m.data[key(at, n)]
	if ok {
		m.hits++
	}
	return r, ok, nil
}

func (m *memTrendCache) SetTrending(ctx context.Context, r TrendingResult, n int) error {
	m.data[key(r.ComputedAt, n)] = r
	return nil
}

func TestGetTrending(t *testing.T) {
	tc := &memTrendCache{data: map[string]TrendingResult{}}
	p, agg, _ := newTestPipeline(WithTrendCache(tc))
	ctx := context.Background()

	r := p.GetTrending(ctx, 0)
	if len(r.Topics) != 1 || r.Topics[0].Label != "Chip Shortage" || r.Topics[0].MentionCount != 4 {
		t.Fatalf("topics = %+v", r.Topics)
	}
	if r.ArticleCount != 4 {
		t.Fatalf("ArticleCount = %d", r.ArticleCount)
	}

	again := p.GetTrending(ctx, 0)
	if tc.hits != 1 || again.ComputedAt != r.ComputedAt {
		t.Fatalf("second call should be served from cache (hits=%d)", tc.hits)
	}
	if agg.calls != 1 {
		t.Fatalf("trending should not force aggregation, calls=%d", agg.calls)
	}
}

func TestGetTrendingZeroUsesConfiguredTopN(t *testing.T) {
	opts := trending.DefaultOptions()
	opts.TopN = 3
	tc := &memTrendCache{data: map[string]TrendingResult{}}
	p, _, _ := newTestPipeline(WithTrendingOptions(opts), WithTrendCache(tc))

	r := p.GetTrending(context.Background(), 0)
	if _, ok := tc.data[key(r.ComputedAt, 3)]; !ok {
		t.Fatalf("topN 0 should fall back to the configured 3, cached keys: %v", tc.data)
	}
}

func TestGetTrendingEmptySnapshot(t *testing.T) {
	p := New(&fakeFeeds{}, &fakeAgg{})
	r := p.GetTrending(context.Background(), 5)
	if r.Topics == nil || len(r.Topics) != 0 || r.ArticleCount != 0 {
		t.Fatalf("expected empty result, got %+v", r)
	}
}
