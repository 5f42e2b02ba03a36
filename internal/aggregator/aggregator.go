package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/InTheLoop/internal/collector"
	"github.com/LJTian/InTheLoop/internal/logger"
	"github.com/LJTian/InTheLoop/internal/processor"
	"github.com/LJTian/InTheLoop/internal/registry"
	"github.com/mmcdole/gofeed"
)

const (
	DefaultPerFeedLimit = 8
	defaultConcurrency  = 8
)

// FeedStatus 单个 feed 在一次聚合中的结果
type FeedStatus int

const (
	Fetched FeedStatus = iota
	SkippedHidden
	SkippedMalformed
	Failed
)

func (s FeedStatus) String() string {
	switch s {
	case Fetched:
		return "fetched"
	case SkippedHidden:
		return "skipped: hidden"
	case SkippedMalformed:
		return "skipped: malformed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type FeedOutcome struct {
	Category string     `json:"category"`
	URL      string     `json:"url"`
	Status   FeedStatus `json:"-"`
	State    string     `json:"status"`
	Accepted int        `json:"accepted"`
	Dropped  int        `json:"dropped"`
	Error    string     `json:"error,omitempty"`
}

// Report 一次聚合的汇总，供日志与 CLI 展示
type Report struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Feeds     []FeedOutcome `json:"feeds"`
}

func (r Report) Accepted() int {
	n := 0
	for _, f := range r.Feeds {
		n += f.Accepted
	}
	return n
}

func (r Report) Dropped() int {
	n := 0
	for _, f := range r.Feeds {
		n += f.Dropped
	}
	return n
}

// Count 统计某种状态的 feed 数
func (r Report) Count(s FeedStatus) int {
	n := 0
	for _, f := range r.Feeds {
		if f.Status == s {
			n++
		}
	}
	return n
}

// Aggregator 遍历注册表拉取所有 feed 并归一化
type Aggregator struct {
	fetcher      collector.FeedFetcher
	perFeedLimit int
	concurrency  int
	now          func() time.Time
	log          *slog.Logger
}

type Option func(*Aggregator)

func WithPerFeedLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.perFeedLimit = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

func WithLogger(l *slog.Logger) Option { return func(a *Aggregator) { a.log = l } }

func New(fetcher collector.FeedFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher:      fetcher,
		perFeedLimit: DefaultPerFeedLimit,
		concurrency:  defaultConcurrency,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logger.OrDefault(a.log)
	return a
}

type feedResult struct {
	articles []processor.Article
	outcome  FeedOutcome
}

// Aggregate 按“分类 → feed → entry”的顺序返回归一化后的文章。
// 单个 feed 或 entry 的失败只会被记录并跳过，不会中断整轮聚合。
func (a *Aggregator) Aggregate(ctx context.Context, reg *registry.Registry, hidden map[string]struct{}) ([]processor.Article, Report) {
	fetchTime := a.now()
	entries := reg.Entries()
	results := make([]feedResult, len(entries))

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, a.concurrency)
	)
	for i, e := range entries {
		if _, ok := hidden[e.URL]; ok {
			results[i] = feedResult{outcome: FeedOutcome{Category: e.Category, URL: e.URL, Status: SkippedHidden}}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, e registry.Entry) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = a.collect(ctx, e, fetchTime)
		}(i, e)
	}
	wg.Wait()

	report := Report{StartedAt: fetchTime, Feeds: make([]FeedOutcome, 0, len(results))}
	var out []processor.Article
	for _, r := range results {
		r.outcome.State = r.outcome.Status.String()
		report.Feeds = append(report.Feeds, r.outcome)
		out = append(out, r.articles...)
	}
	report.Duration = a.now().Sub(fetchTime)

	a.log.Info("aggregator: done",
		"feeds", len(entries),
		"hidden", report.Count(SkippedHidden),
		"malformed", report.Count(SkippedMalformed),
		"failed", report.Count(Failed),
		"accepted", report.Accepted(),
		"dropped", report.Dropped(),
	)
	return out, report
}

// collect 拉取单个 feed；先截取前 perFeedLimit 条原始 entry，再逐条归一化
func (a *Aggregator) collect(ctx context.Context, e registry.Entry, fetchTime time.Time) (res feedResult) {
	res.outcome = FeedOutcome{Category: e.Category, URL: e.URL}

	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("aggregator: feed panicked", "url", e.URL, "panic", r)
			res = feedResult{outcome: FeedOutcome{Category: e.Category, URL: e.URL, Status: Failed, Error: "panic during fetch"}}
		}
	}()

	items, err := a.fetcher.Fetch(ctx, e.URL)
	if err != nil {
		if errors.Is(err, collector.ErrMalformedFeed) {
			res.outcome.Status = SkippedMalformed
		} else {
			res.outcome.Status = Failed
		}
		res.outcome.Error = err.Error()
		a.log.Warn("aggregator: skip feed", "url", e.URL, "status", res.outcome.Status.String(), "error", err)
		return res
	}

	res.outcome.Status = Fetched
	site := processor.SiteOf(e.URL)
	for _, item := range limit(items, a.perFeedLimit) {
		r := processor.Normalize(item, e.Category, site, fetchTime)
		if !r.OK() {
			res.outcome.Dropped++
			a.log.Warn("aggregator: drop entry", "url", e.URL, "status", r.Status.String(), "reason", r.Reason)
			continue
		}
		res.articles = append(res.articles, r.Article)
		res.outcome.Accepted++
	}
	return res
}

func limit(items []*gofeed.Item, n int) []*gofeed.Item {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
