package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/InTheLoop/internal/aggregator"
	"github.com/LJTian/InTheLoop/internal/cache"
	"github.com/LJTian/InTheLoop/internal/logger"
	"github.com/LJTian/InTheLoop/internal/processor"
	"github.com/LJTian/InTheLoop/internal/registry"
	"github.com/LJTian/InTheLoop/internal/trending"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FeedSource 提供当前注册表与隐藏集合，registry.Manager 实现了它
type FeedSource interface {
	Current(ctx context.Context) (*registry.Registry, error)
	HiddenURLs(ctx context.Context) (map[string]struct{}, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, reg *registry.Registry, hidden map[string]struct{}) ([]processor.Article, aggregator.Report)
}

// TrendCache 按 (快照时间, topN) 缓存热门话题；未命中总是重算
type TrendCache interface {
	GetTrending(ctx context.Context, computedAt time.Time, topN int) (TrendingResult, bool, error)
	SetTrending(ctx context.Context, r TrendingResult, topN int) error
}

type Query struct {
	ForceRefresh bool
	Category     string
	Search       string
}

type Listing struct {
	Articles []processor.Article `json:"articles"`
	CachedAt time.Time           `json:"cached"`
	Total    int                 `json:"total"`
}

type TrendingResult struct {
	Topics       []trending.Topic `json:"topics"`
	ComputedAt   time.Time        `json:"computedAt"`
	ArticleCount int              `json:"articleCount"`
}

// Pipeline 对外的两个入口：文章列表与热门话题
type Pipeline struct {
	feeds      FeedSource
	agg        Aggregator
	cache      *cache.ArticleCache
	trendOpts  trending.Options
	trendCache TrendCache
	now        func() time.Time
	log        *slog.Logger

	cacheOpts []cache.Option

	mu         sync.RWMutex
	lastReport aggregator.Report
}

type Option func(*Pipeline)

func WithCacheOptions(opts ...cache.Option) Option {
	return func(p *Pipeline) { p.cacheOpts = append(p.cacheOpts, opts...) }
}

func WithTrendingOptions(o trending.Options) Option { return func(p *Pipeline) { p.trendOpts = o } }

func WithTrendCache(c TrendCache) Option { return func(p *Pipeline) { p.trendCache = c } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

func New(feeds FeedSource, agg Aggregator, opts ...Option) *Pipeline {
	p := &Pipeline{
		feeds:     feeds,
		agg:       agg,
		trendOpts: trending.DefaultOptions(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrDefault(p.log)

	cacheOpts := append([]cache.Option{cache.WithClock(p.now), cache.WithLogger(p.log)}, p.cacheOpts...)
	p.cache = cache.New(p.collect, cacheOpts...)
	return p
}

// collect 是缓存的数据源。注册表不可用或聚合被超时打断时返回错误，缓存保留原快照
func (p *Pipeline) collect(ctx context.Context) ([]processor.Article, error) {
	reg, err := p.feeds.Current(ctx)
	if err != nil {
		return nil, oops.In("pipeline").Wrapf(err, "load registry")
	}

	hidden, err := p.feeds.HiddenURLs(ctx)
	if err != nil {
		p.log.Warn("pipeline: load hidden feeds failed, aggregating all", "error", err)
		hidden = nil
	}

	articles, report := p.agg.Aggregate(ctx, reg, hidden)
	if err := ctx.Err(); err != nil {
		return nil, oops.In("pipeline").With("feeds", len(report.Feeds)).Wrapf(err, "aggregation interrupted")
	}

	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()
	return articles, nil
}

// Warm 从镜像恢复快照
func (p *Pipeline) Warm(ctx context.Context) bool { return p.cache.Warm(ctx) }

// LastReport 最近一次聚合的 feed 结果
func (p *Pipeline) LastReport() aggregator.Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReport
}

// GetArticles 在缓存快照上按分类（精确匹配）和关键字（标题或摘要，不区分大小写）过滤
func (p *Pipeline) GetArticles(ctx context.Context, q Query) Listing {
	e := p.cache.Get(ctx, q.ForceRefresh)
	return Listing{
		Articles: Filter(e.Articles, q.Category, q.Search),
		CachedAt: e.ComputedAt,
		Total:    len(e.Articles),
	}
}

// Refresh 强制重新聚合
func (p *Pipeline) Refresh(ctx context.Context) Listing {
	return p.GetArticles(ctx, Query{ForceRefresh: true})
}

// GetTrending 基于当前（非强制刷新的）快照计算热门话题
func (p *Pipeline) GetTrending(ctx context.Context, topN int) TrendingResult {
	if topN <= 0 {
		topN = p.trendOpts.TopN
	}
	e := p.cache.Get(ctx, false)

	if p.trendCache != nil {
		r, ok, err := p.trendCache.GetTrending(ctx, e.ComputedAt, topN)
		if err != nil {
			p.log.Warn("pipeline: trending cache read failed", "error", err)
		} else if ok {
			return r
		}
	}

	opts := p.trendOpts
	opts.TopN = topN
	r := TrendingResult{
		Topics:       trending.Extract(e.Articles, opts, p.now()),
		ComputedAt:   e.ComputedAt,
		ArticleCount: len(e.Articles),
	}

	if p.trendCache != nil {
		if err := p.trendCache.SetTrending(ctx, r, topN); err != nil {
			p.log.Warn("pipeline: trending cache write failed", "error", err)
		}
	}
	return r
}

// Filter 分类为空或关键字为空时不做对应过滤
func Filter(articles []processor.Article, category, search string) []processor.Article {
	category = strings.TrimSpace(category)
	search = strings.ToLower(strings.TrimSpace(search))
	if category == "" && search == "" {
		return articles
	}
	return lo.Filter(articles, func(a processor.Article, _ int) bool {
		if category != "" && a.Category != category {
			return false
		}
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(a.Title), search) ||
			strings.Contains(strings.ToLower(a.Summary), search)
	})
}
