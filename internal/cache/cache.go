package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/InTheLoop/internal/logger"
	"github.com/LJTian/InTheLoop/internal/processor"
)

const (
	DefaultWindow  = 30 * time.Minute
	DefaultTimeout = 5 * time.Minute
)

// Entry 一次聚合结果的不可变快照；写入后不再修改
type Entry struct {
	Articles   []processor.Article `json:"articles"`
	ComputedAt time.Time           `json:"computedAt"`
}

// Source 产生新的文章序列，一般是 Aggregator 的封装。
// 返回 error 表示这次没有得到可信的结果，缓存保留原快照。
type Source func(ctx context.Context) ([]processor.Article, error)

// Mirror 快照的外部镜像（例如 Redis），用于进程重启后预热
type Mirror interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context) (Entry, bool, error)
}

// ArticleCache 持有最近一次聚合结果，在新鲜度窗口内直接复用。
// 读路径无锁；重算时整体替换快照，最后写入者生效。
type ArticleCache struct {
	source  Source
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
	mirror  Mirror
	log     *slog.Logger

	current atomic.Pointer[Entry]
	writeMu sync.Mutex
}

type Option func(*ArticleCache)

func WithWindow(d time.Duration) Option {
	return func(c *ArticleCache) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithTimeout 单次聚合的时间上限，与调用方的 ctx 无关
func WithTimeout(d time.Duration) Option {
	return func(c *ArticleCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(c *ArticleCache) { c.now = now } }

func WithMirror(m Mirror) Option { return func(c *ArticleCache) { c.mirror = m } }

func WithLogger(l *slog.Logger) Option { return func(c *ArticleCache) { c.log = l } }

func New(source Source, opts ...Option) *ArticleCache {
	c := &ArticleCache{
		source:  source,
		window:  DefaultWindow,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log)
	return c
}

func (c *ArticleCache) Window() time.Duration { return c.window }

// Get 非强制刷新且快照仍新鲜时原样返回；否则重新聚合并替换快照
func (c *ArticleCache) Get(ctx context.Context, force bool) Entry {
	if !force {
		if e := c.current.Load(); e != nil && c.fresh(*e) {
			return *e
		}
	}
	return c.refresh(ctx)
}

// Peek 只读当前快照，不触发聚合
func (c *ArticleCache) Peek() (Entry, bool) {
	e := c.current.Load()
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

func (c *ArticleCache) fresh(e Entry) bool {
	return c.now().Sub(e.ComputedAt) < c.window
}

// refresh 聚合在锁外执行，并发刷新可能重复计算，写入时只做一次指针替换。
// 聚合不跟随调用方的取消，只受缓存自己的超时约束；失败时快照和时间戳都不变。
func (c *ArticleCache) refresh(ctx context.Context) Entry {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	articles, err := c.source(ctx)
	if err != nil {
		prev, ok := c.Peek()
		c.log.Warn("cache: refresh failed, keeping previous snapshot", "error", err, "has_previous", ok)
		if !ok {
			// 不写入，下一次读取会重试
			return Entry{Articles: []processor.Article{}}
		}
		return prev
	}
	if articles == nil {
		articles = []processor.Article{}
	}

	c.writeMu.Lock()
	e := &Entry{Articles: articles, ComputedAt: c.now()}
	c.current.Store(e)
	c.writeMu.Unlock()

	c.log.Info("cache: refreshed", "articles", len(articles), "computed_at", e.ComputedAt)

	if c.mirror != nil {
		if err := c.mirror.Save(ctx, *e); err != nil {
			c.log.Warn("cache: mirror save failed", "error", err)
		}
	}
	return *e
}

// Warm 启动时从镜像恢复快照；只在本地还没有快照时生效。
// 恢复的快照同样受新鲜度窗口约束，过期的只能被 Peek 读到。
func (c *ArticleCache) Warm(ctx context.Context) bool {
	if c.mirror == nil {
		return false
	}
	e, ok, err := c.mirror.Load(ctx)
	if err != nil {
		c.log.Warn("cache: mirror load failed", "error", err)
		return false
	}
	if !ok {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.current.Load() != nil {
		return false
	}
	c.current.Store(&e)
	c.log.Info("cache: warmed from mirror", "articles", len(e.Articles), "computed_at", e.ComputedAt, "fresh", c.fresh(e))
	return true
}
