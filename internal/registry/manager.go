package registry

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/LJTian/InTheLoop/internal/collector"
	"github.com/LJTian/InTheLoop/internal/processor"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

var ErrInvalidURL = errors.New("feed url must be an absolute http(s) url")

// FeedStore 用户手动添加的 feed 持久化
type FeedStore interface {
	ListCustomFeeds(ctx context.Context) ([]Entry, error)
	AddCustomFeed(ctx context.Context, e Entry, meta map[string]any) error
}

// Discoverer 从站点页面解析出 feed 地址
type Discoverer interface {
	Discover(ctx context.Context, pageURL string) (string, error)
}

// FeedInfo feed 管理页面展示的一行
type FeedInfo struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Hidden   bool   `json:"hidden"`
}

// Manager 组合内置注册表、用户添加的 feed 与隐藏集合
type Manager struct {
	base   *Registry
	hidden HiddenSet
	store  FeedStore

	prober     collector.FeedFetcher
	discoverer Discoverer

	// store 为空时用户添加的 feed 只保存在内存
	mu     sync.RWMutex
	extras []Entry
}

type ManagerOption func(*Manager)

func WithFeedStore(s FeedStore) ManagerOption { return func(m *Manager) { m.store = s } }

// WithProber 添加 feed 前先试拉取一次，确认可解析
func WithProber(f collector.FeedFetcher) ManagerOption { return func(m *Manager) { m.prober = f } }

func WithDiscoverer(d Discoverer) ManagerOption { return func(m *Manager) { m.discoverer = d } }

func NewManager(base *Registry, hidden HiddenSet, opts ...ManagerOption) *Manager {
	m := &Manager{base: base.Clone(), hidden: hidden}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current 当前生效的注册表（内置 + 用户添加）
func (m *Manager) Current(ctx context.Context) (*Registry, error) {
	extras, err := m.customFeeds(ctx)
	if err != nil {
		return nil, err
	}
	return m.base.Merge(extras), nil
}

func (m *Manager) customFeeds(ctx context.Context) ([]Entry, error) {
	if m.store != nil {
		return m.store.ListCustomFeeds(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.extras...), nil
}

// HiddenURLs 当前隐藏集合
func (m *Manager) HiddenURLs(ctx context.Context) (map[string]struct{}, error) {
	return m.hidden.Hidden(ctx)
}

// Active 列出所有 feed 及其隐藏状态，顺序与注册表一致
func (m *Manager) Active(ctx context.Context) ([]FeedInfo, error) {
	reg, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	hidden, err := m.hidden.Hidden(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(reg.Entries(), func(e Entry, _ int) FeedInfo {
		_, h := hidden[e.URL]
		return FeedInfo{Name: processor.SiteOf(e.URL), URL: e.URL, Category: e.Category, Hidden: h}
	}), nil
}

// Available 按分类返回全部 feed 以及总数
func (m *Manager) Available(ctx context.Context) (map[string][]string, int, error) {
	reg, err := m.Current(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make(map[string][]string, len(reg.Categories))
	for _, c := range reg.Categories {
		out[c.Name] = append([]string(nil), c.Feeds...)
	}
	return out, reg.Total(), nil
}

func (m *Manager) Hide(ctx context.Context, u string) error {
	u = strings.TrimSpace(u)
	if u == "" {
		return ErrInvalidURL
	}
	return m.hidden.Hide(ctx, u)
}

func (m *Manager) Unhide(ctx context.Context, u string) error {
	u = strings.TrimSpace(u)
	if u == "" {
		return ErrInvalidURL
	}
	return m.hidden.Unhide(ctx, u)
}

// Add 添加用户 feed；如果给的是网页地址，会尝试发现其声明的 feed。返回最终登记的 URL
func (m *Manager) Add(ctx context.Context, rawURL, category string) (string, error) {
	feedURL, err := validateURL(rawURL)
	if err != nil {
		return "", err
	}
	category = strings.TrimSpace(category)

	reg, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	if !reg.HasCategory(category) {
		return "", oops.In("registry").With("category", category).Wrap(ErrUnknownCategory)
	}

	meta := map[string]any{}
	if m.prober != nil {
		resolved, err := m.probe(ctx, feedURL)
		if err != nil {
			return "", err
		}
		if resolved != feedURL {
			meta["discovered_from"] = feedURL
			feedURL = resolved
		}
	}

	if reg.Contains(feedURL) {
		return "", oops.In("registry").With("url", feedURL).Wrap(ErrDuplicateFeed)
	}

	entry := Entry{Category: category, URL: feedURL}
	if m.store != nil {
		if err := m.store.AddCustomFeed(ctx, entry, meta); err != nil {
			return "", err
		}
		return feedURL, nil
	}

	m.mu.Lock()
	m.extras = append(m.extras, entry)
	m.mu.Unlock()
	return feedURL, nil
}

// probe 能直接解析则原样返回；解析失败且配置了 discoverer 时按页面声明的 feed 重试一次
func (m *Manager) probe(ctx context.Context, feedURL string) (string, error) {
	_, err := m.prober.Fetch(ctx, feedURL)
	if err == nil {
		return feedURL, nil
	}
	if !errors.Is(err, collector.ErrMalformedFeed) || m.discoverer == nil {
		return "", err
	}

	found, derr := m.discoverer.Discover(ctx, feedURL)
	if derr != nil {
		return "", oops.In("registry").With("url", feedURL).Wrap(errors.Join(err, derr))
	}
	if _, err := m.prober.Fetch(ctx, found); err != nil {
		return "", err
	}
	return found, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", oops.In("registry").With("url", raw).Wrap(ErrInvalidURL)
	}
	return raw, nil
}
