package registry

import (
	"errors"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrDuplicateFeed   = errors.New("feed already registered")
)

// Category 一个分类及其下按顺序排列的 feed 地址
type Category struct {
	Name  string   `yaml:"name" json:"name"`
	Feeds []string `yaml:"feeds" json:"feeds"`
}

// Entry 即 (category, url) 二元组
type Entry struct {
	Category string `json:"category"`
	URL      string `json:"url"`
}

// Registry 有序的分类列表；分类顺序与 feed 顺序决定聚合输出顺序
type Registry struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// LoadFile 从 YAML 读取 feed 注册表，文件不存在时使用内置默认列表
//
//	categories:
//	  - name: World News
//	    feeds:
//	      - https://feeds.bbci.co.uk/news/world/rss.xml
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, oops.In("registry").With("path", path).Wrap(err)
	}

	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, oops.In("registry").With("path", path).Wrapf(err, "decode feeds file")
	}
	r.normalize()
	return &r, nil
}

// normalize 去掉空白与分类内重复的 URL，保持原有顺序
func (r *Registry) normalize() {
	cats := make([]Category, 0, len(r.Categories))
	for _, c := range r.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		feeds := lo.Uniq(lo.FilterMap(c.Feeds, func(u string, _ int) (string, bool) {
			u = strings.TrimSpace(u)
			return u, u != ""
		}))
		cats = append(cats, Category{Name: name, Feeds: feeds})
	}
	r.Categories = cats
}

// Clone 深拷贝，避免调用方修改共享的注册表
func (r *Registry) Clone() *Registry {
	out := &Registry{Categories: make([]Category, len(r.Categories))}
	for i, c := range r.Categories {
		out.Categories[i] = Category{Name: c.Name, Feeds: append([]string(nil), c.Feeds...)}
	}
	return out
}

// Merge 返回加入额外条目后的新注册表；新分类追加到末尾
func (r *Registry) Merge(extra []Entry) *Registry {
	out := r.Clone()
	for _, e := range extra {
		_ = out.add(e)
	}
	return out
}

func (r *Registry) add(e Entry) error {
	cat := strings.TrimSpace(e.Category)
	u := strings.TrimSpace(e.URL)
	if cat == "" || u == "" {
		return oops.In("registry").With("category", cat, "url", u).Errorf("empty category or url")
	}
	for i := range r.Categories {
		if r.Categories[i].Name != cat {
			continue
		}
		if lo.Contains(r.Categories[i].Feeds, u) {
			return ErrDuplicateFeed
		}
		r.Categories[i].Feeds = append(r.Categories[i].Feeds, u)
		return nil
	}
	r.Categories = append(r.Categories, Category{Name: cat, Feeds: []string{u}})
	return nil
}

// Entries 按分类优先、feed 其次的顺序展开
func (r *Registry) Entries() []Entry {
	var out []Entry
	for _, c := range r.Categories {
		for _, u := range c.Feeds {
			out = append(out, Entry{Category: c.Name, URL: u})
		}
	}
	return out
}

func (r *Registry) CategoryNames() []string {
	return lo.Map(r.Categories, func(c Category, _ int) string { return c.Name })
}

func (r *Registry) HasCategory(name string) bool {
	return lo.ContainsBy(r.Categories, func(c Category) bool { return c.Name == name })
}

// Contains 判断 URL 是否已注册在任一分类下
func (r *Registry) Contains(url string) bool {
	return lo.ContainsBy(r.Entries(), func(e Entry) bool { return e.URL == url })
}

func (r *Registry) Total() int {
	return lo.SumBy(r.Categories, func(c Category) int { return len(c.Feeds) })
}

// Default 内置的默认 feed 列表
func Default() *Registry {
	return &Registry{Categories: []Category{
		{Name: "World News", Feeds: []string{
			"https://feeds.bbci.co.uk/news/world/rss.xml",
			"https://rss.cnn.com/rss/edition_world.rss",
			"https://www.aljazeera.com/xml/rss/all.xml",
		}},
		{Name: "Technology", Feeds: []string{
			"https://feeds.arstechnica.com/arstechnica/index",
			"https://www.theverge.com/rss/index.xml",
			"https://hnrss.org/frontpage",
		}},
		{Name: "Business", Feeds: []string{
			"https://feeds.bbci.co.uk/news/business/rss.xml",
			"https://www.cnbc.com/id/100003114/device/rss/rss.html",
		}},
		{Name: "Science", Feeds: []string{
			"https://www.sciencedaily.com/rss/all.xml",
			"https://www.nasa.gov/rss/dyn/breaking_news.rss",
		}},
	}}
}
