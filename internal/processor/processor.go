package processor

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	DefaultAuthor  = "N/A"
	DefaultSummary = "No summary available"
)

// Article 是归一化后的统一文章结构，缓存与热词提取都基于它
type Article struct {
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"`
	Category  string    `json:"category"`
	Site      string    `json:"site"`
	Published time.Time `json:"published"`
}

// Status 描述单条 entry 的归一化结果
type Status int

const (
	Accepted Status = iota
	DroppedMissingTitle
	DroppedMissingLink
	DroppedInvalid
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case DroppedMissingTitle:
		return "dropped: missing title"
	case DroppedMissingLink:
		return "dropped: missing link"
	case DroppedInvalid:
		return "dropped: invalid entry"
	default:
		return "unknown"
	}
}

type Result struct {
	Article Article
	Status  Status
	Reason  string
}

func (r Result) OK() bool { return r.Status == Accepted }

// 原始字符串时间的兜底解析格式，gofeed 未能解析时再试一次
var rawTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize 把一条原始 feed entry 转成 Article；任何异常都转为 Dropped 结果，不会中断整条 feed
func Normalize(item *gofeed.Item, category, site string, fetchTime time.Time) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: DroppedInvalid, Reason: fmt.Sprintf("recovered: %v", r)}
		}
	}()

	if item == nil {
		return Result{Status: DroppedInvalid, Reason: "nil entry"}
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Result{Status: DroppedMissingTitle, Reason: "entry has no title"}
	}
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return Result{Status: DroppedMissingLink, Reason: fmt.Sprintf("entry %q has no link", title)}
	}

	return Result{
		Status: Accepted,
		Article: Article{
			Title:     title,
			Author:    authorOf(item),
			Link:      link,
			Summary:   summaryOf(item),
			Category:  category,
			Site:      site,
			Published: PublishedAt(item, fetchTime),
		},
	}
}

func authorOf(item *gofeed.Item) string {
	if item.Author != nil {
		if name := strings.TrimSpace(item.Author.Name); name != "" {
			return name
		}
	}
	for _, p := range item.Authors {
		if p == nil {
			continue
		}
		if name := strings.TrimSpace(p.Name); name != "" {
			return name
		}
	}
	return DefaultAuthor
}

func summaryOf(item *gofeed.Item) string {
	if s := strings.TrimSpace(item.Description); s != "" {
		return item.Description
	}
	return DefaultSummary
}

// PublishedAt 依次尝试 published → updated → 原始字符串 → fetchTime，最后一步不会失败
func PublishedAt(item *gofeed.Item, fetchTime time.Time) time.Time {
	if t, ok := validTime(item.PublishedParsed); ok {
		return t
	}
	if t, ok := validTime(item.UpdatedParsed); ok {
		return t
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if t, ok := parseRawTime(raw); ok {
			return t
		}
	}
	return fetchTime
}

func validTime(t *time.Time) (time.Time, bool) {
	if t == nil || t.IsZero() {
		return time.Time{}, false
	}
	if y := t.Year(); y < 1970 || y > 9999 {
		return time.Time{}, false
	}
	return *t, true
}

func parseRawTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range rawTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return validTime(&t)
		}
	}
	return time.Time{}, false
}

// SiteOf 取 feed URL 的 host 作为来源展示名
func SiteOf(feedURL string) string {
	u, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
