package collector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/samber/oops"
)

// ErrNoFeedLink 页面上没有声明任何 feed 链接
var ErrNoFeedLink = errors.New("no feed link advertised")

var feedMIMETypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
	"application/json",
	"application/xml",
	"text/xml",
}

// Discoverer 从站点首页的 <link rel="alternate"> 中找出 feed 地址
type Discoverer struct {
	timeout time.Duration
}

func NewDiscoverer(timeout time.Duration) *Discoverer {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Discoverer{timeout: timeout}
}

// Discover 返回页面声明的第一个 feed 的绝对地址
func (d *Discoverer) Discover(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(feedUserAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(d.timeout)

	var found string
	c.OnHTML(`link[rel="alternate"]`, func(e *colly.HTMLElement) {
		if found != "" {
			return
		}
		if !isFeedType(e.Attr("type")) {
			return
		}
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" {
			return
		}
		found = e.Request.AbsoluteURL(href)
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = oops.With("status", r.StatusCode).Wrap(err)
	})

	if err := c.Visit(pageURL); err != nil {
		return "", oops.In("collector").With("url", pageURL).Wrap(err)
	}
	c.Wait()

	if visitErr != nil {
		return "", oops.In("collector").With("url", pageURL).Wrap(visitErr)
	}
	if found == "" {
		return "", oops.In("collector").With("url", pageURL).Wrap(ErrNoFeedLink)
	}
	return found, nil
}

func isFeedType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.Index(t, ";"); i != -1 {
		t = strings.TrimSpace(t[:i])
	}
	for _, ft := range feedMIMETypes {
		if t == ft {
			return true
		}
	}
	return false
}
