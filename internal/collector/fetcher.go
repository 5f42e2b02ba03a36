package collector

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/LJTian/InTheLoop/internal/retry"
	"github.com/mmcdole/gofeed"
	"github.com/samber/oops"
)

const (
	feedUserAgent       = "InTheLoopBot/1.0"
	defaultFetchTimeout = 15 * time.Second
	defaultRetryDelay   = time.Second
)

// ErrMalformedFeed 表示内容能取到但无法解析为 RSS/Atom/JSON Feed，调用方应跳过该 feed
var ErrMalformedFeed = errors.New("malformed feed")

// FeedFetcher 抽象“给定 URL 返回原始 entry 列表”的外部协作者
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]*gofeed.Item, error)
}

// GofeedFetcher 使用 gofeed 拉取并解析 feed，自带超时与传输层重试
type GofeedFetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	retries int
	delay   time.Duration
}

func NewGofeedFetcher(timeout time.Duration, retries int) *GofeedFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if retries < 0 {
		retries = 0
	}
	p := gofeed.NewParser()
	p.UserAgent = feedUserAgent
	p.Client = &http.Client{Timeout: timeout}
	return &GofeedFetcher{parser: p, timeout: timeout, retries: retries, delay: defaultRetryDelay}
}

func (f *GofeedFetcher) Fetch(ctx context.Context, url string) ([]*gofeed.Item, error) {
	var items []*gofeed.Item

	err := retry.Do(ctx, retry.Config{
		MaxAttempts: f.retries + 1,
		Delay:       f.delay,
		Backoff:     true,
		Retryable:   isTransient,
	}, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		feed, err := f.parser.ParseURLWithContext(url, attemptCtx)
		if err != nil {
			return classify(err)
		}
		items = feed.Items
		return nil
	})
	if err != nil {
		return nil, oops.In("collector").With("url", url).Wrap(err)
	}
	return items, nil
}

// classify 把解析失败统一为 ErrMalformedFeed，其余错误原样返回
func classify(err error) error {
	var (
		syntaxErr *xml.SyntaxError
		jsonErr   *json.SyntaxError
	)
	switch {
	case errors.Is(err, gofeed.ErrFeedTypeNotDetected),
		errors.As(err, &syntaxErr),
		errors.As(err, &jsonErr):
		return errors.Join(ErrMalformedFeed, err)
	}
	return err
}

// isTransient 解析错误与 4xx 不重试，网络错误与 5xx 重试
func isTransient(err error) bool {
	if errors.Is(err, ErrMalformedFeed) {
		return false
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
