package processor

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestNormalizeFillsDefaults(t *testing.T) {
	fetch := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	item := &gofeed.Item{
		Title: "  Title 1  ",
		Link:  "https://example.com/1",
	}

	res := Normalize(item, "tech", "example.com", fetch)
	if !res.OK() {
		t.Fatalf("expected accepted, got %v (%s)", res.Status, res.Reason)
	}
	a := res.Article
	if a.Title != "Title 1" {
		t.Fatalf("title should be trimmed: %q", a.Title)
	}
	if a.Author != DefaultAuthor {
		t.Fatalf("author = %q, want %q", a.Author, DefaultAuthor)
	}
	if a.Summary != DefaultSummary {
		t.Fatalf("summary = %q, want %q", a.Summary, DefaultSummary)
	}
	if !a.Published.Equal(fetch) {
		t.Fatalf("published = %v, want fetch time %v", a.Published, fetch)
	}
	if a.Category != "tech" || a.Site != "example.com" {
		t.Fatalf("category/site not propagated: %+v", a)
	}
}

func TestNormalizeDropsMissingRequiredFields(t *testing.T) {
	fetch := time.Now()
	cases := []struct {
		name string
		item *gofeed.Item
		want Status
	}{
		{"nil", nil, DroppedInvalid},
		{"no title", &gofeed.Item{Link: "https://example.com/x"}, DroppedMissingTitle},
		{"blank title", &gofeed.Item{Title: "   ", Link: "https://example.com/x"}, DroppedMissingTitle},
		{"no link", &gofeed.Item{Title: "t"}, DroppedMissingLink},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := Normalize(c.item, "news", "example.com", fetch)
			if res.Status != c.want {
				t.Fatalf("status = %v, want %v", res.Status, c.want)
			}
			if res.OK() {
				t.Fatalf("dropped entry should not be OK")
			}
		})
	}
}

func TestNormalizeAuthorFallbacks(t *testing.T) {
	fetch := time.Now()
	item := &gofeed.Item{
		Title:   "t",
		Link:    "https://example.com/a",
		Authors: []*gofeed.Person{nil, {Name: " "}, {Name: "Jane Doe"}},
	}
	if got := Normalize(item, "c", "s", fetch).Article.Author; got != "Jane Doe" {
		t.Fatalf("author = %q, want Jane Doe", got)
	}

	item.Author = &gofeed.Person{Name: "Primary"}
	if got := Normalize(item, "c", "s", fetch).Article.Author; got != "Primary" {
		t.Fatalf("author = %q, want Primary", got)
	}
}

func TestPublishedAtResolutionOrder(t *testing.T) {
	fetch := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	upd := time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		item *gofeed.Item
		want time.Time
	}{
		{"published wins", &gofeed.Item{PublishedParsed: timePtr(pub), UpdatedParsed: timePtr(upd)}, pub},
		{"updated when no published", &gofeed.Item{UpdatedParsed: timePtr(upd)}, upd},
		{"zero published falls through", &gofeed.Item{PublishedParsed: timePtr(time.Time{}), UpdatedParsed: timePtr(upd)}, upd},
		{"out of range falls through", &gofeed.Item{PublishedParsed: timePtr(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC))}, fetch},
		{"raw string", &gofeed.Item{Published: "Tue, 30 Apr 2024 08:00:00 +0000"}, pub},
		{"garbage raw string", &gofeed.Item{Published: "yesterday-ish"}, fetch},
		{"nothing", &gofeed.Item{}, fetch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := PublishedAt(c.item, fetch); !got.Equal(c.want) {
				t.Fatalf("PublishedAt = %v, want %v", got, c.want)
			}
		})
	}
}

func TestNormalizeKeepsSummaryMarkup(t *testing.T) {
	item := &gofeed.Item{Title: "t", Link: "https://example.com/a", Description: "<p>Hello</p>"}
	if got := Normalize(item, "c", "s", time.Now()).Article.Summary; got != "<p>Hello</p>" {
		t.Fatalf("summary should keep markup for the renderer, got %q", got)
	}
}

func TestSiteOf(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://feeds.bbci.co.uk/news/rss.xml", "feeds.bbci.co.uk"},
		{"https://www.Example.com/feed", "example.com"},
		{"http://example.com:8080/rss", "example.com"},
		{"not a url", "unknown"},
		{"", "unknown"},
	}
	for _, c := range cases {
		if got := SiteOf(c.in); got != c.want {
			t.Fatalf("SiteOf(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
