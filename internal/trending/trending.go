package trending

import (
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/InTheLoop/internal/processor"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Options 提取参数；阈值保持可配置
type Options struct {
	TopN           int
	Window         time.Duration
	MinPhraseCount int
	MinWordCount   int
	MinWordLen     int
	PhraseWeight   int
	MaxSamples     int
	// PhraseGuard 单词候选只与得分最高的前 PhraseGuard 个短语比较子串
	PhraseGuard int
	// ChunkSize 并发分词时每块的文章数
	ChunkSize int
}

func DefaultOptions() Options {
	return Options{
		TopN:           10,
		Window:         24 * time.Hour,
		MinPhraseCount: 3,
		MinWordCount:   4,
		MinWordLen:     4,
		PhraseWeight:   2,
		MaxSamples:     3,
		PhraseGuard:    10,
		ChunkSize:      64,
	}
}

// withDefaults 零值字段回落到默认值
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.MinPhraseCount <= 0 {
		o.MinPhraseCount = d.MinPhraseCount
	}
	if o.MinWordCount <= 0 {
		o.MinWordCount = d.MinWordCount
	}
	if o.MinWordLen <= 0 {
		o.MinWordLen = d.MinWordLen
	}
	if o.PhraseWeight <= 0 {
		o.PhraseWeight = d.PhraseWeight
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = d.MaxSamples
	}
	if o.PhraseGuard <= 0 {
		o.PhraseGuard = d.PhraseGuard
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

type SampleArticle struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Site     string `json:"site"`
	Category string `json:"category"`
}

type Topic struct {
	Label        string          `json:"label"`
	MentionCount int             `json:"mention_count"`
	Articles     []SampleArticle `json:"sample_articles"`
}

type candidate struct {
	label  string
	score  int
	phrase bool
	tokens int
}

// less 得分降序；同分时短语优先、词数少的优先，最后按标签字典序
func (c candidate) less(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	if c.phrase != o.phrase {
		return c.phrase
	}
	if c.tokens != o.tokens {
		return c.tokens < o.tokens
	}
	return c.label < o.label
}

// Extract 从文章集合中提取热门话题，最多返回 opts.TopN 个。
// 没有落在时间窗口内的文章时返回空切片。
func Extract(articles []processor.Article, opts Options, now time.Time) []Topic {
	opts = opts.withDefaults()

	recent := Recent(articles, opts.Window, now)
	if len(recent) == 0 {
		return []Topic{}
	}

	table := count(recent, opts.ChunkSize)
	ranked := rank(table, opts)

	// Caser 带内部状态，不能跨 goroutine 共享
	titler := cases.Title(language.English)
	topics := make([]Topic, 0, len(ranked))
	for _, c := range ranked {
		mentions := c.score
		if c.phrase {
			mentions = c.score / opts.PhraseWeight
		}
		topics = append(topics, Topic{
			Label:        titler.String(c.label),
			MentionCount: mentions,
			Articles:     samples(recent, c.label, opts.MaxSamples),
		})
	}
	return topics
}

// Recent 保留 published 落在 [now-window, now+window] 内的文章；零值时间视为不新鲜
func Recent(articles []processor.Article, window time.Duration, now time.Time) []processor.Article {
	return lo.Filter(articles, func(a processor.Article, _ int) bool {
		if a.Published.IsZero() {
			return false
		}
		age := now.Sub(a.Published)
		return age <= window && age >= -window
	})
}

// count 按块并发分词，并发数不超过 GOMAXPROCS，各块结果按块序合并
func count(articles []processor.Article, chunkSize int) counts {
	chunks := lo.Chunk(articles, chunkSize)
	partial := make([]counts, len(chunks))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, chunk := range chunks {
		g.Go(func() error {
			c := newCounts()
			for _, a := range chunk {
				c.add(Tokenize(a.Title + " " + a.Summary))
			}
			partial[i] = c
			return nil
		})
	}
	g.Wait() // 分词不返回错误

	total := newCounts()
	for _, c := range partial {
		total.merge(c)
	}
	return total
}

func rank(table counts, opts Options) []candidate {
	var phrases []candidate
	for label, n := range table.phrases {
		if n < opts.MinPhraseCount || isGenericPhrase(label) {
			continue
		}
		toks := strings.Fields(label)
		if !lo.SomeBy(toks, func(t string) bool { return len([]rune(t)) > 2 }) {
			continue
		}
		phrases = append(phrases, candidate{label: label, score: n * opts.PhraseWeight, phrase: true, tokens: len(toks)})
	}
	sortCandidates(phrases)

	guard := phrases
	if len(guard) > opts.PhraseGuard {
		guard = guard[:opts.PhraseGuard]
	}

	all := append([]candidate(nil), phrases...)
	for word, n := range table.words {
		if n < opts.MinWordCount || len([]rune(word)) < opts.MinWordLen {
			continue
		}
		if lo.SomeBy(guard, func(p candidate) bool { return strings.Contains(p.label, word) }) {
			continue
		}
		all = append(all, candidate{label: word, score: n, tokens: 1})
	}
	sortCandidates(all)

	accepted := make([]candidate, 0, opts.TopN)
	for _, c := range all {
		if len(accepted) >= opts.TopN {
			break
		}
		if overlaps(c.label, accepted) {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

func sortCandidates(cs []candidate) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].less(cs[j]) })
}

func isGenericPhrase(label string) bool {
	return lo.SomeBy(genericPatterns, func(p string) bool { return strings.Contains(label, p) })
}

// overlaps 与已接受标签互为子串即视为重复
func overlaps(label string, accepted []candidate) bool {
	return lo.SomeBy(accepted, func(a candidate) bool {
		return strings.Contains(a.label, label) || strings.Contains(label, a.label)
	})
}

func samples(articles []processor.Article, label string, max int) []SampleArticle {
	out := make([]SampleArticle, 0, max)
	for _, a := range articles {
		if len(out) >= max {
			break
		}
		if !strings.Contains(strings.ToLower(a.Title+" "+a.Summary), label) {
			continue
		}
		out = append(out, SampleArticle{Title: a.Title, Link: a.Link, Site: a.Site, Category: a.Category})
	}
	return out
}
