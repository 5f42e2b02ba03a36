package trending

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	entityRe = regexp.MustCompile(`&(?:[a-zA-Z][a-zA-Z0-9]*|#[0-9]+|#[xX][0-9a-fA-F]+);`)
)

// Tokenize 小写化并去掉 HTML 标签和实体，返回过滤后的词序列
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = tagRe.ReplaceAllString(text, " ")
	text = entityRe.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			return r
		}
		return ' '
	}, text)

	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		if keepToken(f) {
			out = append(out, f)
		}
	}
	return out
}

func keepToken(tok string) bool {
	if utf8.RuneCountInString(tok) <= 2 {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return !isStopword(tok)
}

// counts 词频表与短语频次表；两者都满足结合律，可分块统计后合并
type counts struct {
	words   map[string]int
	phrases map[string]int
}

func newCounts() counts {
	return counts{words: map[string]int{}, phrases: map[string]int{}}
}

// add 统计一篇文章的过滤后词序列；短语为 2 元和 3 元滑动窗口
func (c counts) add(tokens []string) {
	for i, tok := range tokens {
		c.words[tok]++
		for n := 2; n <= 3; n++ {
			if i+n > len(tokens) {
				break
			}
			c.phrases[strings.Join(tokens[i:i+n], " ")]++
		}
	}
}

func (c counts) merge(o counts) {
	for k, v := range o.words {
		c.words[k] += v
	}
	for k, v := range o.phrases {
		c.phrases[k] += v
	}
}
