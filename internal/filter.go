package quake

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// nonWord matches one character that cannot be part of a word in any script.
const nonWord = `[^\p{L}\p{N}_]`

// TextFilter keeps posts whose text mentions damage vocabulary.
type TextFilter struct {
	lang    Language
	pattern *regexp.Regexp
}

// NewTextFilter compiles the matcher for a language. English words must match as whole
// words; Japanese words match anywhere in the text. Both are case-insensitive.
func NewTextFilter(lang Language, vocab Vocabulary) (*TextFilter, error) {
	words := vocab.Words(lang)
	if words == nil {
		return nil, fmt.Errorf("no vocabulary for language %q", lang)
	}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	alternation := "(?:" + strings.Join(quoted, "|") + ")"
	expr := "(?i)" + alternation
	if lang == English {
		expr = `(?i)(?:^|` + nonWord + `)` + alternation + `(?:$|` + nonWord + `)`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s filter: %w", lang, err)
	}
	return &TextFilter{lang: lang, pattern: re}, nil
}

// Language returns the language the filter was built for.
func (f *TextFilter) Language() Language {
	return f.lang
}

// Match reports whether the text contains any damage word.
func (f *TextFilter) Match(text string) bool {
	return text != "" && f.pattern.MatchString(text)
}

// Select returns the matching posts in their current order.
func (f *TextFilter) Select(posts []*Post) []*Post {
	out := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if f.Match(p.Text) {
			out = append(out, p)
		}
	}
	return out
}
