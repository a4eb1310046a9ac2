package quake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AllImageURLs returns the post's primary image URL followed by its extended URLs.
func (p *Post) AllImageURLs() []string {
	var urls []string
	if p.EntityImageURL != "" {
		urls = append(urls, p.EntityImageURL)
	}
	return append(urls, ParseURLList(p.ExtendedEntityImageURLs)...)
}

// ParseURLList decodes the extended image URL field. It accepts a JSON array of
// strings, or a string holding either a JSON array or a Python-style list literal
// such as "['a', 'b']". Anything malformed yields an empty list.
func ParseURLList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var urls []string
		if err := json.Unmarshal(raw, &urls); err != nil {
			return nil
		}
		return compact(urls)
	case '"':
		s := strings.TrimSpace(rawString(raw))
		if s == "" {
			return nil
		}
		var urls []string
		if err := json.Unmarshal([]byte(s), &urls); err == nil {
			return compact(urls)
		}
		urls, err := parseListLiteral(s)
		if err != nil {
			return nil
		}
		return compact(urls)
	default:
		return nil
	}
}

func compact(urls []string) []string {
	out := urls[:0]
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var errBadLiteral = errors.New("malformed list literal")

// parseListLiteral parses a list of quoted strings written with either quote style.
func parseListLiteral(s string) ([]string, error) {
	l := &literalLexer{src: s}
	l.skipSpace()
	if !l.consume('[') {
		return nil, errBadLiteral
	}
	var out []string
	for {
		l.skipSpace()
		if l.consume(']') {
			break
		}
		item, err := l.quoted()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		l.skipSpace()
		if l.consume(',') {
			continue
		}
		if l.consume(']') {
			break
		}
		return nil, fmt.Errorf("%w: expected ',' or ']' at offset %d", errBadLiteral, l.pos)
	}
	l.skipSpace()
	if l.pos != len(l.src) {
		return nil, fmt.Errorf("%w: trailing data at offset %d", errBadLiteral, l.pos)
	}
	return out, nil
}

type literalLexer struct {
	src string
	pos int
}

func (l *literalLexer) skipSpace() {
	for l.pos < len(l.src) && strings.ContainsRune(" \t\r\n", rune(l.src[l.pos])) {
		l.pos++
	}
}

func (l *literalLexer) consume(c byte) bool {
	if l.pos < len(l.src) && l.src[l.pos] == c {
		l.pos++
		return true
	}
	return false
}

func (l *literalLexer) quoted() (string, error) {
	if l.pos >= len(l.src) {
		return "", errBadLiteral
	}
	quote := l.src[l.pos]
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("%w: expected quote at offset %d", errBadLiteral, l.pos)
	}
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch {
		case c == quote:
			return b.String(), nil
		case c == '\\' && l.pos < len(l.src):
			esc := l.src[l.pos]
			l.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("%w: unterminated string", errBadLiteral)
}
