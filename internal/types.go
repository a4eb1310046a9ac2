package quake

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDiskSpace is returned when the output volume is too full to persist results.
var ErrDiskSpace = errors.New("insufficient disk space")

var errEmptyHash = errors.New("hasher returned no hash")

// Hash is the hex digest of a decoded image's pixel buffer.
type Hash string

// HashResult is the outcome of hashing one image URL.
type HashResult struct {
	// URL is the image that was fetched.
	URL string
	// Hash is set only when the image was fetched and decoded.
	Hash Hash
	// Err explains why Hash is unknown.
	Err error
}

// OK reports whether the hash is known.
func (r HashResult) OK() bool {
	return r.Err == nil && r.Hash != ""
}

// Language selects the vocabulary and matching rules of the text filter.
type Language string

const (
	// English matches whole words, case-insensitively.
	English Language = "english"
	// Japanese matches raw substrings.
	Japanese Language = "japanese"
)

// Languages lists the accepted filter languages.
var Languages = []Language{English, Japanese}

// ParseLanguage validates a language name.
func ParseLanguage(s string) (Language, error) {
	name := Language(strings.ToLower(strings.TrimSpace(s)))
	quoted := make([]string, len(Languages))
	for i, l := range Languages {
		if l == name {
			return l, nil
		}
		quoted[i] = "'" + string(l) + "'"
	}
	return "", fmt.Errorf("invalid language %q, must be one of %s", s, strings.Join(quoted, ", "))
}
