package logging

import (
	"io"
	"regexp"
	"strings"
)

var (
	// handleRegex matches social-media user handles.
	handleRegex = regexp.MustCompile(`@[A-Za-z0-9_]{1,15}\b`)
	// apiKeyRegex matches OpenAI and Anthropic style secret keys.
	apiKeyRegex = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`)
)

type replacement struct {
	re   *regexp.Regexp
	with string
}

// RedactingWriter is an io.Writer that redacts sensitive information before
// writing to an underlying writer.
type RedactingWriter struct {
	underlying   io.Writer
	replacements []replacement // applied in order
}

// NewRedactingWriter creates a writer that hides API keys, the given input paths
// and user handles.
func NewRedactingWriter(w io.Writer, paths []string, secrets []string) io.Writer {
	var replacements []replacement
	for _, secret := range secrets {
		if strings.TrimSpace(secret) != "" {
			replacements = append(replacements, replacement{regexp.MustCompile(regexp.QuoteMeta(secret)), "[API_KEY]"})
		}
	}
	replacements = append(replacements, replacement{apiKeyRegex, "[API_KEY]"})

	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		// Match either path separator so Windows paths are caught in both spellings.
		sanitized := strings.ReplaceAll(regexp.QuoteMeta(p), `\\`, `[/\\]`)
		replacements = append(replacements, replacement{regexp.MustCompile(sanitized), "[INPUT_PATH]"})
	}

	replacements = append(replacements, replacement{handleRegex, "@[USER]"})

	return &RedactingWriter{
		underlying:   w,
		replacements: replacements,
	}
}

// Write redacts the input byte slice and writes it to the underlying writer.
func (rw *RedactingWriter) Write(p []byte) (n int, err error) {
	originalLen := len(p)
	message := string(p)
	for _, r := range rw.replacements {
		message = r.re.ReplaceAllString(message, r.with)
	}

	if _, err := rw.underlying.Write([]byte(message)); err != nil {
		return 0, err
	}
	// Report the original length; callers only care that p was consumed.
	return originalLen, nil
}
