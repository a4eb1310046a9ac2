package quake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Record keys the pipeline reads or derives. Every other key is carried through untouched.
const (
	KeyText            = "text"
	KeyTime            = "time"
	KeyEntityImage     = "entity_image_url"
	KeyExtendedImages  = "extended_entity_image_urls"
	KeyImageURLs       = "image_urls"
	KeyImageHashes     = "image_hashes"
	KeyUniqueImageURLs = "unique_image_urls"
)

// Post is a single flattened social-media record.
type Post struct {
	// Text is the body of the post. Non-string values are kept as their JSON text.
	Text string
	// RawTime is the time value as read from the input.
	RawTime json.RawMessage
	// Time is the parsed timestamp, nil when missing or unparseable.
	Time *time.Time
	// EntityImageURL is the primary image URL, empty when the post has none.
	EntityImageURL string
	// ExtendedEntityImageURLs is the raw extended URL field: a textual list, a JSON array or empty.
	ExtendedEntityImageURLs json.RawMessage

	// ImageURLs is the primary URL followed by the extended URLs.
	ImageURLs []string
	// ImageHashes is aligned with ImageURLs; an empty Hash means the hash is unknown.
	ImageHashes []Hash
	// UniqueImageURLs holds the URLs whose hash was novel when evaluated.
	UniqueImageURLs []string
	// Deduped is set once the derived image fields have been populated.
	Deduped bool

	timeChecked bool

	// Extra holds pass-through metadata keyed by its original name.
	Extra map[string]json.RawMessage
	keys  []string // original key order
}

// Field returns the raw value of a pass-through key, or nil.
func (p *Post) Field(key string) json.RawMessage {
	return p.Extra[key]
}

// IsRepost reports whether the text carries the repost marker.
func (p *Post) IsRepost(prefix string) bool {
	return prefix != "" && strings.HasPrefix(p.Text, prefix)
}

// SetImages stores the derived image fields.
func (p *Post) SetImages(all []string, hashes []Hash, unique []string) {
	p.ImageURLs = all
	p.ImageHashes = hashes
	p.UniqueImageURLs = unique
	p.Deduped = true
}

// Base returns a shallow copy of the post without the derived image fields.
func (p *Post) Base() *Post {
	cp := *p
	cp.ImageURLs, cp.ImageHashes, cp.UniqueImageURLs = nil, nil, nil
	cp.Deduped = false
	cp.Extra = make(map[string]json.RawMessage, len(p.Extra))
	for k, v := range p.Extra {
		if !isDerived(k) {
			cp.Extra[k] = v
		}
	}
	return &cp
}

func isDerived(key string) bool {
	return key == KeyImageURLs || key == KeyImageHashes || key == KeyUniqueImageURLs
}

// StringList decodes a pass-through field holding a JSON array of strings.
func (p *Post) StringList(key string) []string {
	var out []string
	if err := json.Unmarshal(p.Extra[key], &out); err != nil {
		return nil
	}
	return out
}

// UnmarshalJSON decodes a record, remembering the key order for output.
func (p *Post) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("post must be a JSON object, got %v", tok)
	}
	*p = Post{Extra: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode value of %q: %w", key, err)
		}
		if err := p.setField(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func (p *Post) setField(key string, raw json.RawMessage) error {
	if !p.hasKey(key) {
		p.keys = append(p.keys, key)
	}
	switch key {
	case KeyText:
		p.Text = rawText(raw)
	case KeyTime:
		p.RawTime = raw
	case KeyEntityImage:
		p.EntityImageURL = strings.TrimSpace(rawString(raw))
	case KeyExtendedImages:
		p.ExtendedEntityImageURLs = raw
	default:
		// Derived fields of an earlier run land here too; dedupe replaces them.
		p.Extra[key] = raw
	}
	return nil
}

func (p *Post) hasKey(key string) bool {
	for _, k := range p.keys {
		if k == key {
			return true
		}
	}
	return false
}

// MarshalJSON writes the record in its original key order, followed by any derived fields.
func (p Post) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		if raw, ok := value.(json.RawMessage); ok {
			if len(raw) == 0 {
				raw = json.RawMessage("null")
			}
			buf.Write(raw)
			return nil
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", key, err)
		}
		buf.Write(v)
		return nil
	}

	keys := p.keys
	if len(keys) == 0 {
		keys = []string{KeyText, KeyTime, KeyEntityImage, KeyExtendedImages}
	}
	for _, key := range keys {
		var err error
		switch key {
		case KeyText:
			err = write(key, p.Text)
		case KeyTime:
			err = write(key, p.timeValue())
		case KeyEntityImage:
			err = write(key, p.EntityImageURL)
		case KeyExtendedImages:
			err = write(key, p.ExtendedEntityImageURLs)
		default:
			if p.Deduped && isDerived(key) {
				continue
			}
			raw, ok := p.Extra[key]
			if !ok {
				continue
			}
			err = write(key, raw)
		}
		if err != nil {
			return nil, err
		}
	}
	if p.Deduped {
		if err := write(KeyImageURLs, nonNil(p.ImageURLs)); err != nil {
			return nil, err
		}
		if err := write(KeyImageHashes, hashValues(p.ImageHashes)); err != nil {
			return nil, err
		}
		if err := write(KeyUniqueImageURLs, nonNil(p.UniqueImageURLs)); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// timeValue is the normalized time once parsed, otherwise the raw input value.
// A time that failed to parse is written as null.
func (p Post) timeValue() any {
	if p.Time != nil {
		return p.Time.UTC().Format(time.RFC3339)
	}
	if p.timeChecked {
		return nil
	}
	return p.RawTime
}

// WriteJSONLines writes one JSON record per line.
func WriteJSONLines(w io.Writer, posts []*Post) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, post := range posts {
		if err := enc.Encode(post); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func hashValues(hashes []Hash) []*string {
	out := make([]*string, len(hashes))
	for i, h := range hashes {
		if h != "" {
			s := string(h)
			out[i] = &s
		}
	}
	return out
}

// rawString returns a JSON string value, or "" for anything else.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// rawText returns the value as text: strings unquoted, null empty, anything else verbatim.
func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		return rawString(trimmed)
	}
	return string(trimmed)
}
