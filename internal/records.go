package quake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// ReadPosts loads every record of an input file. It accepts a JSON array of records,
// newline-delimited records, or a column-oriented object ({"col": {"0": value}}).
func ReadPosts(path string) ([]*Post, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	posts, err := DecodePosts(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return posts, nil
}

// DecodePosts decodes records from any of the supported layouts.
func DecodePosts(data []byte) ([]*Post, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var posts []*Post
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return nil, err
		}
		return dropNil(posts), nil
	case '{':
		return decodeObjects(trimmed)
	default:
		return nil, fmt.Errorf("unexpected leading character %q", trimmed[0])
	}
}

// decodeObjects reads a stream of objects. A lone object whose values are all
// index-keyed objects is treated as the column-oriented layout.
func decodeObjects(data []byte) ([]*Post, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raws []json.RawMessage
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("record %d: %w", len(raws)+1, err)
		}
		raws = append(raws, raw)
	}
	if len(raws) == 1 {
		if posts, ok := decodeColumns(raws[0]); ok {
			return posts, nil
		}
	}
	posts := make([]*Post, 0, len(raws))
	for i, raw := range raws {
		var p Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		posts = append(posts, &p)
	}
	return posts, nil
}

func decodeColumns(raw json.RawMessage) ([]*Post, bool) {
	var columns map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &columns); err != nil || len(columns) == 0 {
		return nil, false
	}
	// The column order is lost in a Go map, so rebuild it from the source.
	order, err := objectKeys(raw)
	if err != nil {
		return nil, false
	}
	rows := make(map[string]*bytes.Buffer)
	var rowKeys []string
	for _, col := range order {
		for idx, value := range columns[col] {
			if _, err := strconv.Atoi(idx); err != nil {
				return nil, false
			}
			buf, ok := rows[idx]
			if !ok {
				buf = &bytes.Buffer{}
				buf.WriteByte('{')
				rows[idx] = buf
				rowKeys = append(rowKeys, idx)
			} else {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(col)
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(value)
		}
	}
	sort.Slice(rowKeys, func(i, j int) bool {
		a, _ := strconv.Atoi(rowKeys[i])
		b, _ := strconv.Atoi(rowKeys[j])
		return a < b
	})
	posts := make([]*Post, 0, len(rowKeys))
	for _, idx := range rowKeys {
		buf := rows[idx]
		buf.WriteByte('}')
		var p Post
		if err := json.Unmarshal(buf.Bytes(), &p); err != nil {
			return nil, false
		}
		posts = append(posts, &p)
	}
	return posts, true
}

func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func dropNil(posts []*Post) []*Post {
	out := posts[:0]
	for _, p := range posts {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// DropReposts removes posts whose text starts with the repost prefix.
func DropReposts(posts []*Post, prefix string) (kept []*Post, dropped int) {
	kept = make([]*Post, 0, len(posts))
	for _, p := range posts {
		if p.IsRepost(prefix) {
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}
