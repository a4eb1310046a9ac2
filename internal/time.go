package quake

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// timeLayouts are tried in order for string timestamps.
var timeLayouts = []string{
	time.RubyDate, // Twitter "created_at"
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	time.DateTime,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

// ParseTime parses a raw time value. Strings are tried against the known layouts;
// numbers are epoch milliseconds, or seconds when small enough.
func ParseTime(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		s := strings.TrimSpace(rawString(raw))
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, false
	}
	f, err := n.Float64()
	if err != nil || f < 0 {
		return time.Time{}, false
	}
	if f >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}

// SortByTime parses each post's time and stable-sorts ascending.
// Posts without a usable time keep their relative order after all timed posts.
func SortByTime(posts []*Post) {
	for _, p := range posts {
		p.timeChecked = true
		p.Time = nil
		if t, ok := ParseTime(p.RawTime); ok {
			p.Time = &t
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].Time, posts[j].Time
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
