package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a flat JSON object that keeps its keys in insertion order.
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]json.RawMessage)}
}

// Set stores a value, keeping the position of an existing key.
func (r *Record) Set(key string, value any) {
	var raw json.RawMessage
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
		if len(bytes.TrimSpace(raw)) == 0 {
			raw = json.RawMessage("null")
		}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte("null")
		}
		raw = b
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = raw
}

// Get returns the raw value of key, or nil.
func (r *Record) Get(key string) json.RawMessage {
	return r.values[key]
}

// String returns the value of key when it is a JSON string.
func (r *Record) String(key string) (string, bool) {
	var s string
	if err := json.Unmarshal(r.values[key], &s); err != nil {
		return "", false
	}
	return s, true
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// MarshalJSON writes the record with its keys in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(r.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
