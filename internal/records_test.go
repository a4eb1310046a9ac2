package quake

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePostsLayouts(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"array", `[{"text":"a","id":1},null,{"text":"b","id":2}]`},
		{"lines", "{\"text\":\"a\",\"id\":1}\n\n{\"text\":\"b\",\"id\":2}\n"},
		{"columns", `{"text":{"0":"a","1":"b"},"id":{"0":1,"1":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := DecodePosts([]byte(tt.data))
			require.NoError(t, err)
			require.Len(t, posts, 2)
			assert.Equal(t, "a", posts[0].Text)
			assert.Equal(t, "b", posts[1].Text)
			assert.JSONEq(t, "2", string(posts[1].Field("id")))
		})
	}
}

func TestDecodePostsEmptyAndInvalid(t *testing.T) {
	posts, err := DecodePosts([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = DecodePosts([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodePosts([]byte(`{"text":"a"}` + "\n" + `{"text":`))
	assert.Error(t, err)
}

func TestReadPosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0101.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"text":"hello"}]`), 0600))

	posts, err := ReadPosts(path)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Text)

	_, err = ReadPosts(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDropReposts(t *testing.T) {
	posts := []*Post{{Text: "RT @someone: shaking"}, {Text: "shaking"}, {Text: "I said RT @x"}}
	kept, dropped := DropReposts(posts, "RT @")
	assert.Equal(t, 1, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, "shaking", kept[0].Text)

	kept, dropped = DropReposts(posts, "")
	assert.Zero(t, dropped)
	assert.Len(t, kept, 3)
}

func TestPostRoundTripKeepsKeyOrder(t *testing.T) {
	in := `{"user":"u1","text":"hi","time":"2024-01-01 16:10:00","entity_image_url":"","extended_entity_image_urls":"[]","id":7}`
	var p Post
	require.NoError(t, json.Unmarshal([]byte(in), &p))

	out, err := json.Marshal(&p)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestPostMarshalDerivedFields(t *testing.T) {
	in := `{"text":"hi","image_urls":["stale"],"id":7}`
	var p Post
	require.NoError(t, json.Unmarshal([]byte(in), &p))
	p.SetImages([]string{"u1", "u2"}, []Hash{"h1", ""}, []string{"u1"})

	out, err := json.Marshal(&p)
	require.NoError(t, err)
	assert.Equal(t, `{"text":"hi","id":7,"image_urls":["u1","u2"],"image_hashes":["h1",null],"unique_image_urls":["u1"]}`, string(out))

	base, err := json.Marshal(p.Base())
	require.NoError(t, err)
	assert.Equal(t, `{"text":"hi","id":7}`, string(base))
}

func TestPostMarshalEmptyDerivedFields(t *testing.T) {
	p := &Post{Text: "hi"}
	p.SetImages(nil, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteJSONLines(&buf, []*Post{p}))
	assert.Contains(t, buf.String(), `"image_urls":[],"image_hashes":[],"unique_image_urls":[]`)
}

func TestPostNonStringText(t *testing.T) {
	var p Post
	require.NoError(t, json.Unmarshal([]byte(`{"text":12345,"entity_image_url":null}`), &p))
	assert.Equal(t, "12345", p.Text)
	assert.Empty(t, p.EntityImageURL)

	require.NoError(t, json.Unmarshal([]byte(`{"text":null}`), &p))
	assert.Empty(t, p.Text)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 7, 10, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"twitter", `"Mon Jan 01 07:10:00 +0000 2024"`, true},
		{"rfc3339", `"2024-01-01T16:10:00+09:00"`, true},
		{"datetime", `"2024-01-01 07:10:00"`, true},
		{"millis", `1704093000000`, true},
		{"seconds", `1704093000`, true},
		{"garbage", `"yesterday"`, false},
		{"null", `null`, false},
		{"empty", ``, false},
		{"negative", `-5`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(json.RawMessage(tt.raw))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestSortByTimeIsStableWithMissingLast(t *testing.T) {
	posts := []*Post{
		{Text: "late", RawTime: json.RawMessage(`"2024-01-01 08:00:00"`)},
		{Text: "none-1"},
		{Text: "early", RawTime: json.RawMessage(`"2024-01-01 07:00:00"`)},
		{Text: "bad", RawTime: json.RawMessage(`"soon"`)},
		{Text: "early-2", RawTime: json.RawMessage(`"2024-01-01 07:00:00"`)},
	}
	SortByTime(posts)

	var order []string
	for _, p := range posts {
		order = append(order, p.Text)
	}
	assert.Equal(t, []string{"early", "early-2", "late", "none-1", "bad"}, order)

	out, err := json.Marshal(posts[4])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"time":null`)
	out, err = json.Marshal(posts[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"time":"2024-01-01T07:00:00Z"`)
}

func TestParseURLList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["a","b"]`, []string{"a", "b"}},
		{"json text", `"[\"a\", \"b\"]"`, []string{"a", "b"}},
		{"literal", `"['a', 'b']"`, []string{"a", "b"}},
		{"literal with comma in url", `"['https://x/a,b.jpg']"`, []string{"https://x/a,b.jpg"}},
		{"empty literal", `"[]"`, nil},
		{"blank entries", `["", " a "]`, []string{"a"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
		{"malformed", `"['a', "`, nil},
		{"not a list", `"https://x/a.jpg"`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseURLList(json.RawMessage(tt.raw)))
		})
	}
}

func TestAllImageURLs(t *testing.T) {
	p := &Post{EntityImageURL: "u1", ExtendedEntityImageURLs: json.RawMessage(`"['u2', 'u1']"`)}
	assert.Equal(t, []string{"u1", "u2", "u1"}, p.AllImageURLs())

	p = &Post{ExtendedEntityImageURLs: json.RawMessage(`"[]"`)}
	assert.Empty(t, p.AllImageURLs())
}
