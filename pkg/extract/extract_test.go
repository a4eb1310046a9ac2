package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/perpetuallyhorni/quakefilter/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retweet = `{
  "created_at": "Mon Jan 01 07:12:00 +0000 2024",
  "id": 1001,
  "full_text": "RT @noto_news: The road to Wajima has cracked open and…",
  "retweet_count": 12,
  "favorite_count": 0,
  "in_reply_to_screen_name": null,
  "lang": "en",
  "user": {"screen_name": "relay", "name": "Relay", "followers_count": 10, "verified": false},
  "coordinates": {"type": "Point", "coordinates": [136.9, 37.39]},
  "place": {"full_name": "Wajima, Ishikawa"},
  "entities": {"media": [{"type": "photo", "media_url_https": "https://pbs.example/a.jpg"}]},
  "extended_entities": {"media": [
    {"type": "photo", "media_url_https": "https://pbs.example/a.jpg"},
    {"type": "video", "media_url_https": "https://pbs.example/v.jpg"},
    {"type": "photo", "media_url_https": "https://pbs.example/b.jpg"}
  ]},
  "retweeted_status": {
    "created_at": "Mon Jan 01 07:11:00 +0000 2024",
    "id": 1000,
    "full_text": "The road to Wajima has cracked open and cars cannot pass.",
    "retweet_count": 12,
    "favorite_count": 30,
    "lang": "en",
    "user": {"screen_name": "noto_news", "name": "Noto News"}
  }
}`

func TestFlattenRetweet(t *testing.T) {
	rec, err := Flatten([]byte(retweet))
	require.NoError(t, err)

	text, ok := rec.String("text")
	require.True(t, ok)
	assert.Equal(t, "RT @noto_news: The road to Wajima has cracked open and cars cannot pass.", text)

	user, _ := rec.String("user")
	assert.Equal(t, "relay", user)
	rtUser, _ := rec.String("rt_user")
	assert.Equal(t, "noto_news", rtUser)
	assert.JSONEq(t, "30", string(rec.Get("rt_favourite_count")))
	assert.JSONEq(t, "null", string(rec.Get("reply")))
	assert.JSONEq(t, "null", string(rec.Get("description")))

	assert.JSONEq(t, "136.9", string(rec.Get("longitude")))
	assert.JSONEq(t, "37.39", string(rec.Get("latitude")))
	assert.JSONEq(t, `{"full_name": "Wajima, Ishikawa"}`, string(rec.Get("place")))

	imageURL, _ := rec.String("entity_image_url")
	assert.Equal(t, "https://pbs.example/a.jpg", imageURL)
	assert.JSONEq(t, `["https://pbs.example/a.jpg","https://pbs.example/b.jpg"]`, string(rec.Get("extended_entity_image_urls")))

	assert.Nil(t, rec.Get("qt_user"))
	keys := rec.Keys()
	assert.Equal(t, "user", keys[0])
	assert.Contains(t, keys, "rt_text")
}

func TestFlattenPlainTweetDefaults(t *testing.T) {
	rec, err := Flatten([]byte(`{"id": 1, "text": "shaking", "user": {"screen_name": "a"}}`))
	require.NoError(t, err)

	text, _ := rec.String("text")
	assert.Equal(t, "shaking", text)
	for _, key := range []string{"entity_image_url", "place", "latitude", "longitude"} {
		v, ok := rec.String(key)
		assert.True(t, ok, key)
		assert.Empty(t, v, key)
	}
	assert.JSONEq(t, "[]", string(rec.Get("extended_entity_image_urls")))
}

func TestFlattenQuote(t *testing.T) {
	rec, err := Flatten([]byte(`{"id": 2, "full_text": "look", "user": {"screen_name": "a"},
		"quoted_status": {"id": 1, "full_text": "bridge collapsed", "retweet_count": 4, "user": {"screen_name": "b"}}}`))
	require.NoError(t, err)

	qtText, _ := rec.String("qt_text")
	assert.Equal(t, "bridge collapsed", qtText)
	assert.JSONEq(t, "4", string(rec.Get("qt_retweet_count")))
	text, _ := rec.String("text")
	assert.Equal(t, "look", text)
}

func TestFlattenRejects(t *testing.T) {
	_, err := Flatten([]byte(`{"id": 1, "full_text": "no user"}`))
	assert.ErrorIs(t, err, ErrNotTweet)

	_, err = Flatten([]byte(`{"id": 1, "user": {"screen_name": "a"}}`))
	assert.ErrorIs(t, err, ErrNotTweet)

	_, err = Flatten([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotTweet)

	_, err = Flatten([]byte(`{"broken"`))
	assert.Error(t, err)
}

func TestRecordMarshalKeepsOrder(t *testing.T) {
	rec := NewRecord()
	rec.Set("b", 1)
	rec.Set("a", "x")
	rec.Set("b", 2)
	rec.Set("c", json.RawMessage(""))

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"a":"x","c":null}`, string(out))
}

func TestExtractFolder(t *testing.T) {
	read := t.TempDir()
	save := filepath.Join(t.TempDir(), "noto")
	compact := strings.Join(strings.Fields(retweet), " ")
	lines := compact + "\n" + "garbage line\n\n" + `{"id": 3, "full_text": "house damaged", "user": {"screen_name": "c"}}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(read, "0101.json"), []byte(lines), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(read, "0102.json"), nil, 0600))

	var calls int
	results, err := ExtractFolder(context.Background(), read, save, logging.Discard(), func(int, int, string) { calls++ })
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, FileResult{File: "0101.json", Records: 2, Skipped: 1}, results[0])
	assert.Equal(t, FileResult{File: "0102.json"}, results[1])
	assert.Equal(t, 3, calls)

	// The flattened records are valid filter input.
	posts, err := quake.ReadPosts(filepath.Join(save, "0101.json"))
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "house damaged", posts[1].Text)
	assert.Equal(t, []string{"https://pbs.example/a.jpg", "https://pbs.example/a.jpg", "https://pbs.example/b.jpg"}, posts[0].AllImageURLs())
	_, ok := quake.ParseTime(posts[0].RawTime)
	assert.True(t, ok)
}

func TestExtractFolderMissing(t *testing.T) {
	_, err := ExtractFolder(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), logging.Discard(), nil)
	assert.Error(t, err)
}
