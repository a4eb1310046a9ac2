package quake

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHasher maps URLs to fixed hashes and counts calls.
type fakeHasher struct {
	mu     sync.Mutex
	hashes map[string]Hash
	calls  map[string]int
}

func newFakeHasher(hashes map[string]Hash) *fakeHasher {
	return &fakeHasher{hashes: hashes, calls: make(map[string]int)}
}

func (f *fakeHasher) Hash(_ context.Context, url string) HashResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	h, ok := f.hashes[url]
	if !ok {
		return HashResult{URL: url, Err: errors.New("404")}
	}
	return HashResult{URL: url, Hash: h}
}

func (f *fakeHasher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// memSet is an in-memory HashSet.
type memSet map[Hash]string

func (s memSet) Add(h Hash, url string) bool {
	if _, ok := s[h]; ok {
		return false
	}
	s[h] = url
	return true
}

func post(primary, extended string) *Post {
	return &Post{EntityImageURL: primary, ExtendedEntityImageURLs: json.RawMessage(extended)}
}

func TestDedupeRepeatedURLWithinPost(t *testing.T) {
	hasher := newFakeHasher(map[string]Hash{"u1": "h1", "u2": "h2"})
	d := NewDeduplicator(hasher, 1, nil)
	set := memSet{}

	all, hashes, unique := d.Dedupe(context.Background(), post("u1", `"['u2', 'u1']"`), set)
	assert.Equal(t, []string{"u1", "u2", "u1"}, all)
	assert.Equal(t, []Hash{"h1", "h2", "h1"}, hashes)
	assert.Equal(t, []string{"u1", "u2"}, unique)
	assert.Equal(t, 1, hasher.count("u1"))
}

func TestDedupeAcrossPosts(t *testing.T) {
	// u3 is a different URL carrying the same pixels as u1.
	hasher := newFakeHasher(map[string]Hash{"u1": "h1", "u2": "h2", "u3": "h1"})
	d := NewDeduplicator(hasher, 1, nil)
	set := memSet{}

	first := post("u1", "")
	second := post("u3", `["u2"]`)
	d.Apply(context.Background(), first, set)
	d.Apply(context.Background(), second, set)

	assert.Equal(t, []string{"u1"}, first.UniqueImageURLs)
	assert.Equal(t, []string{"u2"}, second.UniqueImageURLs)
	assert.Equal(t, []Hash{"h1", "h2"}, second.ImageHashes)
	assert.True(t, second.Deduped)
}

func TestDedupeUnknownHashIsNotUnique(t *testing.T) {
	hasher := newFakeHasher(map[string]Hash{"u2": "h2"})
	d := NewDeduplicator(hasher, 1, nil)
	set := memSet{}

	all, hashes, unique := d.Dedupe(context.Background(), post("broken", `["u2"]`), set)
	assert.Equal(t, []string{"broken", "u2"}, all)
	assert.Equal(t, []Hash{"", "h2"}, hashes)
	assert.Equal(t, []string{"u2"}, unique)
	assert.Len(t, set, 1)
}

func TestDedupeNoImages(t *testing.T) {
	d := NewDeduplicator(newFakeHasher(nil), 1, nil)
	all, hashes, unique := d.Dedupe(context.Background(), post("", `"[]"`), memSet{})
	assert.Empty(t, all)
	assert.Empty(t, hashes)
	assert.NotNil(t, unique)
	assert.Empty(t, unique)
}

func TestDedupeSeededSet(t *testing.T) {
	hasher := newFakeHasher(map[string]Hash{"u1": "h1"})
	d := NewDeduplicator(hasher, 1, nil)
	set := memSet{"h1": "from an earlier run"}

	_, _, unique := d.Dedupe(context.Background(), post("u1", ""), set)
	assert.Empty(t, unique)
}

func TestPrefetchKeepsFirstOccurrenceOrder(t *testing.T) {
	hashes := map[string]Hash{"a": "h1", "b": "h2", "c": "h1", "d": "h3"}
	hasher := newFakeHasher(hashes)
	var (
		mu     sync.Mutex
		hashed []string
	)
	d := NewDeduplicator(hasher, 4, nil)
	d.OnHash = func(res HashResult) {
		mu.Lock()
		defer mu.Unlock()
		hashed = append(hashed, res.URL)
	}
	posts := []*Post{post("c", `["a"]`), post("a", `["b","d"]`)}

	d.Prefetch(context.Background(), posts)
	assert.Len(t, hashed, 4)

	set := memSet{}
	for _, p := range posts {
		d.Apply(context.Background(), p, set)
	}
	assert.Equal(t, []string{"c"}, posts[0].UniqueImageURLs)
	assert.Equal(t, []string{"b", "d"}, posts[1].UniqueImageURLs)
	for url := range hashes {
		assert.Equal(t, 1, hasher.count(url), url)
	}
	assert.Len(t, hashed, 4)
}

func TestDedupeCancelledResultIsNotMemoized(t *testing.T) {
	hasher := newFakeHasher(map[string]Hash{"u1": "h1"})
	d := NewDeduplicator(hasher, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dedupe(ctx, post("u1", ""), memSet{})
	d.Dedupe(context.Background(), post("u1", ""), memSet{})
	assert.Equal(t, 2, hasher.count("u1"))

	d.Reset()
	d.Dedupe(context.Background(), post("u1", ""), memSet{})
	assert.Equal(t, 3, hasher.count("u1"))
}

func TestHasherEmptyHashIsFailure(t *testing.T) {
	hasher := newFakeHasher(map[string]Hash{"u1": ""})
	d := NewDeduplicator(hasher, 1, nil)

	_, hashes, unique := d.Dedupe(context.Background(), post("u1", ""), memSet{})
	assert.Equal(t, []Hash{""}, hashes)
	assert.Empty(t, unique)
	res := d.hash(context.Background(), "u1")
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errEmptyHash)
}
