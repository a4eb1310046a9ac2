package quake

import (
	"context"
	"sync"

	"github.com/perpetuallyhorni/quakefilter/pkg/pool"
	"github.com/sirupsen/logrus"
)

// Hasher computes the pixel hash of an image URL.
type Hasher interface {
	Hash(ctx context.Context, url string) HashResult
}

// HashSet is the set of hashes already seen.
type HashSet interface {
	// Add records the hash and reports whether it was new.
	Add(hash Hash, url string) bool
}

// Deduplicator decides which image URLs of a post carry pixels not seen before.
// Each URL is hashed at most once until Reset.
type Deduplicator struct {
	hasher  Hasher
	workers int
	logger  logrus.FieldLogger

	// OnHash, if set, is called once for every URL actually hashed.
	OnHash func(HashResult)

	mu   sync.Mutex
	memo map[string]HashResult
}

// NewDeduplicator creates a Deduplicator. workers above one enables concurrent prefetching.
func NewDeduplicator(hasher Hasher, workers int, logger logrus.FieldLogger) *Deduplicator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Deduplicator{
		hasher:  hasher,
		workers: workers,
		logger:  logger,
		memo:    make(map[string]HashResult),
	}
}

// Reset forgets every memoized hash.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memo = make(map[string]HashResult)
}

// Prefetch hashes every image URL of the posts concurrently so that the sequential
// walk in Dedupe only reads memoized results. It is a no-op with a single worker.
func (d *Deduplicator) Prefetch(ctx context.Context, posts []*Post) {
	if d.workers <= 1 {
		return
	}
	var pending []string
	seen := make(map[string]bool)
	d.mu.Lock()
	for _, p := range posts {
		for _, u := range p.AllImageURLs() {
			if _, ok := d.memo[u]; ok || seen[u] {
				continue
			}
			seen[u] = true
			pending = append(pending, u)
		}
	}
	d.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	wp := pool.New(min(d.workers, len(pending)), len(pending))
	for _, u := range pending {
		wp.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			d.hash(ctx, u)
		})
	}
	wp.Stop()
}

// Dedupe evaluates the post's image URLs in order (primary first, then extended left
// to right) against the set. It returns every URL, the hash of each (empty when
// unknown), and the URLs whose hash was new. New hashes are added to the set; URLs
// with an unknown hash are never reported as unique.
func (d *Deduplicator) Dedupe(ctx context.Context, post *Post, set HashSet) (all []string, hashes []Hash, unique []string) {
	all = post.AllImageURLs()
	hashes = make([]Hash, len(all))
	unique = []string{}
	for i, u := range all {
		res := d.hash(ctx, u)
		if !res.OK() {
			d.logger.WithError(res.Err).WithField("url", u).Warn("image hash unavailable, url excluded from unique set")
			continue
		}
		hashes[i] = res.Hash
		if set.Add(res.Hash, u) {
			unique = append(unique, u)
		} else {
			d.logger.WithFields(logrus.Fields{"url": u, "hash": res.Hash}).Debug("duplicate image")
		}
	}
	return all, hashes, unique
}

// Apply runs Dedupe and stores the derived fields on the post.
func (d *Deduplicator) Apply(ctx context.Context, post *Post, set HashSet) {
	post.SetImages(d.Dedupe(ctx, post, set))
}

func (d *Deduplicator) hash(ctx context.Context, url string) HashResult {
	d.mu.Lock()
	if res, ok := d.memo[url]; ok {
		d.mu.Unlock()
		return res
	}
	d.mu.Unlock()

	res := d.hasher.Hash(ctx, url)
	if res.URL == "" {
		res.URL = url
	}
	if res.Err == nil && res.Hash == "" {
		res.Err = errEmptyHash
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// A concurrent caller may have finished first; keep its result.
	if prev, ok := d.memo[url]; ok {
		return prev
	}
	// A cancelled run must not poison the memo for a later retry.
	if ctx.Err() == nil {
		d.memo[url] = res
	}
	if d.OnHash != nil {
		d.OnHash(res)
	}
	return res
}
