package mmi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cavaliergopher/grab/v3"
	"github.com/google/uuid"
	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProgressCallback defines the function signature for progress reporting.
type ProgressCallback func(current, total int, message string)

// Completer is the part of Caller the Rater needs.
type Completer interface {
	Call(ctx context.Context, model Model, modality Modality, prompt, imagePath string) (string, error)
}

// Result is the rating of one text or image.
type Result struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Model    Model  `json:"model"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Rater rates every record of a filtered file.
type Rater struct {
	caller      Completer
	epicenter   string
	concurrency int
	cacheDir    string
	client      *grab.Client
	logger      logrus.FieldLogger
}

// NewRater creates a Rater. Images are downloaded into cacheDir before rating.
func NewRater(caller Completer, epicenter string, concurrency int, cacheDir string, logger logrus.FieldLogger) *Rater {
	if concurrency < 1 {
		concurrency = 1
	}
	client := grab.NewClient()
	client.UserAgent = quake.DefaultUserAgent
	return &Rater{
		caller:      caller,
		epicenter:   epicenter,
		concurrency: concurrency,
		cacheDir:    cacheDir,
		client:      client,
		logger:      logger,
	}
}

// OutputPath returns where ratings of input by model are written.
func OutputPath(input string, model Model) string {
	dir, name := filepath.Split(input)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, fmt.Sprintf("%s_mmi_%s.json", stem, model))
}

type item struct {
	index  int
	id     string
	prompt string
	url    string
}

// RateFile rates the records of a filtered JSON-lines file and writes one result per
// line next to it. Failed items are recorded with their error; only cancellation
// aborts the run.
func (r *Rater) RateFile(ctx context.Context, input string, model Model, modality Modality, progressCb ProgressCallback) (string, []Result, error) {
	if progressCb == nil {
		progressCb = func(int, int, string) {}
	}
	if modality == Text && strings.TrimSpace(r.epicenter) == "" {
		return "", nil, errors.New("text rating needs an epicenter")
	}
	posts, err := quake.ReadPosts(input)
	if err != nil {
		return "", nil, err
	}
	items := r.items(posts, modality)
	results := make([]Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	var mu sync.Mutex
	finished := 0
	for i, it := range items {
		g.Go(func() error {
			res := Result{Index: it.index, ID: it.id, URL: it.url, Model: model}
			resp, err := r.rate(gctx, model, modality, it)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res.Error = err.Error()
				r.logger.WithError(err).WithFields(logrus.Fields{"index": it.index, "url": it.url}).Warn("rating failed")
			}
			res.Response = resp
			results[i] = res

			mu.Lock()
			finished++
			progressCb(finished, len(items), it.id)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	out := OutputPath(input, model)
	if err := writeResults(out, results); err != nil {
		return "", nil, err
	}
	return out, results, nil
}

func (r *Rater) items(posts []*quake.Post, modality Modality) []item {
	var items []item
	for i, p := range posts {
		id := rawID(p.Field("id"))
		if modality == Text {
			items = append(items, item{index: i, id: id, prompt: TextPrompt(r.epicenter, p.Text)})
			continue
		}
		urls := p.StringList(quake.KeyUniqueImageURLs)
		if urls == nil {
			urls = p.AllImageURLs()
		}
		for _, u := range urls {
			items = append(items, item{index: i, id: id, prompt: ImagePrompt(), url: u})
		}
	}
	return items
}

func (r *Rater) rate(ctx context.Context, model Model, modality Modality, it item) (string, error) {
	if modality == Text {
		return r.caller.Call(ctx, model, Text, it.prompt, "")
	}
	file, err := r.download(ctx, it.url)
	if err != nil {
		return "", err
	}
	return r.caller.Call(ctx, model, Image, it.prompt, file)
}

// download fetches url into the cache directory, reusing an earlier download.
func (r *Rater) download(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(r.cacheDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create image cache: %w", err)
	}
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String() + path.Ext(strings.SplitN(url, "?", 2)[0])
	dst := filepath.Join(r.cacheDir, name)
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		return dst, nil
	}
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return "", err
	}
	req = req.WithContext(ctx)
	if resp := r.client.Do(req); resp.Err() != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, resp.Err())
	}
	return dst, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func writeResults(path string, results []Result) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}
