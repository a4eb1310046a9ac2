package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/perpetuallyhorni/quakefilter/internal/fs"
	"github.com/perpetuallyhorni/quakefilter/pkg/config"
	"github.com/perpetuallyhorni/quakefilter/pkg/metrics"
	"github.com/perpetuallyhorni/quakefilter/pkg/storage"
	"github.com/sirupsen/logrus"
)

// ProgressCallback defines the function signature for progress reporting.
type ProgressCallback func(current, total int, message string)

// noOpProgress is a default empty progress callback.
func noOpProgress(current, total int, message string) {}

// Pipeline filters folders of posts into text and image subsets.
type Pipeline struct {
	cfg     *config.Config
	store   *storage.HashStore
	dedupe  *quake.Deduplicator
	filter  *quake.TextFilter
	metrics *metrics.Metrics
	logger  logrus.FieldLogger

	// available reports free bytes under a path; replaced in tests.
	available func(path string) (uint64, error)
}

// New creates a Pipeline. The store must already be loaded. m may be nil.
func New(cfg *config.Config, store *storage.HashStore, hasher quake.Hasher, filter *quake.TextFilter, m *metrics.Metrics, logger logrus.FieldLogger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if store == nil {
		return nil, errors.New("hash store cannot be nil")
	}
	if hasher == nil {
		return nil, errors.New("hasher cannot be nil")
	}
	if filter == nil {
		return nil, errors.New("text filter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	dd := quake.NewDeduplicator(hasher, cfg.Fetch.Workers, logger)
	if m != nil {
		dd.OnHash = m.ObserveHash
	}
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		dedupe:    dd,
		filter:    filter,
		metrics:   m,
		logger:    logger,
		available: fs.Available,
	}, nil
}

// FileResult describes the processing of one input file.
type FileResult struct {
	File      string
	Records   int // records read
	Reposts   int // records dropped as reposts
	Text      int // records written to the text subset
	Image     int // records written to the image subset
	NewHashes int // hashes added to the store
	TextPath  string
	ImagePath string
	Err       error
}

// Summary describes a whole batch.
type Summary struct {
	RunID       string
	OutputDir   string
	Files       []FileResult
	FilesOK     int
	FilesFailed int
	Duration    time.Duration
}

// Totals sums the per-file counts of successful files.
func (s *Summary) Totals() (records, text, image, newHashes int) {
	for _, f := range s.Files {
		if f.Err != nil {
			continue
		}
		records += f.Records
		text += f.Text
		image += f.Image
		newHashes += f.NewHashes
	}
	return records, text, image, newHashes
}

// OutputDir returns the folder that receives the outputs of folder.
func OutputDir(folder, suffix string) string {
	return filepath.Clean(folder) + suffix
}

// OutputNames returns the text and image output file names for an input file name.
// The stem is the name up to its first '.'.
func OutputNames(file string) (text, image string) {
	stem := filepath.Base(file)
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	return stem + "_text.json", stem + "_image.json"
}

// ListInputs returns the .json files directly inside folder, in lexical order.
func ListInputs(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// ProcessFolder runs every input file of folder through the pipeline. A file that fails
// is logged and skipped; running out of disk space halts the batch.
func (p *Pipeline) ProcessFolder(ctx context.Context, folder string, progressCb ProgressCallback) (*Summary, error) {
	if progressCb == nil {
		progressCb = noOpProgress
	}
	start := time.Now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		OutputDir: OutputDir(folder, p.cfg.OutputSuffix),
	}
	logger := p.logger.WithFields(logrus.Fields{"run_id": summary.RunID, "folder": folder})
	defer func() {
		summary.Duration = time.Since(start)
		if p.metrics != nil {
			p.metrics.RunDuration.Set(summary.Duration.Seconds())
		}
	}()

	info, err := os.Stat(folder)
	if err != nil {
		return summary, fmt.Errorf("failed to read input folder: %w", err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("input %s is not a folder", folder)
	}
	files, err := ListInputs(folder)
	if err != nil {
		return summary, err
	}
	if err := os.MkdirAll(summary.OutputDir, 0750); err != nil {
		return summary, fmt.Errorf("failed to create output folder: %w", err)
	}
	logger.WithField("files", len(files)).Info("starting batch")

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		progressCb(i, len(files), name)
		res, err := p.ProcessFile(ctx, filepath.Join(folder, name), summary.OutputDir)
		summary.Files = append(summary.Files, res)
		if err != nil {
			summary.FilesFailed++
			p.countFile("failed")
			if errors.Is(err, quake.ErrDiskSpace) || ctx.Err() != nil {
				logger.WithError(err).WithField("file", name).Error("halting batch")
				return summary, err
			}
			logger.WithError(err).WithField("file", name).Error("file failed, continuing")
			continue
		}
		summary.FilesOK++
		p.countFile("ok")
		logger.WithFields(logrus.Fields{
			"file":       name,
			"records":    res.Records,
			"reposts":    res.Reposts,
			"text":       res.Text,
			"image":      res.Image,
			"new_hashes": res.NewHashes,
		}).Info("file processed")
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	progressCb(len(files), len(files), "done")
	return summary, nil
}

// ProcessFile loads one input file, filters it, deduplicates its images, saves the hash
// store and writes the two output files into outDir.
func (p *Pipeline) ProcessFile(ctx context.Context, path, outDir string) (FileResult, error) {
	name := filepath.Base(path)
	res := FileResult{File: name}
	fail := func(err error) (FileResult, error) {
		res.Err = err
		return res, err
	}
	logger := p.logger.WithField("file", name)

	posts, err := quake.ReadPosts(path)
	if err != nil {
		return fail(err)
	}
	res.Records = len(posts)
	posts, res.Reposts = quake.DropReposts(posts, p.cfg.RepostPrefix)
	quake.SortByTime(posts)
	logger.WithFields(logrus.Fields{"records": res.Records, "reposts": res.Reposts}).Debug("loaded")

	textPosts := p.filter.Select(posts)

	// Failed fetches of an earlier file are retried here.
	p.dedupe.Reset()
	p.store.SetSource(name)
	p.dedupe.Prefetch(ctx, posts)
	imagePosts := make([]*quake.Post, 0)
	abandon := func(err error) (FileResult, error) {
		if n := p.store.Discard(); n > 0 {
			logger.WithField("hashes", n).Warn("file abandoned, new hashes not saved")
		}
		return fail(err)
	}
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return abandon(err)
		}
		p.dedupe.Apply(ctx, post, p.store)
		if p.metrics != nil {
			p.metrics.ObservePost(post)
		}
		if len(post.UniqueImageURLs) > 0 {
			imagePosts = append(imagePosts, post)
		}
	}

	// A fetch cut short by cancellation reads as an absent hash; nothing of this file is kept.
	if err := ctx.Err(); err != nil {
		return abandon(err)
	}
	res.NewHashes, err = p.store.Save()
	if err != nil {
		return abandon(err)
	}

	if err := p.checkDiskSpace(outDir); err != nil {
		return fail(err)
	}
	textName, imageName := OutputNames(name)
	res.TextPath = filepath.Join(outDir, textName)
	res.ImagePath = filepath.Join(outDir, imageName)

	textOut := make([]*quake.Post, len(textPosts))
	for i, post := range textPosts {
		textOut[i] = post.Base()
	}
	if err := writeAtomic(res.TextPath, textOut); err != nil {
		return fail(err)
	}
	if err := writeAtomic(res.ImagePath, imagePosts); err != nil {
		return fail(err)
	}
	res.Text, res.Image = len(textPosts), len(imagePosts)

	if p.metrics != nil {
		p.metrics.Records.WithLabelValues("read").Add(float64(res.Records))
		p.metrics.Records.WithLabelValues("reposts").Add(float64(res.Reposts))
		p.metrics.Matches.WithLabelValues("text").Add(float64(res.Text))
		p.metrics.Matches.WithLabelValues("image").Add(float64(res.Image))
		p.metrics.NewHashes.Add(float64(res.NewHashes))
	}
	return res, nil
}

func (p *Pipeline) countFile(outcome string) {
	if p.metrics != nil {
		p.metrics.Files.WithLabelValues(outcome).Inc()
	}
}

// checkDiskSpace fails with quake.ErrDiskSpace when the output volume is nearly full.
func (p *Pipeline) checkDiskSpace(dir string) error {
	if p.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := p.available(dir)
	if err != nil {
		if errors.Is(err, fs.ErrUnsupportedOS) {
			return nil
		}
		return fmt.Errorf("failed to check free space: %w", err)
	}
	if free < p.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free in %s, need %d", quake.ErrDiskSpace, free, dir, p.cfg.MinFreeBytes)
	}
	return nil
}
