package cmd

import (
	"errors"
	"fmt"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/perpetuallyhorni/quakefilter/pkg/metrics"
	"github.com/perpetuallyhorni/quakefilter/pkg/network"
	"github.com/perpetuallyhorni/quakefilter/pkg/pipeline"
	"github.com/perpetuallyhorni/quakefilter/pkg/ratelimiter"
	"github.com/perpetuallyhorni/quakefilter/pkg/storage"
	"github.com/perpetuallyhorni/quakefilter/tools/quakefilter/internal/cli"
	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter <folder>",
	Short: "Filter every JSON file of a folder into text and image subsets.",
	Long: `Filter every JSON file of a folder into text and image subsets.

Reposts are dropped, the remaining records are matched against the damage vocabulary of
the chosen language, and their images are downloaded and hashed so that each picture is
kept only the first time it is seen, including across earlier runs.
Outputs are written to <folder>_filtered as <stem>_text.json and <stem>_image.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

// newPipeline wires the filter pipeline from the loaded configuration.
func newPipeline(m *metrics.Metrics) (*pipeline.Pipeline, *storage.HashStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	lang, err := quake.ParseLanguage(cfg.Language)
	if err != nil {
		return nil, nil, err
	}
	vocab := quake.DefaultVocabulary()
	if cfg.VocabularyFile != "" {
		if vocab, err = quake.LoadVocabulary(cfg.VocabularyFile); err != nil {
			return nil, nil, err
		}
	}
	filter, err := quake.NewTextFilter(lang, vocab)
	if err != nil {
		return nil, nil, err
	}

	transport, err := network.NewTransport(cfg.Fetch.BindAddress)
	if err != nil {
		return nil, nil, err
	}
	opt := cfg.Fetch.FetchOpt()
	opt.Transport = transport
	if limiter := ratelimiter.New(cfg.Fetch.Interval); !limiter.Unlimited() {
		opt.Limiter = limiter
	}
	fetcher := quake.NewFetcher(opt)

	store := storage.NewHashStore(database)
	if err := store.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load hash store: %w", err)
	}
	p, err := pipeline.New(&cfg.Config, store, fetcher, filter, m, fileLogger)
	if err != nil {
		return nil, nil, err
	}
	return p, store, nil
}

// runFilter executes the filter command.
func runFilter(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	folder := args[0]

	m := metrics.New()
	p, store, err := newPipeline(m)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptStore) {
			console.Error("Hash store '%s' is corrupt. Move it aside to start a fresh one.", cfg.HashStorePath)
		}
		return err
	}
	console.Info("Filtering %s (%s), %d known image hashes", console.Bold.Sprint(folder), cfg.Language, store.Len())

	taskID := "filter"
	console.AddTask(taskID, "Listing input files...", cli.OpFilter)
	summary, runErr := p.ProcessFolder(cmd.Context(), folder, console.Progress(taskID))
	console.RemoveTask(taskID)
	console.StopRenderer()

	for _, f := range summary.Files {
		if f.Err != nil {
			console.Error("%s: %v", f.File, f.Err)
			continue
		}
		console.Success("%s: %d records, %d text, %d image, %d new hashes", f.File, f.Records, f.Text, f.Image, f.NewHashes)
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			console.Warn("Could not write metrics file: %v", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, quake.ErrDiskSpace) {
			console.Error("Disk space error. Halting.")
		}
		return runErr
	}

	records, text, image, newHashes := summary.Totals()
	console.Info("Run %s: %d/%d files, %d records, %d text, %d image, %d new hashes in %s",
		summary.RunID, summary.FilesOK, len(summary.Files), records, text, image, newHashes, summary.Duration.Round(1e6))
	console.Info("Outputs written to %s", summary.OutputDir)
	return nil
}
