package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of a filtering run.
type Metrics struct {
	Files       *prometheus.CounterVec // by outcome: ok, failed
	Records     *prometheus.CounterVec // by stage: read, reposts
	Matches     *prometheus.CounterVec // by subset: text, image
	Fetches     *prometheus.CounterVec // by outcome: ok, failed
	ImageURLs   *prometheus.CounterVec // by verdict: unique, duplicate, unknown
	NewHashes   prometheus.Counter
	RunDuration prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the run metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Files: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quakefilter_files_total",
			Help: "Input files processed, by outcome.",
		}, []string{"outcome"}),
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quakefilter_records_total",
			Help: "Records read and reposts dropped.",
		}, []string{"stage"}),
		Matches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quakefilter_matches_total",
			Help: "Records written to each output subset.",
		}, []string{"subset"}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quakefilter_image_fetches_total",
			Help: "Image fetch-and-hash attempts, by outcome.",
		}, []string{"outcome"}),
		ImageURLs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quakefilter_image_urls_total",
			Help: "Image URLs evaluated, by dedupe verdict.",
		}, []string{"verdict"}),
		NewHashes: factory.NewCounter(prometheus.CounterOpts{
			Name: "quakefilter_new_hashes_total",
			Help: "Hashes added to the seen-hash store.",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quakefilter_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		registry: reg,
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHash counts one fetch outcome.
func (m *Metrics) ObserveHash(res quake.HashResult) {
	if res.OK() {
		m.Fetches.WithLabelValues("ok").Inc()
		return
	}
	m.Fetches.WithLabelValues("failed").Inc()
}

// ObservePost counts the dedupe verdict of each image URL of a deduplicated post.
func (m *Metrics) ObservePost(p *quake.Post) {
	unique := make(map[string]int, len(p.UniqueImageURLs))
	for _, u := range p.UniqueImageURLs {
		unique[u]++
	}
	for i, u := range p.ImageURLs {
		switch {
		case i < len(p.ImageHashes) && p.ImageHashes[i] == "":
			m.ImageURLs.WithLabelValues("unknown").Inc()
		case unique[u] > 0:
			unique[u]--
			m.ImageURLs.WithLabelValues("unique").Inc()
		default:
			m.ImageURLs.WithLabelValues("duplicate").Inc()
		}
	}
}

// WriteTextfile writes the metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
