package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads one labelled counter from the registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestObservePost(t *testing.T) {
	m := New()
	p := &quake.Post{}
	p.SetImages(
		[]string{"u1", "u2", "u1", "broken"},
		[]quake.Hash{"h1", "h2", "h1", ""},
		[]string{"u1"},
	)
	m.ObservePost(p)

	reg := m.Registry()
	assert.Equal(t, 1.0, counterValue(t, reg, "quakefilter_image_urls_total", "verdict", "unique"))
	assert.Equal(t, 2.0, counterValue(t, reg, "quakefilter_image_urls_total", "verdict", "duplicate"))
	assert.Equal(t, 1.0, counterValue(t, reg, "quakefilter_image_urls_total", "verdict", "unknown"))
}

func TestObserveHash(t *testing.T) {
	m := New()
	m.ObserveHash(quake.HashResult{URL: "u1", Hash: "h1"})
	m.ObserveHash(quake.HashResult{URL: "u2", Err: errors.New("404")})
	m.ObserveHash(quake.HashResult{URL: "u3", Hash: "h3"})

	assert.Equal(t, 2.0, counterValue(t, m.Registry(), "quakefilter_image_fetches_total", "outcome", "ok"))
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "quakefilter_image_fetches_total", "outcome", "failed"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Files.WithLabelValues("ok").Inc()
	m.NewHashes.Add(3)

	path := filepath.Join(t.TempDir(), "metrics", "quakefilter.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `quakefilter_files_total{outcome="ok"} 1`)
	assert.Contains(t, string(data), "quakefilter_new_hashes_total 3")
}
