package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "english", cfg.Language)
	assert.Equal(t, "RT @", cfg.RepostPrefix)
	assert.Equal(t, "_filtered", cfg.OutputSuffix)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"language", func(c *Config) { c.Language = "french" }},
		{"suffix", func(c *Config) { c.OutputSuffix = "" }},
		{"workers", func(c *Config) { c.Fetch.Workers = 0 }},
		{"retries", func(c *Config) { c.Fetch.Retries = -1 }},
		{"concurrency", func(c *Config) { c.Models.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFetchOpt(t *testing.T) {
	f := FetchConfig{Timeout: time.Second, Retries: 4, RetryDelay: 2 * time.Second, MaxRetryDelay: 8 * time.Second, UserAgent: "ua"}
	opt := f.FetchOpt()
	assert.Equal(t, time.Second, opt.Timeout)
	assert.Equal(t, 4, opt.Retries)
	assert.Equal(t, 2*time.Second, opt.RetryDelay)
	assert.Equal(t, 8*time.Second, opt.MaxRetryDelay)
	assert.Equal(t, "ua", opt.UserAgent)
	assert.Nil(t, opt.Transport)
}
