package config

import (
	"errors"
	"fmt"
	"time"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
)

// Config struct holds the core, application-agnostic configuration.
type Config struct {
	Language       string       `koanf:"language"`        // Filter language ("english", "japanese").
	RepostPrefix   string       `koanf:"repost_prefix"`   // Text prefix marking a repost; such records are dropped.
	OutputSuffix   string       `koanf:"output_suffix"`   // Suffix appended to the input folder name for outputs.
	VocabularyFile string       `koanf:"vocabulary_file"` // Optional YAML file replacing the built-in damage words.
	MinFreeBytes   uint64       `koanf:"min_free_bytes"`  // Halt the batch when the output volume has less free space.
	Fetch          FetchConfig  `koanf:"fetch"`           // Image fetching.
	Models         ModelsConfig `koanf:"models"`          // MMI rating models.
}

// FetchConfig controls how images are downloaded for hashing.
type FetchConfig struct {
	Timeout       time.Duration `koanf:"timeout"`         // Per-request timeout.
	Retries       int           `koanf:"retries"`         // Retries for network errors, 5xx and 429.
	RetryDelay    time.Duration `koanf:"retry_delay"`     // Delay before the first retry.
	MaxRetryDelay time.Duration `koanf:"max_retry_delay"` // Backoff cap.
	Workers       int           `koanf:"workers"`         // Concurrent fetches per file; 1 disables prefetching.
	Interval      time.Duration `koanf:"interval"`        // Minimum time between requests; 0 disables pacing.
	UserAgent     string        `koanf:"user_agent"`      // User-Agent header.
	BindAddress   string        `koanf:"bind_address"`    // Local IP or interface for outgoing connections.
}

// ModelsConfig controls the MMI rating collaborators.
type ModelsConfig struct {
	GPTModel    string        `koanf:"gpt_model"`    // OpenAI model name.
	ClaudeModel string        `koanf:"claude_model"` // Anthropic model name.
	OpenAIURL   string        `koanf:"openai_url"`   // OpenAI-compatible API base URL.
	ClaudeURL   string        `koanf:"claude_url"`   // Optional Anthropic API base URL.
	MaxTokens   int           `koanf:"max_tokens"`   // Completion token limit.
	Retries     int           `koanf:"retries"`      // Retries per call.
	RetryDelay  time.Duration `koanf:"retry_delay"`  // Delay between retries.
	Timeout     time.Duration `koanf:"timeout"`      // Per-call timeout.
	Concurrency int           `koanf:"concurrency"`  // Items rated in parallel.
	Epicenter   string        `koanf:"epicenter"`    // Epicenter named in the text prompt.
}

// Default returns the default core configuration.
func Default() *Config {
	return &Config{
		Language:     string(quake.English),
		RepostPrefix: "RT @",
		OutputSuffix: "_filtered",
		MinFreeBytes: 64 << 20,
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			Retries:       2,
			RetryDelay:    time.Second,
			MaxRetryDelay: 10 * time.Second,
			Workers:       1,
			UserAgent:     quake.DefaultUserAgent,
		},
		Models: ModelsConfig{
			GPTModel:    "gpt-4o",
			ClaudeModel: "claude-3-5-sonnet-latest",
			OpenAIURL:   "https://api.openai.com/v1",
			MaxTokens:   1000,
			Retries:     20,
			RetryDelay:  100 * time.Millisecond,
			Timeout:     2 * time.Minute,
			Concurrency: 2,
		},
	}
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := quake.ParseLanguage(c.Language); err != nil {
		return err
	}
	if c.OutputSuffix == "" {
		return errors.New("output_suffix cannot be empty")
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch.workers must be at least 1, got %d", c.Fetch.Workers)
	}
	if c.Fetch.Retries < 0 || c.Models.Retries < 0 {
		return errors.New("retries cannot be negative")
	}
	if c.Models.Concurrency < 1 {
		return fmt.Errorf("models.concurrency must be at least 1, got %d", c.Models.Concurrency)
	}
	return nil
}

// FetchOpt converts the fetch settings into fetcher options.
func (f FetchConfig) FetchOpt() *quake.FetchOpt {
	return &quake.FetchOpt{
		Timeout:       f.Timeout,
		Retries:       f.Retries,
		RetryDelay:    f.RetryDelay,
		MaxRetryDelay: f.MaxRetryDelay,
		UserAgent:     f.UserAgent,
	}
}
