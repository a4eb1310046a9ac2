package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/perpetuallyhorni/quakefilter/pkg/config"
)

const AppName = "quakefilter"

// Config extends the core config with CLI-specific options.
type Config struct {
	config.Config `koanf:",squash"`
	HashStorePath string `koanf:"hash_store_path"`
	ImageCacheDir string `koanf:"image_cache_dir"`
	MetricsFile   string `koanf:"metrics_file"`
	EnvFile       string `koanf:"env_file"`
}

// Default returns the default CLI configuration.
func Default() (*Config, error) {
	coreCfg := config.Default()
	dbPath, err := xdg.DataFile(filepath.Join(AppName, "seen_hashes.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to get default hash store path: %w", err)
	}
	cacheDir, err := xdg.CacheFile(filepath.Join(AppName, "images", ".keep"))
	if err != nil {
		return nil, fmt.Errorf("failed to get default image cache path: %w", err)
	}
	envPath, err := xdg.ConfigFile(filepath.Join(AppName, ".env"))
	if err != nil {
		return nil, fmt.Errorf("failed to get default env file path: %w", err)
	}

	return &Config{
		Config:        *coreCfg,
		HashStorePath: dbPath,
		ImageCacheDir: filepath.Dir(cacheDir),
		MetricsFile:   "", // Metrics are only written when a path is set
		EnvFile:       envPath,
	}, nil
}

// Load loads the configuration from the given path, writing a commented default
// file there first when none exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	defCfg, err := Default()
	if err != nil {
		return nil, err
	}
	cfgPath := path
	if cfgPath == "" {
		cfgPath, err = xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := createDefaultConfig(cfgPath, defCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}
	if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg := defCfg
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// An empty path in the file means "use the default", not "no store".
	if cfg.HashStorePath == "" || cfg.ImageCacheDir == "" {
		fallback, err := Default()
		if err != nil {
			return nil, err
		}
		if cfg.HashStorePath == "" {
			cfg.HashStorePath = fallback.HashStorePath
		}
		if cfg.ImageCacheDir == "" {
			cfg.ImageCacheDir = fallback.ImageCacheDir
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createDefaultConfig creates a default configuration file.
func createDefaultConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content := fmt.Sprintf(`# quakefilter CLI configuration file.
# Filter language. Options: "english", "japanese".
language: "%s"
# Records whose text starts with this prefix are reposts and are dropped.
repost_prefix: "%s"
# Outputs of <folder> are written to <folder><output_suffix>.
output_suffix: "%s"
# Optional YAML file with "english" and "japanese" word lists replacing the built-in ones.
vocabulary_file: "%s"
# Halt the batch when the output volume has less free space than this, in bytes. 0 disables the check.
min_free_bytes: %d
# SQLite database of image hashes seen in earlier runs.
hash_store_path: "%s"
# Directory where images are cached for rating.
image_cache_dir: "%s"
# Optional Prometheus textfile written after every run.
metrics_file: "%s"
# File with OPENAI_API_KEY and ANTHROPIC_API_KEY for the rate command.
env_file: "%s"

fetch:
  # Per-request timeout for image downloads.
  timeout: "%s"
  # Retries for network errors, 5xx and 429 responses.
  retries: %d
  retry_delay: "%s"
  max_retry_delay: "%s"
  # Concurrent image downloads per file. 1 downloads sequentially.
  workers: %d
  # Minimum time between image requests, e.g. "250ms". 0 disables pacing.
  interval: "%s"
  user_agent: "%s"
  # Local IP address or interface name for outgoing connections.
  bind_address: "%s"

models:
  gpt_model: "%s"
  claude_model: "%s"
  openai_url: "%s"
  # Leave empty for the default Anthropic endpoint.
  claude_url: "%s"
  max_tokens: %d
  retries: %d
  retry_delay: "%s"
  timeout: "%s"
  # Records rated in parallel.
  concurrency: %d
  # Epicenter named in the text rating prompt, e.g. "Noto Peninsula".
  epicenter: "%s"
`,
		cfg.Language, cfg.RepostPrefix, cfg.OutputSuffix, cfg.VocabularyFile, cfg.MinFreeBytes,
		cfg.HashStorePath, cfg.ImageCacheDir, cfg.MetricsFile, cfg.EnvFile,
		cfg.Fetch.Timeout, cfg.Fetch.Retries, cfg.Fetch.RetryDelay, cfg.Fetch.MaxRetryDelay,
		cfg.Fetch.Workers, cfg.Fetch.Interval, cfg.Fetch.UserAgent, cfg.Fetch.BindAddress,
		cfg.Models.GPTModel, cfg.Models.ClaudeModel, cfg.Models.OpenAIURL, cfg.Models.ClaudeURL,
		cfg.Models.MaxTokens, cfg.Models.Retries, cfg.Models.RetryDelay, cfg.Models.Timeout,
		cfg.Models.Concurrency, cfg.Models.Epicenter)
	content = strings.ReplaceAll(content, "\\", "/")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write default config file: %w", err)
	}
	return nil
}
