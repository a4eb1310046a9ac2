package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/perpetuallyhorni/quakefilter/pkg/logging"
	"github.com/perpetuallyhorni/quakefilter/pkg/mmi"
	cliconfig "github.com/perpetuallyhorni/quakefilter/tools/quakefilter/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// applyFlagOverrides applies command-line flag overrides to the configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *cliconfig.Config) {
	if cmd.Flag("language").Changed {
		cfg.Language, _ = cmd.Flags().GetString("language")
	}
	if cmd.Flag("vocabulary").Changed {
		cfg.VocabularyFile, _ = cmd.Flags().GetString("vocabulary")
	}
	if cmd.Flag("hash-store").Changed {
		if val, _ := cmd.Flags().GetString("hash-store"); val != "" {
			cfg.HashStorePath = val
		}
	}
	if cmd.Flag("metrics-file").Changed {
		cfg.MetricsFile, _ = cmd.Flags().GetString("metrics-file")
	}
	if cmd.Flag("min-free").Changed {
		if val, _ := cmd.Flags().GetUint64("min-free"); val > 0 {
			cfg.MinFreeBytes = val
		}
	}
	if cmd.Flag("workers").Changed {
		if val, _ := cmd.Flags().GetInt("workers"); val > 0 {
			cfg.Fetch.Workers = val
		}
	}
	if cmd.Flag("interval").Changed {
		val, _ := cmd.Flags().GetString("interval")
		if d, err := time.ParseDuration(val); err == nil && d >= 0 {
			cfg.Fetch.Interval = d
		} else {
			console.Warn("Ignoring invalid --interval %q", val)
		}
	}
	if cmd.Flag("retries").Changed {
		if val, _ := cmd.Flags().GetInt("retries"); val >= 0 {
			cfg.Fetch.Retries = val
		}
	}
	if cmd.Flag("bind").Changed {
		cfg.Fetch.BindAddress, _ = cmd.Flags().GetString("bind")
	}
}

// loadEnv reads API keys from path into the environment. A missing file is not an error
// and variables already set are kept.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// apiKeys returns the model credentials from the environment.
func apiKeys() mmi.Keys {
	return mmi.Keys{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
	}
}

// setupFileLogger sets up a file logger to log application events.
func setupFileLogger(clean, debug bool, paths []string) (*logrus.Logger, io.Closer, error) {
	logPath, err := xdg.StateFile(filepath.Join(cliconfig.AppName, "app.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("could not get log file path: %w", err)
	}
	f, err := logging.OpenFile(logPath)
	if err != nil {
		return nil, nil, err
	}

	var writer io.Writer = f
	if clean {
		keys := apiKeys()
		writer = logging.NewRedactingWriter(f, paths, []string{keys.OpenAI, keys.Anthropic})
	}

	level := logrus.InfoLevel
	if debug {
		// If debug is enabled, write to both file and stderr.
		writer = io.MultiWriter(writer, os.Stderr)
		level = logrus.DebugLevel
	}
	return logging.New(writer, level), f, nil
}
