package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/perpetuallyhorni/quakefilter/pkg/storage/sqlite"
	"github.com/perpetuallyhorni/quakefilter/tools/quakefilter/internal/cli"
	cliconfig "github.com/perpetuallyhorni/quakefilter/tools/quakefilter/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// cfg stores the application configuration.
	cfg *cliconfig.Config
	// console is the CLI console for output.
	console *cli.Console
	// fileLogger is the logger for writing logs to a file.
	fileLogger *logrus.Logger
	// logFile is the file behind fileLogger.
	logFile io.Closer
	// database stores the hashes of images seen in earlier runs.
	database *sqlite.DB
	// flagConfigPath is the path to the config file.
	flagConfigPath string
	// flagQuiet enables or disables quiet mode.
	flagQuiet bool
	// version is the version of the application. It is set at build time.
	version string
)

// SetVersion sets the version of the application.
func SetVersion(v string) {
	version = v
	if rootCmd != nil {
		rootCmd.Version = v
	}
}

// needsStore reports whether cmd works on the hash store.
func needsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "extract", "rate", "completion", "help":
		return false
	}
	return true
}

var rootCmd = &cobra.Command{
	Use:   "quakefilter [command|folder]",
	Short: "Filters earthquake social-media posts into text and de-duplicated image subsets.",
	Long: `Filters earthquake social-media posts into text and de-duplicated image subsets.

Run 'quakefilter <folder>' to filter every JSON file of a folder, or use a specific command.
For example:
  quakefilter ./noto_2024 --language japanese
  quakefilter extract ./raw ./noto_2024
  quakefilter rate image ./noto_2024_filtered/0101_image.json --model claude`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" {
			return nil
		}

		if err := loadEnv(cfg.EnvFile); err != nil {
			console.Warn("Could not load env file '%s': %v", cfg.EnvFile, err)
		}

		cleanLogs, _ := cmd.Flags().GetBool("clean-logs")
		debug, _ := cmd.Flags().GetBool("debug")
		var err error
		fileLogger, logFile, err = setupFileLogger(cleanLogs, debug, args)
		if err != nil {
			return fmt.Errorf("failed to set up file logger: %w", err)
		}

		if needsStore(cmd) {
			database, err = sqlite.New(cfg.HashStorePath)
			if err != nil {
				return fmt.Errorf("error opening hash store: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var closeErr error
		if database != nil {
			closeErr = database.Close()
			database = nil
		}
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
		return closeErr
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Run the default filter command.
		return runFilter(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// init initializes the command line interface.
func init() {
	console = cli.New(false)

	cobra.OnInitialize(func() {
		if val, err := rootCmd.Flags().GetBool("quiet"); err == nil && val {
			flagQuiet = true
			console = cli.New(true)
		}

		var err error
		cfg, err = cliconfig.Load(flagConfigPath)
		if err != nil {
			console.Error("Error loading config: %v", err)
			os.Exit(1)
		}

		// Apply command line flag overrides to the config.
		applyFlagOverrides(rootCmd, cfg)
	})

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode, no console output except for errors")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug info to stderr and log file")
	rootCmd.PersistentFlags().Bool("clean-logs", false, "Redact sensitive info (API keys, handles, paths) from log files")

	rootCmd.PersistentFlags().StringP("language", "l", "", fmt.Sprintf("Filter language %q. Overrides config.", quake.Languages))
	rootCmd.PersistentFlags().String("vocabulary", "", "YAML file replacing the built-in damage words (overrides config)")
	rootCmd.PersistentFlags().String("hash-store", "", "Path to the hash store database (overrides config)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this textfile after the run (overrides config)")
	rootCmd.PersistentFlags().Uint64("min-free", 0, "Minimum free bytes on the output volume (overrides config, 0 keeps config)")

	// Network flags
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Concurrent image downloads per file (overrides config)")
	rootCmd.PersistentFlags().String("interval", "", `Minimum time between image requests, e.g. "250ms". Overrides config.`)
	rootCmd.PersistentFlags().Int("retries", -1, "Retries for failed image downloads (overrides config)")
	rootCmd.PersistentFlags().String("bind", "", "Outbound IP address or interface to bind to (overrides config)")

	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(hashesCmd)
}

// Execute executes the root command. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
