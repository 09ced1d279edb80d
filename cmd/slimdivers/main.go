package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jchantrell/slimdivers/internal/config"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	cfgFile string

	dataRoot     string
	patchDir     string
	outputDir    string
	dbPath       string
	workers      int
	cacheSize    int
	resourceType string
	listen       string
	logLevel     string
	logFormat    string
	noProgress   bool
)

var rootCmd = &cobra.Command{
	Use:   "slimdivers",
	Short: "Helldivers 2 slim archive reader and mod patch updater",
	Long: `slimdivers reads game packages from both full and slim installs of
Helldivers 2, where slim installs keep package bytes scattered across
compressed bundle files.

It can rebuild flat packages from bundles, inspect package tables of
contents, export an index of every resource to SQLite, and update mod
patch files so that their units match the current game data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("data-root") {
			cfg.DataRoot = dataRoot
		}
		if flags.Changed("patch-dir") {
			cfg.PatchDir = patchDir
		}
		if flags.Changed("output-dir") {
			cfg.OutputDir = outputDir
		}
		if flags.Changed("database") {
			cfg.Database = dbPath
		}
		if flags.Changed("workers") {
			cfg.Workers = workers
		}
		if flags.Changed("cache-size") {
			cfg.CacheSize = cacheSize
		}
		if flags.Changed("resource-type") {
			cfg.ResourceType = resourceType
		}
		if flags.Changed("listen") {
			cfg.Listen = listen
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("log-format") {
			cfg.LogFormat = logFormat
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		slog.SetDefault(slog.New(handler))

		slog.Debug("Configuration",
			"data_root", cfg.DataRoot,
			"patch_dir", cfg.PatchDir,
			"output_dir", cfg.OutputDir,
			"database", cfg.Database,
			"workers", cfg.Workers,
			"cache_size", cfg.CacheSize,
			"resource_type", cfg.ResourceType,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is slimdivers.yaml in home or pwd)")
	rootCmd.PersistentFlags().StringVarP(&dataRoot, "data-root", "r", "", "game data directory")
	rootCmd.PersistentFlags().StringVar(&patchDir, "patch-dir", "", "directory searched for patch files")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "directory for reconstructed packages")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "database file path")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of concurrent workers")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "number of decoded resources kept in memory")
	rootCmd.PersistentFlags().StringVar(&resourceType, "resource-type", "", "resource type id to index and relocate, in hex")
	rootCmd.PersistentFlags().StringVar(&listen, "listen", "", "address for the HTTP API")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}
