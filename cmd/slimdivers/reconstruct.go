package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jchantrell/slimdivers/internal/utils"
	"github.com/jchantrell/slimdivers/internal/worker"
	"github.com/spf13/cobra"
)

var reconstructAll bool

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct [package...]",
	Short: "Rebuild flat packages from the bundles of a slim install",
	Long: `Reconstruct reassembles packages into output_dir. Every package is written
with its .gpu_resources and .stream companions when they exist. Packages
stored as files in the data root are copied out as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		names := args
		if reconstructAll {
			for _, name := range store.Catalog().PackageNames() {
				if filepath.Ext(name) == "" {
					names = append(names, name)
				}
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("no packages given, pass package names or --all")
		}

		slog.Info("Reconstructing packages", "count", len(names), "output", cfg.OutputDir)

		progress := utils.NewProgress("Reconstructing", progressEnabled())
		report := worker.Run(ctx, cfg.Workers, names,
			func(name string) string { return name },
			func(_ context.Context, name string) error {
				paths, err := store.Export(name, cfg.OutputDir)
				if err != nil {
					slog.Error("Failed to reconstruct package", "package", name, "error", err)
					return err
				}
				for _, p := range paths {
					slog.Debug("Wrote file", "path", p)
				}
				return nil
			}, progress.Update)
		progress.Finish()

		printReport("Packages reconstructed", report, time.Since(start))
		fmt.Printf("Output directory: %s\n", cfg.OutputDir)

		if report.Succeeded() == 0 {
			return fmt.Errorf("no packages reconstructed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconstructCmd)
	reconstructCmd.Flags().BoolVar(&reconstructAll, "all", false, "reconstruct every bundled package")
}
