package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jchantrell/slimdivers/internal/archive"
	"github.com/jchantrell/slimdivers/internal/toc"
	"github.com/jchantrell/slimdivers/internal/utils"
	"github.com/jchantrell/slimdivers/internal/worker"
)

func progressEnabled() bool {
	return !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug")
}

// openStore opens the configured data root and builds its catalog
func openStore(ctx context.Context) (*archive.Store, error) {
	if err := cfg.RequireDataRoot(); err != nil {
		return nil, err
	}
	if err := archive.ValidateRoot(cfg.DataRoot); err != nil {
		return nil, err
	}

	progress := utils.NewProgress("Indexing bundles", progressEnabled())
	store, err := archive.Open(cfg.DataRoot, archive.Options{
		Workers:   cfg.Workers,
		CacheSize: cfg.CacheSize,
		Progress:  progress.Update,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := store.Init(ctx)
	progress.Finish()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building catalog: %w", err)
	}

	slog.Info("Data root opened",
		"root", cfg.DataRoot,
		"slim", store.IsSlim(),
		"containers", report.Succeeded(),
		"skipped", report.Failed(),
		"elapsed", utils.Duration(time.Since(start)))

	return store, nil
}

// buildLocations indexes the configured resource type across every package
func buildLocations(ctx context.Context, store *archive.Store) (*toc.Locations, *worker.Report, error) {
	names, err := store.PackageNames()
	if err != nil {
		return nil, nil, fmt.Errorf("listing packages: %w", err)
	}

	typeID, err := cfg.ResourceTypeID()
	if err != nil {
		return nil, nil, err
	}

	progress := utils.NewProgress("Scanning packages", progressEnabled())
	locs, report := toc.BuildLocations(ctx, store, names, typeID, toc.Options{
		Workers:  cfg.Workers,
		Progress: progress.Update,
	})
	progress.Finish()

	return locs, report, ctx.Err()
}

func printReport(label string, report *worker.Report, elapsed time.Duration) {
	total := len(report.Results)
	fmt.Printf("%s: %d/%d succeeded\n", label, report.Succeeded(), total)
	if report.Failed() > 0 {
		fmt.Printf("Failures: %d\n", report.Failed())
		for _, res := range report.Failures() {
			fmt.Printf("  %s: %v\n", res.Name, res.Err)
		}
	}
	if slowest, ok := report.Slowest(); ok && total > 1 {
		fmt.Printf("Slowest: %s (%s)\n", slowest.Name, utils.Duration(slowest.Elapsed))
	}
	fmt.Printf("Total duration: %s\n", utils.Duration(elapsed))
}
