package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/worker"
)

// Options configures a catalog build
type Options struct {
	// Workers bounds the number of files indexed concurrently
	Workers int

	// Progress is notified as each candidate file is indexed
	Progress worker.ProgressFunc
}

// IsContainerCandidate reports whether a data-root file may be a chunked
// container worth indexing.
func IsContainerCandidate(name string) bool {
	if strings.Contains(name, ".patch") {
		return false
	}
	switch filepath.Ext(name) {
	case "", ".stream", ".nxa", ".gpu_resources":
		return true
	default:
		return false
	}
}

// Build reads the master index and indexes the chunk table of every
// candidate container in root. A corrupt master index fails the build;
// candidate files that cannot be indexed are skipped and show up as
// failures in the returned report.
func Build(ctx context.Context, root string, fetcher *bundle.Fetcher, opts Options) (*Catalog, *worker.Report, error) {
	data, err := fetcher.FetchWhole(filepath.Join(root, MasterIndexName))
	if err != nil {
		return nil, nil, fmt.Errorf("reading master index: %w", err)
	}

	bundleCount, packages, err := ParseMasterIndex(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing master index: %w", err)
	}

	slog.Debug("Master index parsed", "bundles", bundleCount, "packages", len(packages))

	offsets, report, err := ScanContainers(ctx, root, opts)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Catalog built",
		"packages", len(packages),
		"bundles", bundleCount,
		"containers", len(offsets),
		"skipped", report.Failed())

	return New(bundleCount, packages, offsets), report, nil
}

// ScanContainers indexes the chunk table of every candidate file directly
// inside root, keyed by file name.
func ScanContainers(ctx context.Context, root string, opts Options) (map[string]bundle.OffsetIndex, *worker.Report, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading data root: %w", err)
	}

	var names []string
	for _, d := range dirents {
		if d.IsDir() || !IsContainerCandidate(d.Name()) {
			continue
		}
		names = append(names, d.Name())
	}

	var mu sync.Mutex
	offsets := make(map[string]bundle.OffsetIndex, len(names))

	report := worker.Run(ctx, opts.Workers, names,
		func(name string) string { return name },
		func(_ context.Context, name string) error {
			idx, err := indexContainer(filepath.Join(root, name))
			if err != nil {
				slog.Debug("Skipping container", "file", name, "error", err)
				return err
			}

			mu.Lock()
			offsets[name] = idx
			mu.Unlock()
			return nil
		}, opts.Progress)

	return offsets, report, nil
}

func indexContainer(path string) (bundle.OffsetIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	chunks, err := bundle.ReadChunkTable(f, info.Size())
	if err != nil {
		return nil, err
	}

	return bundle.BuildOffsetIndex(chunks), nil
}
