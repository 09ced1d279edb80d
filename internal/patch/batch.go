package patch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jchantrell/slimdivers/internal/worker"
)

// IsPatchFile reports whether a file name has a patch extension such as
// ".patch_0".
func IsPatchFile(name string) bool {
	return strings.Contains(filepath.Ext(name), "patch")
}

// FindPatches walks dir and returns every patch file below it
func FindPatches(dir string) ([]string, error) {
	var patches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsPatchFile(d.Name()) {
			patches = append(patches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning patch directory: %w", err)
	}
	return patches, nil
}

// Options configures a batch update
type Options struct {
	Workers  int
	Progress worker.ProgressFunc
}

// UpdateAll relocates every patch file under dir concurrently. A file that
// fails is left as it was and recorded in the report without stopping the
// others.
func (r *Relocator) UpdateAll(ctx context.Context, dir string, opts Options) (*worker.Report, error) {
	patches, err := FindPatches(dir)
	if err != nil {
		return nil, err
	}

	if len(patches) == 0 {
		slog.Warn("No patch files found", "dir", dir)
		return &worker.Report{}, nil
	}

	slog.Info("Updating patch files", "count", len(patches))

	report := worker.Run(ctx, opts.Workers, patches,
		func(path string) string { return path },
		func(_ context.Context, path string) error {
			_, err := r.UpdateFile(path)
			if err != nil {
				slog.Error("Failed to update patch file", "file", path, "error", err)
			}
			return err
		}, opts.Progress)

	return report, nil
}
