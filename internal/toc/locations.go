package toc

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/jchantrell/slimdivers/internal/worker"
)

// Location is where a resource's data lives in the game data
type Location struct {
	Package string
	Offset  uint64
	Size    uint32
}

// Locations maps resource file ids to their location. It is safe for
// concurrent use.
type Locations struct {
	mu   sync.RWMutex
	byID map[uint64]Location
}

func NewLocations() *Locations {
	return &Locations{byID: make(map[uint64]Location)}
}

// Lookup returns the location of a resource
func (l *Locations) Lookup(id uint64) (Location, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	loc, ok := l.byID[id]
	return loc, ok
}

// Set records the location of a resource, replacing any previous one
func (l *Locations) Set(id uint64, loc Location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[id] = loc
}

// Len returns the number of indexed resources
func (l *Locations) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

// IDs returns every indexed id in ascending order
func (l *Locations) IDs() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.byID))
}

// Source provides the table of contents of a package
type Source interface {
	TOC(name string) ([]byte, error)
}

// Options configures a location index build
type Options struct {
	Workers  int
	Progress worker.ProgressFunc
}

// BuildLocations reads the table of contents of every package and indexes
// the headers with the given type id. Packages are scanned concurrently;
// results are merged in package name order so that when several packages
// declare the same id the last one by name wins. Packages that fail to
// load or parse are reported and skipped.
func BuildLocations(ctx context.Context, src Source, names []string, typeID uint64, opts Options) (*Locations, *worker.Report) {
	var mu sync.Mutex
	found := make(map[string][]Header, len(names))

	report := worker.Run(ctx, opts.Workers, names,
		func(name string) string { return name },
		func(_ context.Context, name string) error {
			data, err := src.TOC(name)
			if err != nil {
				return fmt.Errorf("loading toc: %w", err)
			}

			headers, err := IndexByType(data, typeID)
			if err != nil {
				return fmt.Errorf("parsing toc: %w", err)
			}

			mu.Lock()
			found[name] = headers
			mu.Unlock()
			return nil
		}, opts.Progress)

	locs := NewLocations()
	for _, name := range slices.Sorted(maps.Keys(found)) {
		for _, h := range found[name] {
			locs.byID[h.FileID] = Location{Package: name, Offset: h.DataOffset, Size: h.DataSize}
		}
	}

	for _, res := range report.Failures() {
		slog.Debug("Skipping package toc", "package", res.Name, "error", res.Err)
	}

	slog.Info("Resource index built",
		"packages", report.Succeeded(),
		"skipped", report.Failed(),
		"resources", locs.Len())

	return locs, report
}
