// Package archive resolves package names to bytes regardless of whether the
// package is a flat legacy file, a compressed DSAR container or a set of
// runs inside numbered bundles.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/worker"
	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("not found")

// SlimMarker is a package that only exists as a flat file in full installs
const SlimMarker = "9ba626afa44a3aa3"

// Options configures a Store
type Options struct {
	// Workers bounds concurrent container indexing during catalog builds
	Workers int

	// CacheSize is the number of fetched resources kept in memory
	CacheSize int

	// Progress is notified while the catalog is built
	Progress worker.ProgressFunc
}

// Store is a session over one game data root. It owns the open container
// handles and the published catalog.
type Store struct {
	root    string
	opts    Options
	handles *bundle.Handles
	fetcher *bundle.Fetcher

	catalog atomic.Pointer[catalog.Catalog]
	builds  singleflight.Group
}

// Open creates a store over root. The catalog is not built until Init or
// BuildCatalog is called.
func Open(root string, opts Options) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening data root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data root %s is not a directory", root)
	}

	handles := bundle.NewHandles()
	fetcher, err := bundle.NewFetcher(handles, opts.CacheSize)
	if err != nil {
		handles.Close()
		return nil, err
	}

	return &Store{
		root:    root,
		opts:    opts,
		handles: handles,
		fetcher: fetcher,
	}, nil
}

// ValidateRoot checks that root looks like a game data directory
func ValidateRoot(root string) error {
	for _, name := range []string{SlimMarker, catalog.MasterIndexName} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no game data found in %s: expected %s or %s", root, SlimMarker, catalog.MasterIndexName)
}

// Root returns the data root
func (s *Store) Root() string {
	return s.root
}

// IsSlim reports whether packages live in bundles rather than flat files
func (s *Store) IsSlim() bool {
	_, err := os.Stat(filepath.Join(s.root, SlimMarker))
	return os.IsNotExist(err)
}

// Init builds the catalog when the install is slim. Full installs need no
// catalog and return a nil report.
func (s *Store) Init(ctx context.Context) (*worker.Report, error) {
	if !s.IsSlim() {
		slog.Debug("Full install detected, skipping catalog", "root", s.root)
		return nil, nil
	}
	_, report, err := s.BuildCatalog(ctx)
	return report, err
}

type buildResult struct {
	catalog *catalog.Catalog
	report  *worker.Report
}

// BuildCatalog builds the catalog and publishes it once complete. Concurrent
// callers share a single build; readers keep seeing the previous catalog
// until the new one is published.
func (s *Store) BuildCatalog(ctx context.Context) (*catalog.Catalog, *worker.Report, error) {
	v, err, _ := s.builds.Do("catalog", func() (any, error) {
		cat, report, err := catalog.Build(ctx, s.root, s.fetcher, catalog.Options{
			Workers:  s.opts.Workers,
			Progress: s.opts.Progress,
		})
		if err != nil {
			return nil, err
		}
		s.catalog.Store(cat)
		return buildResult{catalog: cat, report: report}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	res := v.(buildResult)
	return res.catalog, res.report, nil
}

// Catalog returns the published catalog, or nil before the first build
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog.Load()
}

// Close releases every open container handle
func (s *Store) Close() error {
	slog.Debug("Closing archive store", "root", s.root, "mappings", s.handles.Len())
	return s.handles.Close()
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.Base(name))
}
