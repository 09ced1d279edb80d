package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jchantrell/slimdivers/internal/catalog"
)

// Companion suffixes stored alongside a package
const (
	GPUSuffix    = ".gpu_resources"
	StreamSuffix = ".stream"
)

// Reconstruct reassembles the flat bytes of a bundled package. Each entry
// covers the bytes up to the next entry (or the package size) and may span
// several bundle resources.
func (s *Store) Reconstruct(name string) ([]byte, error) {
	base := filepath.Base(name)
	p, ok := s.Catalog().Package(base)
	if !ok {
		return nil, notFound("package %s", base)
	}

	out := make([]byte, p.Size)
	for i, e := range p.Entries {
		if e.OriginalOffset > p.Size {
			return nil, fmt.Errorf("%w: entry %d of %s starts at %d past package size %d",
				catalog.ErrCorruptIndex, i, base, e.OriginalOffset, p.Size)
		}

		span := p.Span(i)
		idx, err := s.offsets(e.Bundle())
		if err != nil {
			return nil, fmt.Errorf("entry %d of %s: %w", i, base, err)
		}

		segments, err := s.fetcher.FetchRun(s.path(e.Bundle()), idx, e.StartOffset, span)
		if err != nil {
			return nil, fmt.Errorf("entry %d of %s: %w", i, base, err)
		}

		data := bytes.Join(segments, nil)
		if uint64(len(data)) > span {
			data = data[:span]
		}
		copy(out[e.OriginalOffset:], data)
	}

	slog.Debug("Reconstructed package", "package", base, "size", p.Size, "entries", len(p.Entries))
	return out, nil
}

// Contents holds the three payloads that make up a package. Companions
// that do not exist are left empty.
type Contents struct {
	TOC    []byte
	GPU    []byte
	Stream []byte
}

// LoadPackage returns the main payload and the GPU and stream companions of
// a package, whatever its storage form.
func (s *Store) LoadPackage(name string) (*Contents, error) {
	base := filepath.Base(name)

	var load func(string) ([]byte, error)
	switch kind := s.Classify(base); kind {
	case KindBundled:
		load = s.Reconstruct
	case KindDsar:
		load = func(n string) ([]byte, error) {
			return s.fetcher.FetchWhole(s.path(n))
		}
	case KindLegacy:
		load = func(n string) ([]byte, error) {
			return os.ReadFile(s.path(n))
		}
	default:
		return nil, notFound("package %s", base)
	}

	main, err := load(base)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", base, err)
	}

	contents := &Contents{TOC: main}
	for suffix, dst := range map[string]*[]byte{GPUSuffix: &contents.GPU, StreamSuffix: &contents.Stream} {
		data, err := load(base + suffix)
		switch {
		case err == nil:
			*dst = data
		case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("loading %s%s: %w", base, suffix, err)
		}
	}

	return contents, nil
}

// Export writes the non-empty payloads of a package into dir and returns
// the paths written.
func (s *Store) Export(name, dir string) ([]string, error) {
	contents, err := s.LoadPackage(name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	base := filepath.Base(name)
	var written []string
	for _, part := range []struct {
		name string
		data []byte
	}{
		{base, contents.TOC},
		{base + GPUSuffix, contents.GPU},
		{base + StreamSuffix, contents.Stream},
	} {
		if len(part.data) == 0 {
			continue
		}
		path := filepath.Join(dir, part.name)
		if err := os.WriteFile(path, part.data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", part.name, err)
		}
		written = append(written, path)
	}

	return written, nil
}
