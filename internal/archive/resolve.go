package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/toc"
)

// Kind is the storage form of a package
type Kind int

const (
	KindUnknown Kind = iota
	KindDsar
	KindBundled
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindDsar:
		return "dsar"
	case KindBundled:
		return "bundled"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// DsarMagic opens a compressed single-file container ("DSAR")
const DsarMagic uint32 = 0x52415344

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Classify determines how a package is stored. A file in the data root is
// either a DSAR container or a legacy package; a name without a file lives
// only in bundles.
func (s *Store) Classify(name string) Kind {
	r, err := s.handles.Acquire(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return KindBundled
		}
		slog.Debug("Unable to open package", "package", name, "error", err)
		return KindUnknown
	}

	var magic [4]byte
	if n, _ := r.ReadAt(magic[:], 0); n == len(magic) && binary.LittleEndian.Uint32(magic[:]) == DsarMagic {
		return KindDsar
	}
	return KindLegacy
}

// TOC returns the table of contents region of a package.
func (s *Store) TOC(name string) ([]byte, error) {
	switch s.Classify(name) {
	case KindLegacy:
		return s.legacyTOC(name)
	case KindDsar:
		return s.fetchContainer(name, 0)
	case KindBundled:
		p, ok := s.Catalog().Package(filepath.Base(name))
		if !ok || len(p.Entries) == 0 {
			return nil, notFound("package %s", name)
		}
		e := p.Entries[0]
		return s.fetchBundle(e, e.StartOffset)
	default:
		return nil, notFound("package %s", name)
	}
}

// Resource returns the bytes of a package starting at a logical offset.
// Legacy packages return exactly size bytes; container-backed packages
// return the whole resource beginning at offset and ignore size.
func (s *Store) Resource(name string, offset, size uint64) ([]byte, error) {
	switch s.Classify(name) {
	case KindLegacy:
		return s.legacyRange(name, offset, size)
	case KindDsar:
		return s.fetchContainer(name, offset)
	case KindBundled:
		p, ok := s.Catalog().Package(filepath.Base(name))
		if !ok {
			return nil, notFound("package %s", name)
		}
		e, ok := p.Find(offset)
		if !ok {
			return nil, notFound("offset %d in %s (%d bytes)", offset, name, p.Size)
		}
		return s.fetchBundle(e, e.StartOffset+(offset-e.OriginalOffset))
	default:
		return nil, notFound("package %s", name)
	}
}

func (s *Store) legacyHeader(name string) (io.ReaderAt, int64, uint32, uint32, error) {
	r, err := s.handles.Acquire(s.path(name))
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("opening package %s: %w", name, err)
	}

	var head [12]byte
	if n, _ := r.ReadAt(head[:], 0); n < len(head) || binary.LittleEndian.Uint32(head[0:]) != toc.Magic {
		return nil, 0, 0, 0, notFound("legacy package %s: bad magic", name)
	}

	return r, int64(r.Len()), binary.LittleEndian.Uint32(head[4:]), binary.LittleEndian.Uint32(head[8:]), nil
}

func (s *Store) legacyTOC(name string) ([]byte, error) {
	r, length, types, files, err := s.legacyHeader(name)
	if err != nil {
		return nil, err
	}
	return readRange(r, length, 0, uint64(toc.RegionSize(types, files)), name)
}

func (s *Store) legacyRange(name string, offset, size uint64) ([]byte, error) {
	r, length, _, _, err := s.legacyHeader(name)
	if err != nil {
		return nil, err
	}
	return readRange(r, length, offset, size, name)
}

func readRange(r io.ReaderAt, length int64, offset, size uint64, name string) ([]byte, error) {
	if offset > uint64(length) || size > uint64(length)-offset {
		return nil, fmt.Errorf("reading %d bytes at %d from %s (%d bytes): %w", size, offset, name, length, io.ErrUnexpectedEOF)
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return buf, nil
}

// offsets returns the chunk index of a container, falling back to reading
// its chunk table when the catalog does not hold it.
func (s *Store) offsets(file string) (bundle.OffsetIndex, error) {
	if idx, ok := s.Catalog().Offsets(file); ok {
		return idx, nil
	}

	r, err := s.handles.Acquire(filepath.Join(s.root, file))
	if err != nil {
		return nil, fmt.Errorf("opening container %s: %w", file, err)
	}
	chunks, err := bundle.ReadChunkTable(r, int64(r.Len()))
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", file, err)
	}
	return bundle.BuildOffsetIndex(chunks), nil
}

func (s *Store) fetchContainer(name string, offset uint64) ([]byte, error) {
	file := filepath.Base(name)
	idx, err := s.offsets(file)
	if err != nil {
		return nil, err
	}
	return s.fetcher.FetchResource(s.path(file), idx, offset)
}

func (s *Store) fetchBundle(e catalog.Entry, offset uint64) ([]byte, error) {
	idx, err := s.offsets(e.Bundle())
	if err != nil {
		return nil, err
	}
	return s.fetcher.FetchResource(s.path(e.Bundle()), idx, offset)
}
