package bundle

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/mmap"
)

type resourceKey struct {
	path   string
	offset uint64
}

// Fetcher reads chunk runs out of containers. Containers are opened through
// a shared handle table and fetched resources may be kept in an LRU cache.
type Fetcher struct {
	handles *Handles
	cache   *lru.Cache[resourceKey, []byte]
}

// NewFetcher creates a fetcher over handles. A cacheSize of zero disables
// the resource cache.
func NewFetcher(handles *Handles, cacheSize int) (*Fetcher, error) {
	f := &Fetcher{handles: handles}

	if cacheSize > 0 {
		cache, err := lru.New[resourceKey, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating resource cache: %w", err)
		}
		f.cache = cache
	}

	return f, nil
}

func (f *Fetcher) open(path string) (*mmap.ReaderAt, int, error) {
	r, err := f.handles.Acquire(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening container %s: %w", path, err)
	}

	count, err := chunkCount(r, int64(r.Len()))
	if err != nil {
		return nil, 0, fmt.Errorf("container %s: %w", filepath.Base(path), err)
	}

	return r, count, nil
}

// payload reads and decodes the bytes of a single chunk
func payload(r *mmap.ReaderAt, c Chunk) ([]byte, error) {
	end := c.CompressedOffset + uint64(c.CompressedSize)
	if end > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: payload [%d, %d) past end of container (%d bytes)", ErrCorruptChunk, c.CompressedOffset, end, r.Len())
	}

	raw := make([]byte, c.CompressedSize)
	if _, err := r.ReadAt(raw, int64(c.CompressedOffset)); err != nil {
		return nil, fmt.Errorf("reading chunk payload at %d: %w", c.CompressedOffset, err)
	}

	return Decode(raw, c.Compression, c.UncompressedSize)
}

// FetchWhole decodes every chunk of a container in directory order and
// returns their concatenation.
func (f *Fetcher) FetchWhole(path string) ([]byte, error) {
	r, err := f.handles.Acquire(path)
	if err != nil {
		return nil, fmt.Errorf("opening container %s: %w", path, err)
	}

	chunks, err := ReadChunkTable(r, int64(r.Len()))
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", filepath.Base(path), err)
	}

	var total int
	for _, c := range chunks {
		total += int(c.UncompressedSize)
	}

	out := make([]byte, 0, total)
	for i, c := range chunks {
		data, err := payload(r, c)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", i, filepath.Base(path), err)
		}
		out = append(out, data...)
	}

	return out, nil
}

// FetchResource returns the logical resource whose first chunk begins at the
// given uncompressed offset. Chunks are collected until the last chunk of the
// container or until a chunk flagged as the start of another resource.
func (f *Fetcher) FetchResource(path string, index OffsetIndex, offset uint64) ([]byte, error) {
	key := resourceKey{path: filepath.Clean(path), offset: offset}
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			return bytes.Clone(data), nil
		}
	}

	ordinal, ok := index[offset]
	if !ok {
		return nil, fmt.Errorf("%w: %d in %s", ErrUnknownOffset, offset, filepath.Base(path))
	}

	r, count, err := f.open(path)
	if err != nil {
		return nil, err
	}
	if ordinal >= count {
		return nil, fmt.Errorf("%w: %d maps to chunk %d of %d in %s", ErrUnknownOffset, offset, ordinal, count, filepath.Base(path))
	}

	var parts [][]byte
	for ; ordinal < count; ordinal++ {
		c, err := readChunk(r, ordinal)
		if err != nil {
			return nil, err
		}

		if c.Flags.Has(FlagStart) && len(parts) > 0 {
			break
		}

		data, err := payload(r, c)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", ordinal, filepath.Base(path), err)
		}
		parts = append(parts, data)
	}

	data := bytes.Join(parts, nil)

	if f.cache != nil {
		f.cache.Add(key, bytes.Clone(data))
	}

	return data, nil
}

// FetchRun fetches consecutive resources starting at offset until at least
// size bytes have been collected.
func (f *Fetcher) FetchRun(path string, index OffsetIndex, offset, size uint64) ([][]byte, error) {
	var segments [][]byte
	var got uint64

	for got < size {
		seg, err := f.FetchResource(path, index, offset+got)
		if err != nil {
			return nil, err
		}
		if len(seg) == 0 {
			return nil, fmt.Errorf("%w: empty resource at %d in %s", ErrCorruptChunk, offset+got, filepath.Base(path))
		}

		segments = append(segments, seg)
		got += uint64(len(seg))
	}

	if len(segments) > 1 {
		slog.Debug("Fetched resource run", "container", filepath.Base(path), "offset", offset, "size", size, "segments", len(segments))
	}

	return segments, nil
}
