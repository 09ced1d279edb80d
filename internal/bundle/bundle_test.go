package bundle_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/bundle/bundletest"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T, cacheSize int) *bundle.Fetcher {
	t.Helper()
	handles := bundle.NewHandles()
	t.Cleanup(func() { handles.Close() })
	f, err := bundle.NewFetcher(handles, cacheSize)
	require.NoError(t, err)
	return f
}

func tableFor(t *testing.T, path string) []bundle.Chunk {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)
	chunks, err := bundle.ReadChunkTable(f, info.Size())
	require.NoError(t, err)
	return chunks
}

func TestReadChunkTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.00.nxa")
	parts := [][]byte{
		bundletest.Pattern(100, 1),
		bundletest.Pattern(37, 2),
		bundletest.Pattern(260, 3),
	}
	bundletest.Write(t, path,
		bundletest.Chunk{Data: parts[0], Flags: bundle.FlagStart},
		bundletest.Chunk{Data: parts[1], Flags: bundle.FlagContinue},
		bundletest.Chunk{Data: parts[2], Flags: bundle.FlagStart},
	)

	chunks := tableFor(t, path)
	require.Len(t, chunks, 3)
	require.Equal(t, uint64(0), chunks[0].UncompressedOffset)
	require.Equal(t, uint64(100), chunks[1].UncompressedOffset)
	require.Equal(t, uint64(137), chunks[2].UncompressedOffset)
	require.Equal(t, bundle.CompressionRaw, chunks[1].Compression)
	require.True(t, chunks[2].Flags.Has(bundle.FlagStart))

	whole, err := newFetcher(t, 0).FetchWhole(path)
	require.NoError(t, err)
	require.Equal(t, bytes.Join(parts, nil), whole)

	for i, c := range chunks {
		got := whole[c.UncompressedOffset : c.UncompressedOffset+uint64(c.UncompressedSize)]
		require.Equal(t, parts[i], got, "chunk %d", i)
	}

	idx := bundle.BuildOffsetIndex(chunks)
	require.Equal(t, bundle.OffsetIndex{0: 0, 100: 1, 137: 2}, idx)
}

func TestReadChunkTableTruncated(t *testing.T) {
	data := bundletest.Container(
		bundletest.Chunk{Data: []byte("abc"), Flags: bundle.FlagStart},
		bundletest.Chunk{Data: []byte("def"), Flags: bundle.FlagStart},
	)

	_, err := bundle.ReadChunkTable(bytes.NewReader(data), int64(bundle.ContainerHeaderSize+bundle.ChunkRecordSize))
	require.ErrorIs(t, err, bundle.ErrTruncatedHeader)

	_, err = bundle.ReadChunkTable(bytes.NewReader(data[:10]), 10)
	require.ErrorIs(t, err, bundle.ErrTruncatedHeader)
}

func TestDecode(t *testing.T) {
	src := bytes.Repeat([]byte("helldivers "), 64)
	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, buf, nil)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	out, err := bundle.Decode(buf[:n], bundle.CompressionLZ4, uint32(len(src)))
	require.NoError(t, err)
	require.Equal(t, src, out)

	_, err = bundle.Decode(buf[:n], bundle.CompressionLZ4, uint32(len(src)+10))
	require.ErrorIs(t, err, bundle.ErrCorruptChunk)

	_, err = bundle.Decode([]byte{0xff, 0xff, 0xff}, bundle.CompressionLZ4, 16)
	require.ErrorIs(t, err, bundle.ErrCorruptChunk)

	raw, err := bundle.Decode([]byte("as-is"), bundle.CompressionRaw, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("as-is"), raw)

	_, err = bundle.Decode([]byte("x"), bundle.Compression(0x07), 1)
	require.ErrorIs(t, err, bundle.ErrUnsupportedCompression)
}

func TestFetchResourceStopsAtNextStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.01.nxa")
	parts := [][]byte{
		bundletest.Pattern(64, 10),
		bundletest.Pattern(64, 20),
		bundletest.Pattern(16, 30),
		bundletest.Pattern(64, 40),
		bundletest.Pattern(8, 50),
	}
	flags := []bundle.ChunkFlags{bundle.FlagStart, bundle.FlagContinue, bundle.FlagContinue, bundle.FlagStart, bundle.FlagContinue}

	var chunks []bundletest.Chunk
	for i := range parts {
		chunks = append(chunks, bundletest.Chunk{Data: parts[i], Flags: flags[i], Compress: i%2 == 0})
	}
	bundletest.Write(t, path, chunks...)

	idx := bundle.BuildOffsetIndex(tableFor(t, path))
	f := newFetcher(t, 0)

	first, err := f.FetchResource(path, idx, 0)
	require.NoError(t, err)
	require.Equal(t, bytes.Join(parts[:3], nil), first)

	second, err := f.FetchResource(path, idx, 144)
	require.NoError(t, err)
	require.Equal(t, bytes.Join(parts[3:], nil), second)

	// starting mid-resource still collects through to the next start
	mid, err := f.FetchResource(path, idx, 64)
	require.NoError(t, err)
	require.Equal(t, bytes.Join(parts[1:3], nil), mid)

	_, err = f.FetchResource(path, idx, 5)
	require.ErrorIs(t, err, bundle.ErrUnknownOffset)
}

func TestFetchRunSpansResources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.02.nxa")
	a := bundletest.Pattern(300, 1)
	b := bundletest.Pattern(200, 2)
	c := bundletest.Pattern(50, 3)

	var chunks []bundletest.Chunk
	chunks = append(chunks, bundletest.Resource(a, 128, true)...)
	chunks = append(chunks, bundletest.Resource(b, 128, false)...)
	chunks = append(chunks, bundletest.Resource(c, 128, true)...)
	bundletest.Write(t, path, chunks...)

	idx := bundle.BuildOffsetIndex(tableFor(t, path))
	f := newFetcher(t, 0)

	segments, err := f.FetchRun(path, idx, 0, 500)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	require.Equal(t, a, segments[0])
	require.Equal(t, b, segments[1])

	segments, err = f.FetchRun(path, idx, 300, 1)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Equal(t, b, segments[0])

	segments, err = f.FetchRun(path, idx, 0, 0)
	require.NoError(t, err)
	require.Empty(t, segments)
}

func TestFetchResourceCacheReturnsCopies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.03.nxa")
	data := bundletest.Pattern(90, 7)
	bundletest.Write(t, path, bundletest.Resource(data, 32, true)...)

	idx := bundle.BuildOffsetIndex(tableFor(t, path))
	f := newFetcher(t, 8)

	got, err := f.FetchResource(path, idx, 0)
	require.NoError(t, err)
	got[0] ^= 0xff

	again, err := f.FetchResource(path, idx, 0)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestFetchWholeCorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken")
	data := bundletest.Container(bundletest.Chunk{Data: bundletest.Pattern(40, 1), Flags: bundle.FlagStart})
	require.NoError(t, os.WriteFile(path, data[:len(data)-5], 0o644))

	_, err := newFetcher(t, 0).FetchWhole(path)
	require.ErrorIs(t, err, bundle.ErrCorruptChunk)
}

func TestHandlesReuseAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.04.nxa")
	bundletest.Write(t, path, bundletest.Chunk{Data: []byte("payload"), Flags: bundle.FlagStart})

	h := bundle.NewHandles()
	first, err := h.Acquire(path)
	require.NoError(t, err)
	second, err := h.Acquire(filepath.Join(filepath.Dir(path), ".", "bundles.04.nxa"))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, h.Len())

	_, err = h.Acquire(filepath.Join(filepath.Dir(path), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, h.Close())
	_, err = h.Acquire(path)
	require.Error(t, err)
}
