// Package bundletest builds chunked container images for tests.
package bundletest

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/pierrec/lz4/v4"
)

// Chunk is one chunk to lay out in a container.
type Chunk struct {
	Data     []byte
	Flags    bundle.ChunkFlags
	Compress bool
}

// Container encodes chunks into a container image. Chunk payloads follow the
// directory in order; uncompressed offsets are assigned contiguously from 0.
// Chunks that LZ4 cannot shrink are stored raw.
func Container(chunks ...Chunk) []byte {
	dirEnd := bundle.ContainerHeaderSize + bundle.ChunkRecordSize*len(chunks)
	out := make([]byte, dirEnd)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(chunks)))

	var uncompressed uint64
	for i, c := range chunks {
		stored := c.Data
		kind := bundle.CompressionRaw
		if c.Compress {
			buf := make([]byte, lz4.CompressBlockBound(len(c.Data)))
			n, err := lz4.CompressBlock(c.Data, buf, nil)
			if err == nil && n > 0 {
				stored = buf[:n]
				kind = bundle.CompressionLZ4
			}
		}

		rec := out[bundle.ContainerHeaderSize+i*bundle.ChunkRecordSize:]
		binary.LittleEndian.PutUint64(rec[0:], uncompressed)
		binary.LittleEndian.PutUint64(rec[8:], uint64(len(out)))
		binary.LittleEndian.PutUint32(rec[16:], uint32(len(c.Data)))
		binary.LittleEndian.PutUint32(rec[20:], uint32(len(stored)))
		rec[24] = byte(kind)
		rec[25] = byte(c.Flags)

		out = append(out, stored...)
		uncompressed += uint64(len(c.Data))
	}

	return out
}

// Resource splits data into chunks of at most size bytes. The first chunk
// carries the start flag and the rest the continue flag.
func Resource(data []byte, size int, compress bool) []Chunk {
	var chunks []Chunk
	for off := 0; ; off += size {
		end := min(off+size, len(data))
		flags := bundle.FlagContinue
		if off == 0 {
			flags = bundle.FlagStart
		}
		chunks = append(chunks, Chunk{Data: data[off:end], Flags: flags, Compress: compress})
		if end >= len(data) {
			return chunks
		}
	}
}

// Write encodes chunks into a container and writes it to path.
func Write(t testing.TB, path string, chunks ...Chunk) []byte {
	t.Helper()

	data := Container(chunks...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write container %s: %v", path, err)
	}
	return data
}

// Pattern returns n bytes of a repeating, seed-dependent pattern.
func Pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i%251)
	}
	return out
}
