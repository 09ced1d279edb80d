// Package catalogtest builds master index images for tests.
package catalogtest

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/jchantrell/slimdivers/internal/bundle/bundletest"
	"github.com/jchantrell/slimdivers/internal/catalog"
)

// MasterIndex encodes packages in the decompressed master index layout.
func MasterIndex(bundleCount uint32, packages ...*catalog.Package) []byte {
	out := make([]byte, 0x18+0x18*len(packages))
	binary.LittleEndian.PutUint32(out[0x0C:], bundleCount)
	binary.LittleEndian.PutUint32(out[0x10:], uint32(len(packages)))

	for i, p := range packages {
		rec := 0x18 + 0x18*i

		nameOffset := len(out)
		out = append(out, p.Name...)
		out = append(out, 0)

		entriesOffset := len(out)
		for _, e := range p.Entries {
			var raw [16]byte
			binary.LittleEndian.PutUint64(raw[0:], e.OriginalOffset)
			binary.LittleEndian.PutUint32(raw[8:], uint32(e.StartOffset))
			raw[15] = byte(e.BundleIndex)
			out = append(out, raw[:]...)
		}

		binary.LittleEndian.PutUint64(out[rec:], p.Size)
		binary.LittleEndian.PutUint32(out[rec+8:], uint32(nameOffset))
		binary.LittleEndian.PutUint32(out[rec+12:], uint32(len(p.Entries)))
		binary.LittleEndian.PutUint32(out[rec+16:], uint32(entriesOffset))
	}

	return out
}

// WriteMaster writes the master index container into root, split over
// several raw chunks so that reading it exercises whole-container fetches.
func WriteMaster(t testing.TB, root string, bundleCount uint32, packages ...*catalog.Package) {
	t.Helper()
	data := MasterIndex(bundleCount, packages...)
	bundletest.Write(t, filepath.Join(root, catalog.MasterIndexName), bundletest.Resource(data, 64, false)...)
}

// Run describes bytes to place in a bundle as one resource.
type Run struct {
	Data      []byte
	ChunkSize int
	Compress  bool
}

// WriteBundle writes runs as consecutive resources of a numbered bundle and
// returns the uncompressed offset at which each run starts.
func WriteBundle(t testing.TB, root string, index uint32, runs ...Run) []uint64 {
	t.Helper()

	var chunks []bundletest.Chunk
	starts := make([]uint64, len(runs))
	var offset uint64
	for i, r := range runs {
		size := r.ChunkSize
		if size <= 0 {
			size = 64
		}
		starts[i] = offset
		chunks = append(chunks, bundletest.Resource(r.Data, size, r.Compress)...)
		offset += uint64(len(r.Data))
	}

	bundletest.Write(t, filepath.Join(root, catalog.BundleName(index)), chunks...)
	return starts
}
