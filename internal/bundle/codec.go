package bundle

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Decode expands a chunk payload to its uncompressed form. Raw payloads are
// returned as-is.
func Decode(data []byte, kind Compression, size uint32) ([]byte, error) {
	switch kind {
	case CompressionRaw:
		return data, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptChunk, err)
		}
		if n != int(size) {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrCorruptChunk, n, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, kind)
	}
}
