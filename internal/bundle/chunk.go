package bundle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncatedHeader        = errors.New("container shorter than its chunk table")
	ErrUnknownOffset          = errors.New("no chunk starts at offset")
	ErrCorruptChunk           = errors.New("corrupt chunk")
	ErrUnsupportedCompression = errors.New("unsupported compression")
)

// Compression identifies how a chunk's payload is stored on disk.
type Compression uint8

const (
	CompressionRaw Compression = 0x00
	CompressionLZ4 Compression = 0x03
)

func (c Compression) String() string {
	switch c {
	case CompressionRaw:
		return "raw"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(0x%02x)", uint8(c))
	}
}

// ChunkFlags marks where a chunk sits within a logical resource.
type ChunkFlags uint8

const (
	FlagUnknown  ChunkFlags = 0x01
	FlagStart    ChunkFlags = 0x02
	FlagContinue ChunkFlags = 0x04
)

func (f ChunkFlags) Has(flag ChunkFlags) bool {
	return f&flag != 0
}

const (
	ContainerHeaderSize = 0x20
	ChunkRecordSize     = 0x20
)

// containerHead is the fixed header of every chunked container
type containerHead struct {
	_          [8]byte
	ChunkCount uint32
	_          [20]byte
}

// Chunk describes one physical chunk of a container, in directory order.
type Chunk struct {
	UncompressedOffset uint64
	CompressedOffset   uint64
	UncompressedSize   uint32
	CompressedSize     uint32
	Compression        Compression
	Flags              ChunkFlags
	_                  [6]byte
}

// chunkCount reads the declared number of chunks and checks that the
// directory fits inside a container of the given size.
func chunkCount(r io.ReaderAt, size int64) (int, error) {
	if size < ContainerHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncatedHeader, size, ContainerHeaderSize)
	}

	var head containerHead
	if err := binary.Read(io.NewSectionReader(r, 0, ContainerHeaderSize), binary.LittleEndian, &head); err != nil {
		return 0, fmt.Errorf("reading container header: %w", err)
	}

	need := int64(ContainerHeaderSize) + int64(head.ChunkCount)*ChunkRecordSize
	if need > size {
		return 0, fmt.Errorf("%w: %d chunks need %d bytes, have %d", ErrTruncatedHeader, head.ChunkCount, need, size)
	}

	return int(head.ChunkCount), nil
}

// readChunk reads the directory record at the given ordinal
func readChunk(r io.ReaderAt, ordinal int) (Chunk, error) {
	var c Chunk
	off := int64(ContainerHeaderSize) + int64(ordinal)*ChunkRecordSize
	if err := binary.Read(io.NewSectionReader(r, off, ChunkRecordSize), binary.LittleEndian, &c); err != nil {
		return Chunk{}, fmt.Errorf("reading chunk record %d: %w", ordinal, err)
	}
	return c, nil
}

// ReadChunkTable parses the chunk directory of a container of the given size.
func ReadChunkTable(r io.ReaderAt, size int64) ([]Chunk, error) {
	count, err := chunkCount(r, size)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, count)
	if count == 0 {
		return chunks, nil
	}

	rs := io.NewSectionReader(r, ContainerHeaderSize, int64(count)*ChunkRecordSize)
	if err := binary.Read(rs, binary.LittleEndian, chunks); err != nil {
		return nil, fmt.Errorf("reading %d chunk records: %w", count, err)
	}

	return chunks, nil
}

// OffsetIndex maps the uncompressed offset at which a chunk begins to its
// ordinal in the chunk directory.
type OffsetIndex map[uint64]int

// BuildOffsetIndex indexes every chunk of a table by its uncompressed offset.
func BuildOffsetIndex(chunks []Chunk) OffsetIndex {
	idx := make(OffsetIndex, len(chunks))
	for i, c := range chunks {
		idx[c.UncompressedOffset] = i
	}
	return idx
}
