// Package toc parses package tables of contents and indexes the resources
// they describe.
package toc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBadMagic  = errors.New("bad toc magic")
	ErrTruncated = errors.New("toc truncated")
)

// Magic opens every table of contents
const Magic uint32 = 0xF0000011

const (
	FileHeaderSize = 72
	TypeRecordSize = 32
	HeaderSize     = 80

	// DataOffsetField is the position of DataOffset within a header record
	DataOffsetField = 16
)

// RegionSize returns the length of a table of contents with the given
// number of type and file records.
func RegionSize(types, files uint32) int64 {
	return FileHeaderSize + TypeRecordSize*int64(types) + HeaderSize*int64(files)
}

// FileHeader opens a table of contents
type FileHeader struct {
	Magic     uint32
	TypeCount uint32
	FileCount uint32
	Unknown   uint32
	Reserved  [56]byte
}

// Header describes one resource of a package
type Header struct {
	FileID       uint64
	TypeID       uint64
	DataOffset   uint64
	StreamOffset uint64
	GPUOffset    uint64
	Unknown1     uint64
	Unknown2     uint64
	DataSize     uint32
	StreamSize   uint32
	GPUSize      uint32
	Unknown3     uint32
	Unknown4     uint32
	EntryIndex   uint32
}

// MarshalBinary encodes the header in its 80-byte record layout
func (h Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// File is a parsed table of contents. Records[i] is the byte offset of
// Headers[i] within the parsed data.
type File struct {
	FileHeader
	Headers []Header
	Records []int64
}

// Parse reads the file header, skips the type records and decodes every
// resource header.
func Parse(data []byte) (*File, error) {
	if len(data) < FileHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), FileHeaderSize)
	}

	f := &File{}
	if err := binary.Read(bytes.NewReader(data[:FileHeaderSize]), binary.LittleEndian, &f.FileHeader); err != nil {
		return nil, fmt.Errorf("reading toc header: %w", err)
	}
	if f.Magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, f.Magic)
	}

	size := RegionSize(f.TypeCount, f.FileCount)
	if size > int64(len(data)) {
		return nil, fmt.Errorf("%w: %d types and %d files need %d bytes, have %d",
			ErrTruncated, f.TypeCount, f.FileCount, size, len(data))
	}

	start := int64(FileHeaderSize) + TypeRecordSize*int64(f.TypeCount)
	r := bytes.NewReader(data[start:size])

	f.Headers = make([]Header, f.FileCount)
	f.Records = make([]int64, f.FileCount)
	for i := range f.Headers {
		if err := binary.Read(r, binary.LittleEndian, &f.Headers[i]); err != nil {
			return nil, fmt.Errorf("reading header %d: %w", i, err)
		}
		f.Records[i] = start + HeaderSize*int64(i)
	}

	return f, nil
}

// IndexByType returns the headers of data with the given type id
func IndexByType(data []byte, typeID uint64) ([]Header, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var matched []Header
	for _, h := range f.Headers {
		if h.TypeID == typeID {
			matched = append(matched, h)
		}
	}
	return matched, nil
}
