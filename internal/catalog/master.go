package catalog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

var ErrCorruptIndex = errors.New("corrupt master index")

const (
	countsOffset       = 0x0C
	packageTableOffset = 0x18
	packageRecordSize  = 0x18
	entryRecordSize    = 0x10
)

// ParseMasterIndex parses the decompressed master index. It returns the
// declared bundle count and every package keyed by name.
//
// Each package record is 24 bytes: total size (u64), name offset (u32),
// entry count (u32), entry table offset (u32) and 4 bytes of padding. Each
// entry is 16 bytes: original offset (u64), start offset in the bundle
// (u32), 3 reserved bytes and the bundle number (u8).
func ParseMasterIndex(data []byte) (uint32, map[string]*Package, error) {
	if len(data) < packageTableOffset {
		return 0, nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptIndex, len(data))
	}

	bundleCount := binary.LittleEndian.Uint32(data[countsOffset:])
	packageCount := binary.LittleEndian.Uint32(data[countsOffset+4:])

	tableEnd := uint64(packageTableOffset) + uint64(packageCount)*packageRecordSize
	if tableEnd > uint64(len(data)) {
		return 0, nil, fmt.Errorf("%w: %d package records overrun %d bytes", ErrCorruptIndex, packageCount, len(data))
	}

	packages := make(map[string]*Package, packageCount)
	for i := uint64(0); i < uint64(packageCount); i++ {
		p := packageTableOffset + i*packageRecordSize
		size := binary.LittleEndian.Uint64(data[p:])
		nameOffset := binary.LittleEndian.Uint32(data[p+8:])
		entryCount := binary.LittleEndian.Uint32(data[p+12:])
		entriesOffset := binary.LittleEndian.Uint32(data[p+16:])

		name, err := readCString(data, nameOffset)
		if err != nil {
			return 0, nil, fmt.Errorf("package %d name: %w", i, err)
		}

		entriesEnd := uint64(entriesOffset) + uint64(entryCount)*entryRecordSize
		if entriesEnd > uint64(len(data)) {
			return 0, nil, fmt.Errorf("%w: entries of %s overrun data (%d > %d)", ErrCorruptIndex, name, entriesEnd, len(data))
		}

		entries := make([]Entry, entryCount)
		for j := range entries {
			e := uint64(entriesOffset) + uint64(j)*entryRecordSize
			entries[j] = Entry{
				OriginalOffset: binary.LittleEndian.Uint64(data[e:]),
				StartOffset:    uint64(binary.LittleEndian.Uint32(data[e+8:])),
				BundleIndex:    uint32(data[e+15]),
			}
		}
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].OriginalOffset < entries[b].OriginalOffset
		})

		packages[name] = &Package{
			Name:    name,
			Size:    size,
			Entries: entries,
		}
	}

	return bundleCount, packages, nil
}

func readCString(data []byte, offset uint32) (string, error) {
	if uint64(offset) >= uint64(len(data)) {
		return "", fmt.Errorf("%w: string offset %d exceeds data size %d", ErrCorruptIndex, offset, len(data))
	}
	end := bytes.IndexByte(data[offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at %d", ErrCorruptIndex, offset)
	}
	return string(data[offset : int(offset)+end]), nil
}
