package patch

import (
	"encoding/binary"
	"fmt"

	"github.com/jchantrell/slimdivers/internal/archive"
	"github.com/jchantrell/slimdivers/internal/toc"
)

// UnitTypeID is the resource type of unit meshes
const UnitTypeID uint64 = 0xE0A48D0BE9A7453F

// Unit header fields, relative to the start of the unit
const (
	unitVersion      = 0x2C
	unitSubOffset    = 0x30
	unitNextOffset   = 0x34
	unitPointers     = 0x34
	unitPointerCount = 16
)

// Unit is what a patch takes from the game's own copy of a unit: the
// version tag and the LOD group sub-resource.
type Unit struct {
	Version [4]byte
	Sub     []byte
}

// ParseUnit extracts the version tag and the bytes between the sub-resource
// offset and the offset of the following section.
func ParseUnit(data []byte) (Unit, error) {
	if len(data) < unitNextOffset+4 {
		return Unit{}, fmt.Errorf("%w: unit header needs %d bytes, have %d", ErrStreamOverrun, unitNextOffset+4, len(data))
	}

	var u Unit
	copy(u.Version[:], data[unitVersion:])

	sub := binary.LittleEndian.Uint32(data[unitSubOffset:])
	next := binary.LittleEndian.Uint32(data[unitNextOffset:])
	if next < sub || uint64(next) > uint64(len(data)) {
		return Unit{}, fmt.Errorf("%w: sub-resource [0x%X, 0x%X) in %d byte unit", ErrStreamOverrun, sub, next, len(data))
	}

	u.Sub = data[sub:next]
	return u, nil
}

// Source provides the game's copy of a unit by file id
type Source interface {
	Unit(id uint64) (Unit, error)
}

// Resolver reads bytes of a package at a logical offset
type Resolver interface {
	Resource(name string, offset, size uint64) ([]byte, error)
}

// Index locates resources by file id
type Index interface {
	Lookup(id uint64) (toc.Location, bool)
}

// UnitSource reads units from unmodified game data
type UnitSource struct {
	resolver  Resolver
	locations Index
}

func NewUnitSource(resolver Resolver, locations Index) *UnitSource {
	return &UnitSource{resolver: resolver, locations: locations}
}

func (s *UnitSource) Unit(id uint64) (Unit, error) {
	loc, ok := s.locations.Lookup(id)
	if !ok {
		return Unit{}, fmt.Errorf("%w: unit %016x is not in the game data", archive.ErrNotFound, id)
	}

	data, err := s.resolver.Resource(loc.Package, loc.Offset, uint64(loc.Size))
	if err != nil {
		return Unit{}, fmt.Errorf("reading unit %016x from %s: %w", id, loc.Package, err)
	}

	u, err := ParseUnit(data)
	if err != nil {
		return Unit{}, fmt.Errorf("unit %016x: %w", id, err)
	}
	return u, nil
}
