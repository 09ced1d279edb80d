package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// PackageDatabaseName lists every package of a slim install
const PackageDatabaseName = "bundle_database.data"

const (
	packageSlotsOffset = 0x10
	packageSlotSize    = 0x33
	packageNameEnd     = 0x17
)

var ErrCorruptPackageDatabase = errors.New("corrupt package database")

// ParsePackageDatabase returns the package names listed in a package
// database. Each name occupies a fixed slot and ends at the first 0x17 byte.
func ParsePackageDatabase(data []byte) ([]string, error) {
	if len(data) < packageSlotsOffset {
		return nil, fmt.Errorf("%w: %d byte header", ErrCorruptPackageDatabase, len(data))
	}

	count := int(binary.LittleEndian.Uint32(data[4:8]))
	if packageSlotsOffset+count*packageSlotSize > len(data) {
		return nil, fmt.Errorf("%w: %d slots do not fit in %d bytes", ErrCorruptPackageDatabase, count, len(data))
	}

	names := make([]string, 0, count)
	for i := range count {
		off := packageSlotsOffset + i*packageSlotSize
		slot := data[off : off+packageSlotSize]
		if end := bytes.IndexByte(slot, packageNameEnd); end >= 0 {
			slot = slot[:end]
		}
		slot = bytes.TrimRight(slot, "\x00")
		if len(slot) == 0 {
			continue
		}
		names = append(names, string(slot))
	}

	return names, nil
}

// PackageNames lists the packages whose TOCs make up the resource index.
// Slim installs read the package database, falling back to the catalog;
// full installs list the extensionless files of the data root.
func (s *Store) PackageNames() ([]string, error) {
	if s.IsSlim() {
		data, err := os.ReadFile(filepath.Join(s.root, PackageDatabaseName))
		if err == nil {
			return ParsePackageDatabase(data)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading package database: %w", err)
		}

		var names []string
		for _, name := range s.Catalog().PackageNames() {
			if filepath.Ext(name) == "" {
				names = append(names, name)
			}
		}
		return names, nil
	}

	// packages are resolved by base name in the data root, so subdirectories
	// are not listed
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading data root: %w", err)
	}

	var names []string
	for _, d := range dirents {
		if d.IsDir() || filepath.Ext(d.Name()) != "" {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}
