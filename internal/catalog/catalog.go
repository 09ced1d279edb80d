// Package catalog indexes which bundle files hold each package's bytes and
// where every chunk of every bundle begins.
package catalog

import (
	"fmt"
	"sort"

	"github.com/jchantrell/slimdivers/internal/bundle"
)

// MasterIndexName is the container that lists every bundled package
const MasterIndexName = "bundles.nxa"

// BundleName returns the file name of the numbered bundle
func BundleName(index uint32) string {
	return fmt.Sprintf("bundles.%02d.nxa", index)
}

// Entry is one contiguous run of a package's bytes stored in a bundle.
type Entry struct {
	// OriginalOffset is where the run begins in the flat package
	OriginalOffset uint64
	// StartOffset is where the run begins in the bundle's uncompressed space
	StartOffset uint64
	BundleIndex uint32
}

// Bundle returns the file name of the bundle holding the run
func (e Entry) Bundle() string {
	return BundleName(e.BundleIndex)
}

// Package describes a flat package reassembled from bundle runs. Entries
// are sorted by OriginalOffset.
type Package struct {
	Name    string
	Size    uint64
	Entries []Entry
}

// Span returns the number of package bytes covered by entry i
func (p *Package) Span(i int) uint64 {
	if i+1 < len(p.Entries) {
		return p.Entries[i+1].OriginalOffset - p.Entries[i].OriginalOffset
	}
	return p.Size - p.Entries[i].OriginalOffset
}

// Find returns the entry covering offset: the last entry whose original
// offset is at or below it. Offsets at or past the package size are not
// covered.
func (p *Package) Find(offset uint64) (Entry, bool) {
	if offset >= p.Size {
		return Entry{}, false
	}
	for i := len(p.Entries) - 1; i >= 0; i-- {
		if p.Entries[i].OriginalOffset <= offset {
			return p.Entries[i], true
		}
	}
	return Entry{}, false
}

// Catalog is immutable once built and safe for concurrent readers.
type Catalog struct {
	bundleCount uint32
	packages    map[string]*Package
	offsets     map[string]bundle.OffsetIndex
}

// New assembles a catalog from parsed packages and per-file chunk indexes.
func New(bundleCount uint32, packages map[string]*Package, offsets map[string]bundle.OffsetIndex) *Catalog {
	if packages == nil {
		packages = map[string]*Package{}
	}
	if offsets == nil {
		offsets = map[string]bundle.OffsetIndex{}
	}
	return &Catalog{
		bundleCount: bundleCount,
		packages:    packages,
		offsets:     offsets,
	}
}

// Package looks up a bundled package by name
func (c *Catalog) Package(name string) (*Package, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.packages[name]
	return p, ok
}

// Offsets returns the chunk offset index of a container file
func (c *Catalog) Offsets(file string) (bundle.OffsetIndex, bool) {
	if c == nil {
		return nil, false
	}
	idx, ok := c.offsets[file]
	return idx, ok
}

// BundleCount is the number of numbered bundles declared by the master index
func (c *Catalog) BundleCount() uint32 {
	if c == nil {
		return 0
	}
	return c.bundleCount
}

// PackageNames returns all package names in sorted order
func (c *Catalog) PackageNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.packages))
	for name := range c.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the names of all indexed container files in sorted order
func (c *Catalog) Files() []string {
	if c == nil {
		return nil
	}
	files := make([]string, 0, len(c.offsets))
	for name := range c.offsets {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}
