package patch

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/jchantrell/slimdivers/internal/toc"
)

// Stats summarizes the changes made to one patch file
type Stats struct {
	Headers int
	Units   int
	// Delta is the total change in file size
	Delta int64
}

// Relocator replaces the sub-resource of every unit in a patch file with the
// game's current copy and moves everything behind it.
type Relocator struct {
	units  Source
	typeID uint64
}

// NewRelocator creates a relocator for resources of typeID, normally
// UnitTypeID.
func NewRelocator(units Source, typeID uint64) *Relocator {
	return &Relocator{units: units, typeID: typeID}
}

// Relocate returns a rewritten copy of a patch file. Headers are visited in
// data order; each one's data offset is moved by the size change of all
// units before it, and each unit gets the game's version tag and
// sub-resource with its internal pointers adjusted. data is not modified.
func (r *Relocator) Relocate(data []byte) ([]byte, Stats, error) {
	f, err := toc.Parse(data)
	if err != nil {
		return nil, Stats{}, err
	}

	order := make([]int, len(f.Headers))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(f.Headers[a].DataOffset, f.Headers[b].DataOffset)
	})

	buf := NewBuffer(data)
	stats := Stats{Headers: len(f.Headers)}

	for _, i := range order {
		h := f.Headers[i]
		start := h.DataOffset + uint64(stats.Delta)

		if err := buf.PutUint64(uint64(f.Records[i])+toc.DataOffsetField, start); err != nil {
			return nil, stats, fmt.Errorf("header %d: %w", i, err)
		}

		if h.TypeID != r.typeID {
			continue
		}

		d, err := r.replaceUnit(buf, h.FileID, start)
		if err != nil {
			return nil, stats, err
		}

		stats.Units++
		stats.Delta += d
	}

	return buf.Bytes(), stats, nil
}

// replaceUnit rewrites the unit at start and returns the change in its size
func (r *Relocator) replaceUnit(buf *Buffer, id, start uint64) (int64, error) {
	unit, err := r.units.Unit(id)
	if err != nil {
		return 0, err
	}

	if err := buf.Write(start+unitVersion, unit.Version[:]); err != nil {
		return 0, fmt.Errorf("unit %016x version: %w", id, err)
	}

	sub, err := buf.Uint32(start + unitSubOffset)
	if err != nil {
		return 0, fmt.Errorf("unit %016x: %w", id, err)
	}
	next, err := buf.Uint32(start + unitNextOffset)
	if err != nil {
		return 0, fmt.Errorf("unit %016x: %w", id, err)
	}
	if next < sub {
		return 0, fmt.Errorf("%w: unit %016x sub-resource [0x%X, 0x%X)", ErrStreamOverrun, id, sub, next)
	}

	d := int64(len(unit.Sub)) - int64(next-sub)

	for k := range uint64(unitPointerCount) {
		at := start + unitPointers + 4*k
		v, err := buf.Uint32(at)
		if err != nil {
			return 0, fmt.Errorf("unit %016x pointer %d: %w", id, k, err)
		}
		if v != 0 && v > sub {
			moved := int64(v) + d
			if moved < 0 || moved > math.MaxUint32 {
				return 0, fmt.Errorf("%w: unit %016x pointer %d moves 0x%X by %d", ErrStreamOverrun, id, k, v, d)
			}
			if err := buf.PutUint32(at, uint32(moved)); err != nil {
				return 0, err
			}
		}
	}

	at := start + uint64(sub)
	switch {
	case d > 0:
		err = buf.Insert(at, uint64(d))
	case d < 0:
		err = buf.Delete(at, uint64(-d))
	}
	if err != nil {
		return 0, fmt.Errorf("unit %016x resize: %w", id, err)
	}

	if err := buf.Write(at, unit.Sub); err != nil {
		return 0, fmt.Errorf("unit %016x sub-resource: %w", id, err)
	}

	slog.Debug("Relocated unit",
		"unit", fmt.Sprintf("%016x", id),
		"patch_size", next-sub,
		"game_size", len(unit.Sub),
		"delta", d)

	return d, nil
}

// UpdateFile relocates a patch file in place. The file is only rewritten
// when the whole relocation succeeds.
func (r *Relocator) UpdateFile(path string) (Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading patch file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading patch file: %w", err)
	}

	out, stats, err := r.Relocate(data)
	if err != nil {
		return stats, fmt.Errorf("relocating %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return stats, fmt.Errorf("writing patch file: %w", err)
	}

	slog.Debug("Patch file updated", "file", path, "units", stats.Units, "delta", stats.Delta)
	return stats, nil
}
