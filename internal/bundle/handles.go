package bundle

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/exp/mmap"
)

// Handles caches read-only mappings of container files by path. Mappings are
// safe for concurrent ReadAt and stay valid until Close.
type Handles struct {
	mu     sync.Mutex
	open   map[string]*mmap.ReaderAt
	closed bool
}

func NewHandles() *Handles {
	return &Handles{
		open: make(map[string]*mmap.ReaderAt),
	}
}

// Acquire returns the mapping for path, opening it on first use.
func (h *Handles) Acquire(path string) (*mmap.ReaderAt, error) {
	path = filepath.Clean(path)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("handle table is closed")
	}

	if r, ok := h.open[path]; ok {
		return r, nil
	}

	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	h.open[path] = r

	return r, nil
}

// Len reports the number of open mappings
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.open)
}

// Close releases every mapping. The table cannot be used afterwards.
func (h *Handles) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for path, r := range h.open {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", path, err))
		}
	}
	h.open = nil
	h.closed = true

	return errors.Join(errs...)
}
