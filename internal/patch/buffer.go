// Package patch rewrites mod patch files so that the units they carry match
// the current game data.
package patch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

var ErrStreamOverrun = errors.New("stream overrun")

// Buffer is an in-memory copy of a file that can be grown or shrunk at
// arbitrary positions. Every access is bounds checked.
type Buffer struct {
	data []byte
}

// NewBuffer copies data into a new buffer
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: slices.Clone(data)}
}

func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the current contents. The slice is invalidated by the next
// Insert or Delete.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) check(off, n uint64) error {
	size := uint64(len(b.data))
	if off > size || n > size-off {
		return fmt.Errorf("%w: %d bytes at %d, buffer is %d bytes", ErrStreamOverrun, n, off, size)
	}
	return nil
}

// Read returns a copy of n bytes at off
func (b *Buffer) Read(off, n uint64) ([]byte, error) {
	if err := b.check(off, n); err != nil {
		return nil, err
	}
	return slices.Clone(b.data[off : off+n]), nil
}

func (b *Buffer) Uint32(off uint64) (uint32, error) {
	if err := b.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[off:]), nil
}

func (b *Buffer) PutUint32(off uint64, v uint32) error {
	if err := b.check(off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.data[off:], v)
	return nil
}

func (b *Buffer) PutUint64(off uint64, v uint64) error {
	if err := b.check(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.data[off:], v)
	return nil
}

// Write overwrites len(p) bytes at off. It never grows the buffer.
func (b *Buffer) Write(off uint64, p []byte) error {
	if err := b.check(off, uint64(len(p))); err != nil {
		return err
	}
	copy(b.data[off:], p)
	return nil
}

// Insert opens n zero bytes at off, shifting the tail right
func (b *Buffer) Insert(off, n uint64) error {
	if err := b.check(off, 0); err != nil {
		return err
	}
	b.data = slices.Insert(b.data, int(off), make([]byte, n)...)
	return nil
}

// Delete removes n bytes at off, shifting the tail left
func (b *Buffer) Delete(off, n uint64) error {
	if err := b.check(off, n); err != nil {
		return err
	}
	b.data = slices.Delete(b.data, int(off), int(off+n))
	return nil
}
