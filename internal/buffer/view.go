// Package buffer implements a bounded, cursor-anchored view over a
// caller-owned byte region.
//
// Every append advances the cursor; reads take an absolute offset and never
// touch it. A failed write leaves the cursor unchanged so the caller can
// retry with a smaller input or abandon the buffer.
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors returned by View operations.
var (
	// ErrCapacityExceeded indicates a write would advance the cursor past
	// the buffer's capacity.
	ErrCapacityExceeded = errors.New("buffer: capacity exceeded")

	// ErrOutOfRange indicates a read addressed bytes outside [0, capacity).
	ErrOutOfRange = errors.New("buffer: out of range")
)

// View is a bounded (base, capacity, cursor) triple over caller memory.
// Invariant: 0 <= cursor <= len(base).
type View struct {
	base   []byte
	cursor int
}

// New wraps base in a View with the cursor positioned at zero.
func New(base []byte) *View {
	return &View{base: base}
}

// Capacity returns the total size of the underlying region.
func (v *View) Capacity() int {
	return len(v.base)
}

// Cursor returns the current write position.
func (v *View) Cursor() int {
	return v.cursor
}

// Bytes returns the written prefix of the underlying region, [0, cursor).
func (v *View) Bytes() []byte {
	return v.base[:v.cursor]
}

// RewindTo moves the cursor back to offset. It never advances the cursor
// and never fails on a valid offset within [0, cursor].
func (v *View) RewindTo(offset int) error {
	if offset < 0 || offset > v.cursor {
		return fmt.Errorf("buffer: rewind to %d (cursor %d): %w", offset, v.cursor, ErrOutOfRange)
	}
	v.cursor = offset
	return nil
}

// Reserve returns a writable sub-view of length n positioned at the current
// cursor and advances the cursor by n. On failure the cursor is unchanged.
func (v *View) Reserve(n int) ([]byte, error) {
	if n < 0 || v.cursor+n > len(v.base) {
		return nil, fmt.Errorf("buffer: reserve %d at cursor %d (capacity %d): %w",
			n, v.cursor, len(v.base), ErrCapacityExceeded)
	}
	sub := v.base[v.cursor : v.cursor+n]
	v.cursor += n
	return sub, nil
}

// AppendBytes copies p into the buffer at the cursor and advances it,
// returning the offset at which p was written.
func (v *View) AppendBytes(p []byte) (int, error) {
	offset := v.cursor
	dst, err := v.Reserve(len(p))
	if err != nil {
		return 0, err
	}
	copy(dst, p)
	return offset, nil
}

// AppendU8 appends a single byte and returns its offset.
func (v *View) AppendU8(val uint8) (int, error) {
	offset := v.cursor
	dst, err := v.Reserve(1)
	if err != nil {
		return 0, err
	}
	dst[0] = val
	return offset, nil
}

// AppendU16LE appends a little-endian uint16 and returns its offset.
func (v *View) AppendU16LE(val uint16) (int, error) {
	offset := v.cursor
	dst, err := v.Reserve(2)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(dst, val)
	return offset, nil
}

// AppendU32LE appends a little-endian uint32 and returns its offset.
func (v *View) AppendU32LE(val uint32) (int, error) {
	offset := v.cursor
	dst, err := v.Reserve(4)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(dst, val)
	return offset, nil
}

// AppendU64LE appends a little-endian uint64 and returns its offset.
func (v *View) AppendU64LE(val uint64) (int, error) {
	offset := v.cursor
	dst, err := v.Reserve(8)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint64(dst, val)
	return offset, nil
}

// checkRange validates that [offset, offset+n) lies within the capacity.
func (v *View) checkRange(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(v.base) {
		return fmt.Errorf("buffer: read [%d:%d) (capacity %d): %w",
			offset, offset+n, len(v.base), ErrOutOfRange)
	}
	return nil
}

// ReadU8 reads a single byte at offset.
func (v *View) ReadU8(offset int) (uint8, error) {
	if err := v.checkRange(offset, 1); err != nil {
		return 0, err
	}
	return v.base[offset], nil
}

// ReadU16LE reads a little-endian uint16 at offset.
func (v *View) ReadU16LE(offset int) (uint16, error) {
	if err := v.checkRange(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v.base[offset : offset+2]), nil
}

// ReadU32LE reads a little-endian uint32 at offset.
func (v *View) ReadU32LE(offset int) (uint32, error) {
	if err := v.checkRange(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.base[offset : offset+4]), nil
}

// ReadU64LE reads a little-endian uint64 at offset.
func (v *View) ReadU64LE(offset int) (uint64, error) {
	if err := v.checkRange(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v.base[offset : offset+8]), nil
}

// Slice returns the sub-view [start, end) without touching the cursor.
func (v *View) Slice(start, end int) ([]byte, error) {
	if end < start {
		return nil, fmt.Errorf("buffer: slice [%d:%d): %w", start, end, ErrOutOfRange)
	}
	if err := v.checkRange(start, end-start); err != nil {
		return nil, err
	}
	return v.base[start:end], nil
}

// WriteAt overwrites the bytes at [offset, offset+len(p)) without moving the
// cursor. Used to back-patch descriptor length fields after the fact.
func (v *View) WriteAt(offset int, p []byte) error {
	if err := v.checkRange(offset, len(p)); err != nil {
		return err
	}
	copy(v.base[offset:offset+len(p)], p)
	return nil
}

// WriteU16LEAt overwrites a little-endian uint16 at offset without moving
// the cursor.
func (v *View) WriteU16LEAt(offset int, val uint16) error {
	if err := v.checkRange(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(v.base[offset:offset+2], val)
	return nil
}
