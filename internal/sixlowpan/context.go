// Package sixlowpan implements RFC 6282 IPv6 Header Compression (IPHC) over
// IEEE 802.15.4 frames: an IPv6 packet view, a shared context table, and a
// compressor/decompressor pair.
package sixlowpan

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// NumContexts is the fixed size of the context table. Slot 0 is reserved for
// the link-local prefix and is never writable through Put/Remove.
const NumContexts = 16

// linkLocalPrefix is fe80::/10, installed in slot 0 and immutable.
var linkLocalPrefix = [16]byte{0xfe, 0x80}

// Sentinel errors returned by ContextTable operations.
var (
	// ErrContextReserved indicates an operation targeted slot 0, which is
	// permanently fe80::/10 and cannot be written or removed.
	ErrContextReserved = errors.New("sixlowpan: context 0 is reserved")

	// ErrContextOutOfRange indicates an id outside [0, NumContexts).
	ErrContextOutOfRange = errors.New("sixlowpan: context id out of range")

	// ErrContextEmpty names the empty-slot condition. ContextTable's
	// methods do not return it: Get reports an empty slot with ok=false,
	// and Remove of an empty slot succeeds.
	ErrContextEmpty = errors.New("sixlowpan: context slot is empty")
)

// ctxEntry is the immutable value stored behind each slot's atomic pointer.
// Replacing a slot swaps the pointer rather than mutating fields in place,
// so a concurrent reader always observes a complete, consistent prefix.
//
// A context carries no prefix-length of its own: RFC 6282 context entries
// are bare 16-byte addresses, and any bit-length needed to compare one
// against a candidate address is supplied by the caller at match time (see
// FindByAddr's bitLen parameter), not stored alongside the entry.
type ctxEntry struct {
	prefix [16]byte
}

// ContextTable is the 16-slot IPv6 prefix table shared between the
// compressor and decompressor. Slot 0 is fixed at construction to
// fe80::/10. The zero value is not usable; use NewContextTable.
//
// Safe for any number of concurrent readers (Get/FindByAddr) against a
// single writer (Put/Remove) without external locking: each slot is an
// atomic.Pointer, so a reader observes either the prior entry or the new
// one, never a torn value. Concurrent writers to the SAME slot must
// serialize themselves; the table does not arbitrate write-write races.
type ContextTable struct {
	slots [NumContexts]atomic.Pointer[ctxEntry]
}

// NewContextTable returns a ContextTable with slot 0 populated with the
// link-local prefix and all other slots empty.
func NewContextTable() *ContextTable {
	t := &ContextTable{}
	t.slots[0].Store(&ctxEntry{prefix: linkLocalPrefix})
	return t
}

// Put installs prefix at id. Fails with ErrContextReserved for id==0 and
// ErrContextOutOfRange outside [1,15].
func (t *ContextTable) Put(id uint8, prefix [16]byte) error {
	if id == 0 {
		return ErrContextReserved
	}
	if int(id) >= NumContexts {
		return fmt.Errorf("sixlowpan: put context %d: %w", id, ErrContextOutOfRange)
	}
	t.slots[id].Store(&ctxEntry{prefix: prefix})
	return nil
}

// Remove clears id. Fails with ErrContextReserved for id==0 and
// ErrContextOutOfRange outside [1,15].
func (t *ContextTable) Remove(id uint8) error {
	if id == 0 {
		return ErrContextReserved
	}
	if int(id) >= NumContexts {
		return fmt.Errorf("sixlowpan: remove context %d: %w", id, ErrContextOutOfRange)
	}
	t.slots[id].Store(nil)
	return nil
}

// Get returns the prefix installed at id, or ok=false if the slot is empty.
func (t *ContextTable) Get(id uint8) (prefix [16]byte, ok bool) {
	if int(id) >= NumContexts {
		return prefix, false
	}
	e := t.slots[id].Load()
	if e == nil {
		return prefix, false
	}
	return e.prefix, true
}

// FindByAddr scans all 16 slots (including 0) and returns the lowest id
// whose installed prefix matches addr over the first bitLen bits, or
// ok=false if no slot matches. bitLen is typically 64 (the compressor always
// uses 64 for address-context matching per RFC 6282).
func (t *ContextTable) FindByAddr(addr [16]byte, bitLen int) (id uint8, ok bool) {
	for i := 0; i < NumContexts; i++ {
		e := t.slots[i].Load()
		if e == nil {
			continue
		}
		if prefixBitsEqual(e.prefix, addr, bitLen) {
			return uint8(i), true
		}
	}
	return 0, false
}

// FindMulticastPrefix scans slots 1..15 for one whose stored prefix agrees
// with addr's embedded network-prefix field (RFC 6282 context-based
// multicast form: byte 0 is 0xFF, byte 1 is flags/scope, byte 2 is the
// wire's plen byte rather than prefix data, and bytes [3:12] carry the
// context's own prefix). Slot 0 (link-local) never matches a multicast
// address and is skipped.
func (t *ContextTable) FindMulticastPrefix(addr [16]byte) (id uint8, ok bool) {
	for i := 1; i < NumContexts; i++ {
		e := t.slots[i].Load()
		if e == nil {
			continue
		}
		if bytesEqual(e.prefix[3:12], addr[3:12]) {
			return uint8(i), true
		}
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// prefixBitsEqual reports whether a and b agree on their first n bits.
func prefixBitsEqual(a, b [16]byte, n int) bool {
	if n <= 0 {
		return true
	}
	if n > 128 {
		n = 128
	}
	fullBytes := n / 8
	for i := 0; i < fullBytes; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	if rem := n % 8; rem != 0 {
		mask := byte(0xFF << (8 - rem))
		if a[fullBytes]&mask != b[fullBytes]&mask {
			return false
		}
	}
	return true
}
