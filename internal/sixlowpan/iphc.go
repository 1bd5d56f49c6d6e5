package sixlowpan

import (
	"errors"
	"fmt"

	"github.com/mistlib/lowpan154/internal/buffer"
)

// iphcHeaderLen is the fixed size of the two-byte IPHC base header.
const iphcHeaderLen = 2

// ErrNotIphc indicates the first three bits of a buffer are not the `011`
// IPHC dispatch.
var ErrNotIphc = errors.New("sixlowpan: not an iphc dispatch")

// tfMode is the 2-bit Traffic Class/Flow Label encoding selector.
type tfMode uint8

const (
	tfFull    tfMode = 0b00 // 4 bytes: ECN(2)+DSCP(6)+pad(4)+FL(20)
	tf3Byte   tfMode = 0b01 // 3 bytes: ECN(2)+pad(2)+FL(20), DSCP elided (zero)
	tf1Byte   tfMode = 0b10 // 1 byte: ECN(2)+DSCP(6), FL elided (zero)
	tfElided  tfMode = 0b11 // 0 bytes: both elided (zero)
)

// hlimMode is the 2-bit Hop Limit encoding selector.
type hlimMode uint8

const (
	hlimInline hlimMode = 0b00
	hlim1      hlimMode = 0b01
	hlim64     hlimMode = 0b10
	hlim255    hlimMode = 0b11
)

// addrMode is the 2-bit SAM/DAM stateless addressing-mode selector, shared
// between source and unicast-destination compression.
type addrMode uint8

const (
	amFull    addrMode = 0b00 // 128 bits inline (or, with SAC/DAC=1, the unspecified/context-derived case)
	am64      addrMode = 0b01 // 64 bits inline
	am16      addrMode = 0b10 // 16 bits inline, IID derived
	amElided  addrMode = 0b11 // 0 bits, IID fully derived from L2 address
)

// damMulticast is the 2-bit DAM selector used when M=1.
type damMulticast uint8

const (
	damM128 damMulticast = 0b00 // 128 bits inline (DAC=0), or the 48-bit context-based form (DAC=1)
	damM48  damMulticast = 0b01 // 48 bits inline (flags+scope+group)
	damM32  damMulticast = 0b10 // 32 bits inline
	damM8   damMulticast = 0b11 // 8 bits inline
)

// iphcHeader is the decoded form of the 13-bit IPHC descriptor plus its
// optional context-extension byte.
type iphcHeader struct {
	tf       tfMode
	nhElided bool // true: next header elided (6LoWPAN-NHC follows); this package always carries it inline
	hlim     hlimMode

	cid bool
	sci uint8
	dci uint8

	sac bool
	sam addrMode

	m   bool
	dac bool
	dam addrMode // interpreted against damMulticast when m is true
}

// encode packs h into its wire bytes and returns the CID byte's presence.
func (h iphcHeader) encode() (hdr [iphcHeaderLen]byte, cidByte byte, hasCIDByte bool) {
	hdr[0] = 0b011_00000
	hdr[0] |= byte(h.tf) << 3
	if h.nhElided {
		hdr[0] |= 1 << 2
	}
	hdr[0] |= byte(h.hlim)

	if h.cid {
		hdr[1] |= 1 << 7
	}
	if h.sac {
		hdr[1] |= 1 << 6
	}
	hdr[1] |= byte(h.sam) << 4
	if h.m {
		hdr[1] |= 1 << 3
	}
	if h.dac {
		hdr[1] |= 1 << 2
	}
	hdr[1] |= byte(h.dam)

	if h.cid {
		cidByte = h.sci<<4 | h.dci
	}
	return hdr, cidByte, h.cid
}

// decodeIphcHeader reads the 13-bit descriptor (and optional CID byte) at
// start in buf.
func decodeIphcHeader(buf *buffer.View, start int) (iphcHeader, int, error) {
	raw, err := buf.Slice(start, start+iphcHeaderLen)
	if err != nil {
		return iphcHeader{}, 0, fmt.Errorf("sixlowpan: read iphc header: %w", err)
	}
	if raw[0]>>5 != 0b011 {
		return iphcHeader{}, 0, ErrNotIphc
	}

	var h iphcHeader
	h.tf = tfMode((raw[0] >> 3) & 0b11)
	h.nhElided = raw[0]&0b100 != 0
	h.hlim = hlimMode(raw[0] & 0b11)

	h.cid = raw[1]&0x80 != 0
	h.sac = raw[1]&0x40 != 0
	h.sam = addrMode((raw[1] >> 4) & 0b11)
	h.m = raw[1]&0x08 != 0
	h.dac = raw[1]&0x04 != 0
	h.dam = addrMode(raw[1] & 0b11)

	cursor := start + iphcHeaderLen
	if h.cid {
		b, err := buf.ReadU8(cursor)
		if err != nil {
			return iphcHeader{}, 0, fmt.Errorf("sixlowpan: read cid byte: %w", err)
		}
		h.sci = b >> 4
		h.dci = b & 0x0F
		cursor++
	}
	return h, cursor, nil
}
