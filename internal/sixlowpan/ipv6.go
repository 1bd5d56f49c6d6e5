package sixlowpan

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mistlib/lowpan154/internal/buffer"
)

// IPv6HeaderLen is the fixed length of an uncompressed IPv6 header in
// octets.
const IPv6HeaderLen = 40

// ErrNotIPv6 indicates the buffer's version nibble is not 6.
var ErrNotIPv6 = errors.New("sixlowpan: version field is not 6")

// IPv6View wraps a Byte Buffer holding an uncompressed IPv6 packet: the
// fixed 40-byte header followed by its payload. Unlike ieee154.Frame, every
// field lives at a fixed offset — there is no variable-length structure to
// derive.
type IPv6View struct {
	buf *buffer.View

	trafficClass uint8
	flowLabel    uint32 // 20 bits
	nextHeader   uint8
	hopLimit     uint8
	src          [16]byte
	dst          [16]byte
}

// NewIPv6Packet builds a fresh IPv6View at the buffer's current cursor,
// writing a canonical 40-byte header (version 6) with the given fields, and
// positions the cursor at the start of the payload region. payloadLength is
// the length of the payload the caller is about to append, in octets.
func NewIPv6Packet(buf *buffer.View, trafficClass uint8, flowLabel uint32, nextHeader, hopLimit uint8, src, dst [16]byte, payloadLength int) (*IPv6View, error) {
	v := &IPv6View{
		buf:          buf,
		trafficClass: trafficClass,
		flowLabel:    flowLabel & 0xFFFFF,
		nextHeader:   nextHeader,
		hopLimit:     hopLimit,
		src:          src,
		dst:          dst,
	}

	word := uint32(6)<<28 | uint32(trafficClass)<<20 | v.flowLabel
	var wordBuf [4]byte
	binary.BigEndian.PutUint32(wordBuf[:], word)
	if _, err := buf.AppendBytes(wordBuf[:]); err != nil {
		return nil, fmt.Errorf("sixlowpan: write ipv6 version/class/flow: %w", err)
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(payloadLength))
	if _, err := buf.AppendBytes(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("sixlowpan: write ipv6 payload length: %w", err)
	}
	if _, err := buf.AppendU8(nextHeader); err != nil {
		return nil, fmt.Errorf("sixlowpan: write ipv6 next header: %w", err)
	}
	if _, err := buf.AppendU8(hopLimit); err != nil {
		return nil, fmt.Errorf("sixlowpan: write ipv6 hop limit: %w", err)
	}
	if _, err := buf.AppendBytes(src[:]); err != nil {
		return nil, fmt.Errorf("sixlowpan: write ipv6 src: %w", err)
	}
	if _, err := buf.AppendBytes(dst[:]); err != nil {
		return nil, fmt.Errorf("sixlowpan: write ipv6 dst: %w", err)
	}
	return v, nil
}

// ParseIPv6Packet derives an IPv6View by reading the 40-byte header at
// start. It never mutates buf.
func ParseIPv6Packet(buf *buffer.View, start int) (*IPv6View, error) {
	hdr, err := buf.Slice(start, start+IPv6HeaderLen)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: read ipv6 header: %w", err)
	}

	word := binary.BigEndian.Uint32(hdr[0:4])
	version := uint8(word >> 28)
	if version != 6 {
		return nil, fmt.Errorf("sixlowpan: version %d: %w", version, ErrNotIPv6)
	}

	v := &IPv6View{
		buf:          buf,
		trafficClass: uint8(word >> 20),
		flowLabel:    word & 0xFFFFF,
		nextHeader:   hdr[6],
		hopLimit:     hdr[7],
	}
	copy(v.src[:], hdr[8:24])
	copy(v.dst[:], hdr[24:40])
	return v, nil
}

// TrafficClass returns the 8-bit traffic class (ECN+DSCP).
func (v *IPv6View) TrafficClass() uint8 { return v.trafficClass }

// FlowLabel returns the 20-bit flow label.
func (v *IPv6View) FlowLabel() uint32 { return v.flowLabel }

// NextHeader returns the next-header protocol number.
func (v *IPv6View) NextHeader() uint8 { return v.nextHeader }

// HopLimit returns the hop limit.
func (v *IPv6View) HopLimit() uint8 { return v.hopLimit }

// Src returns the 128-bit source address.
func (v *IPv6View) Src() [16]byte { return v.src }

// Dst returns the 128-bit destination address.
func (v *IPv6View) Dst() [16]byte { return v.dst }

// Payload returns the payload region [start+40, end) of a parsed packet of
// total length totalLen starting at start.
func (v *IPv6View) Payload(start, totalLen int) ([]byte, error) {
	return v.buf.Slice(start+IPv6HeaderLen, start+totalLen)
}

