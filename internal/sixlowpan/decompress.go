package sixlowpan

import (
	"errors"
	"fmt"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/ieee154"
)

// ErrUnknownContext indicates the IPHC stream referenced a context id with
// no installed prefix.
var ErrUnknownContext = errors.New("sixlowpan: unknown context")

// Decompress reads an IPHC byte stream from frame's payload (the bytes
// frame.Payload returns) and reconstructs a full IPv6 packet into out,
// which must have at least IPv6HeaderLen+len(payload) bytes of capacity
// from its current cursor. ctx resolves any CID references; it may be nil
// only if the stream never sets CID (an unknown context then fails).
func Decompress(frame *ieee154.Frame, ctx *ContextTable, out *buffer.View) (*IPv6View, error) {
	stream, err := frame.Payload()
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: read frame payload: %w", err)
	}

	srcL2, err := frame.SrcAddr()
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: read src l2 address: %w", err)
	}
	dstL2, err := frame.DestAddr()
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: read dest l2 address: %w", err)
	}

	sb := buffer.New(stream)
	h, cursor, err := decodeIphcHeader(sb, 0)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: %w", err)
	}

	tc, fl, cursor, err := decodeTF(sb, cursor, h.tf)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: traffic class/flow label: %w", err)
	}

	var nh uint8
	if h.nhElided {
		return nil, fmt.Errorf("sixlowpan: decompress: nh elision: %w", errors.New("6lowpan-nhc not supported"))
	}
	nh, err = sb.ReadU8(cursor)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: read next header: %w", err)
	}
	cursor++

	hlim, cursor, err := decodeHLIM(sb, cursor, h.hlim)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: hop limit: %w", err)
	}

	srcIID, haveSrcIID := l2IID(srcL2)
	dstIID, haveDstIID := l2IID(dstL2)

	src, cursor, err := decodeSrc(sb, cursor, h, ctx, srcIID, haveSrcIID)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: source address: %w", err)
	}

	dst, cursor, err := decodeDst(sb, cursor, h, ctx, dstIID, haveDstIID)
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: destination address: %w", err)
	}

	restPayload, err := sb.Slice(cursor, len(stream))
	if err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: read payload tail: %w", err)
	}

	v, err := NewIPv6Packet(out, tc, fl, nh, hlim, src, dst, len(restPayload))
	if err != nil {
		return nil, err
	}
	if _, err := out.AppendBytes(restPayload); err != nil {
		return nil, fmt.Errorf("sixlowpan: decompress: append payload: %w", err)
	}
	return v, nil
}

// decodeTF reconstructs traffic class and flow label from the TF mode and
// any inline bytes, advancing cursor.
func decodeTF(sb *buffer.View, cursor int, tf tfMode) (tc uint8, fl uint32, next int, err error) {
	switch tf {
	case tfElided:
		return 0, 0, cursor, nil
	case tf1Byte:
		b, err := sb.ReadU8(cursor)
		if err != nil {
			return 0, 0, cursor, err
		}
		return (b&0x3F)<<2 | b>>6, 0, cursor + 1, nil
	case tf3Byte:
		raw, err := sb.Slice(cursor, cursor+3)
		if err != nil {
			return 0, 0, cursor, err
		}
		ecn := raw[0] >> 6
		fl := uint32(raw[0]&0x0F)<<16 | uint32(raw[1])<<8 | uint32(raw[2])
		return ecn, fl, cursor + 3, nil
	default: // tfFull
		raw, err := sb.Slice(cursor, cursor+4)
		if err != nil {
			return 0, 0, cursor, err
		}
		word := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		ecn := uint8(word >> 30)
		dscp := uint8((word >> 24) & 0x3F)
		fl := word & 0xFFFFF
		return dscp<<2 | ecn, fl, cursor + 4, nil
	}
}

// decodeHLIM reconstructs the hop limit.
func decodeHLIM(sb *buffer.View, cursor int, mode hlimMode) (uint8, int, error) {
	switch mode {
	case hlim1:
		return 1, cursor, nil
	case hlim64:
		return 64, cursor, nil
	case hlim255:
		return 255, cursor, nil
	default:
		v, err := sb.ReadU8(cursor)
		return v, cursor + 1, err
	}
}

// decodeSrc reconstructs the 128-bit source address per §4.H step 6.
func decodeSrc(sb *buffer.View, cursor int, h iphcHeader, ctx *ContextTable, l2IID [8]byte, haveL2IID bool) ([16]byte, int, error) {
	return decodeUnicast(sb, cursor, h.sac, h.sam, h.cid, h.sci, ctx, l2IID, haveL2IID)
}

// decodeDst reconstructs the 128-bit destination address per §4.H step 7,
// including the four multicast shapes.
func decodeDst(sb *buffer.View, cursor int, h iphcHeader, ctx *ContextTable, l2IID [8]byte, haveL2IID bool) ([16]byte, int, error) {
	if !h.m {
		return decodeUnicast(sb, cursor, h.dac, h.dam, h.cid, h.dci, ctx, l2IID, haveL2IID)
	}
	return decodeMulticast(sb, cursor, h.dac, h.dam, h.dci, ctx)
}

// decodeUnicast implements the shared stateless/stateful source and
// unicast-destination reconstruction, the inverse of compressSrc.
func decodeUnicast(sb *buffer.View, cursor int, sac bool, sam addrMode, cid bool, ci uint8, ctx *ContextTable, l2IID [8]byte, haveL2IID bool) ([16]byte, int, error) {
	var addr [16]byte

	if !sac {
		switch sam {
		case amFull:
			raw, err := sb.Slice(cursor, cursor+16)
			if err != nil {
				return addr, cursor, err
			}
			copy(addr[:], raw)
			return addr, cursor + 16, nil
		default:
			addr[0], addr[1] = 0xfe, 0x80
			return decodeIID(sb, cursor, sam, l2IID, haveL2IID, addr)
		}
	}

	// SAC=1: stateful. SAM=00 is the unspecified address whether or not
	// a context extension is present; otherwise resolve the prefix from
	// context 0 (link-local) or the referenced slot.
	if sam == amFull {
		return addr, cursor, nil // ::
	}

	var prefix [16]byte
	if cid {
		p, ok := lookupCtx(ctx, ci)
		if !ok {
			return addr, cursor, fmt.Errorf("context %d: %w", ci, ErrUnknownContext)
		}
		prefix = p
	} else {
		prefix[0], prefix[1] = 0xfe, 0x80
	}
	copy(addr[:8], prefix[:8])
	return decodeIID(sb, cursor, sam, l2IID, haveL2IID, addr)
}

// decodeIID fills addr's lower 64 bits per sam: elided (from L2), 16-bit
// inline, 64-bit inline, or (amFull, reached only for the stateful ::
// case handled by the caller) left zero.
func decodeIID(sb *buffer.View, cursor int, sam addrMode, l2IID [8]byte, haveL2IID bool, addr [16]byte) ([16]byte, int, error) {
	switch sam {
	case amElided:
		if !haveL2IID {
			return addr, cursor, errors.New("sixlowpan: elided iid with no l2 address")
		}
		copy(addr[8:16], l2IID[:])
		return addr, cursor, nil
	case am16:
		raw, err := sb.Slice(cursor, cursor+2)
		if err != nil {
			return addr, cursor, err
		}
		short := ieee154.ShortToIID(uint16(raw[0])<<8 | uint16(raw[1]))
		copy(addr[8:16], short[:])
		return addr, cursor + 2, nil
	case am64:
		raw, err := sb.Slice(cursor, cursor+8)
		if err != nil {
			return addr, cursor, err
		}
		copy(addr[8:16], raw)
		return addr, cursor + 8, nil
	default:
		return addr, cursor, nil
	}
}

// decodeMulticast implements the inverse of compressMulticastDst.
func decodeMulticast(sb *buffer.View, cursor int, dac bool, dam addrMode, dci uint8, ctx *ContextTable) ([16]byte, int, error) {
	var addr [16]byte
	addr[0] = 0xFF

	if dac {
		raw, err := sb.Slice(cursor, cursor+6)
		if err != nil {
			return addr, cursor, err
		}
		prefix, ok := lookupCtx(ctx, dci)
		if !ok {
			return addr, cursor, fmt.Errorf("context %d: %w", dci, ErrUnknownContext)
		}
		addr[1] = raw[0]
		addr[2] = raw[1]
		copy(addr[3:12], prefix[3:12])
		copy(addr[12:16], raw[2:6])
		return addr, cursor + 6, nil
	}

	switch dam {
	case addrMode(damM8):
		raw, err := sb.Slice(cursor, cursor+1)
		if err != nil {
			return addr, cursor, err
		}
		addr[1] = 0x02
		addr[15] = raw[0]
		return addr, cursor + 1, nil
	case addrMode(damM32):
		raw, err := sb.Slice(cursor, cursor+4)
		if err != nil {
			return addr, cursor, err
		}
		addr[1] = raw[0]
		copy(addr[13:16], raw[1:4])
		return addr, cursor + 4, nil
	case addrMode(damM48):
		raw, err := sb.Slice(cursor, cursor+6)
		if err != nil {
			return addr, cursor, err
		}
		addr[1] = raw[0]
		copy(addr[11:16], raw[1:6])
		return addr, cursor + 6, nil
	default: // amFull: 128 bits inline
		raw, err := sb.Slice(cursor, cursor+16)
		if err != nil {
			return addr, cursor, err
		}
		copy(addr[:], raw)
		return addr, cursor + 16, nil
	}
}

// lookupCtx resolves a context id, treating id 0 as the fixed link-local
// entry even when the caller didn't set CID (ctx may still be nil if the
// deployment never installs one; 0 always resolves without consulting it).
func lookupCtx(ctx *ContextTable, id uint8) (prefix [16]byte, ok bool) {
	if id == 0 {
		return linkLocalPrefix, true
	}
	if ctx == nil {
		return prefix, false
	}
	return ctx.Get(id)
}
