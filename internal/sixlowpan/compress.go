package sixlowpan

import (
	"fmt"

	"github.com/mistlib/lowpan154/internal/ieee154"
)

// ctxBitWindow is the fixed bit length context matching is evaluated over,
// per RFC 6282's stateful compression (always the first 64 bits).
const ctxBitWindow = 64

// Compress encodes pkt's IPv6 header into an IPHC byte stream and appends it
// to frame's payload region, followed by pkt's own payload bytes unchanged.
// frame must already carry its destination and source L2 addresses via
// SetAddr. ctx may be nil, in which case no context match is attempted and
// only link-local/full-address forms are produced.
func Compress(pkt *IPv6View, frame *ieee154.Frame, ctx *ContextTable, payload []byte) error {
	srcL2, err := frame.SrcAddr()
	if err != nil {
		return fmt.Errorf("sixlowpan: compress: read src l2 address: %w", err)
	}
	dstL2, err := frame.DestAddr()
	if err != nil {
		return fmt.Errorf("sixlowpan: compress: read dest l2 address: %w", err)
	}

	var h iphcHeader
	var body []byte

	tc, fl := pkt.TrafficClass(), pkt.FlowLabel()
	dscp, ecn := tc>>2, tc&0x3

	switch {
	case tc == 0 && fl == 0:
		h.tf = tfElided
	case fl == 0:
		h.tf = tf1Byte
		body = append(body, ecn<<6|dscp)
	case dscp == 0:
		h.tf = tf3Byte
		body = append(body, ecn<<6|byte(fl>>16)&0x0F, byte(fl>>8), byte(fl))
	default:
		h.tf = tfFull
		word := uint32(ecn)<<30 | uint32(dscp)<<24 | fl
		body = append(body, byte(word>>24), byte(word>>16), byte(word>>8), byte(word))
	}

	// 6LoWPAN-NHC and recursive IP-in-IP compression of the next header are
	// out of scope; it is always carried inline.
	h.nhElided = false
	body = append(body, pkt.NextHeader())

	switch pkt.HopLimit() {
	case 1:
		h.hlim = hlim1
	case 64:
		h.hlim = hlim64
	case 255:
		h.hlim = hlim255
	default:
		h.hlim = hlimInline
		body = append(body, pkt.HopLimit())
	}

	srcIID, srcHaveIID := l2IID(srcL2)
	dstIID, dstHaveIID := l2IID(dstL2)

	sac, sam, sci, srcInline, err := compressSrc(pkt.Src(), ctx, srcIID, srcHaveIID)
	if err != nil {
		return fmt.Errorf("sixlowpan: compress: source: %w", err)
	}
	h.sac = sac
	h.sam = sam
	if sac && sci != 0 {
		h.cid = true
		h.sci = sci
	}
	body = append(body, srcInline...)

	m, dac, dam, dci, dstInline, err := compressDst(pkt.Dst(), ctx, dstIID, dstHaveIID)
	if err != nil {
		return fmt.Errorf("sixlowpan: compress: destination: %w", err)
	}
	h.m = m
	h.dac = dac
	h.dam = dam
	if dac && dci != 0 {
		h.cid = true
		h.dci = dci
	}
	body = append(body, dstInline...)

	hdr, cidByte, hasCID := h.encode()
	out := make([]byte, 0, iphcHeaderLen+1+len(body)+len(payload))
	out = append(out, hdr[:]...)
	if hasCID {
		out = append(out, cidByte)
	}
	out = append(out, body...)
	out = append(out, payload...)

	if err := frame.AppendPayload(out); err != nil {
		return fmt.Errorf("sixlowpan: compress: append iphc stream: %w", err)
	}
	return nil
}

// l2IID derives the interface identifier implied by an L2 address, if any.
func l2IID(l2 []byte) (iid [8]byte, ok bool) {
	switch len(l2) {
	case 2:
		return ieee154.ShortToIID(uint16(l2[0])<<8 | uint16(l2[1])), true
	case 8:
		var ext [8]byte
		copy(ext[:], l2)
		return ieee154.ExtendedToIID(ext), true
	default:
		return iid, false
	}
}

var unspecified [16]byte

// compressSrc applies §4.G step 5's ordered decision procedure.
func compressSrc(addr [16]byte, ctx *ContextTable, l2IID [8]byte, haveL2IID bool) (sac bool, sam addrMode, sci uint8, inline []byte, err error) {
	if addr == unspecified {
		return true, amFull, 0, nil, nil
	}

	if isLinkLocal(addr) {
		return iidForm(addr, l2IID, haveL2IID)
	}

	if ctx != nil {
		if id, ok := ctx.FindByAddr(addr, ctxBitWindow); ok {
			_, sam, _, _, err := iidForm(addr, l2IID, haveL2IID)
			if err != nil {
				return false, 0, 0, nil, err
			}
			inline := inlineForAddrMode(sam, addr)
			return true, sam, id, inline, nil
		}
	}

	return false, amFull, 0, addr[:], nil
}

// compressDst applies §4.G step 6: the unicast mirror of step 5 when
// M=0, or the four multicast shapes (plus context multicast) when the
// address is multicast.
func compressDst(addr [16]byte, ctx *ContextTable, l2IID [8]byte, haveL2IID bool) (m, dac bool, dam addrMode, dci uint8, inline []byte, err error) {
	if addr[0] == 0xFF {
		return compressMulticastDst(addr, ctx)
	}
	sac, sam, sci, inline, err := compressSrc(addr, ctx, l2IID, haveL2IID)
	return false, sac, sam, sci, inline, err
}

// compressMulticastDst implements the multicast sub-table of §4.G step 6.
// The zero-run checks are ordered strongest-first: each weaker form's
// zero-run is a subset of the stronger one's, so the first match is always
// the smallest legal encoding.
func compressMulticastDst(addr [16]byte, ctx *ContextTable) (m, dac bool, dam addrMode, dci uint8, inline []byte, err error) {
	switch {
	case addr[1] == 0x02 && zero(addr[2:15]):
		// ff02::00xx — 8-bit form.
		return true, false, addrMode(damM8), 0, []byte{addr[15]}, nil
	case zero(addr[2:13]):
		// ffXX::00xx:xxxx — 32-bit form: flags+scope, last 3 group-id bytes.
		inline = append(inline, addr[1])
		inline = append(inline, addr[13:16]...)
		return true, false, addrMode(damM32), 0, inline, nil
	case zero(addr[2:11]):
		// ffXX::00xx:xxxx:xxxx — 48-bit form: flags+scope, last 5 group-id bytes.
		inline = append(inline, addr[1])
		inline = append(inline, addr[11:16]...)
		return true, false, addrMode(damM48), 0, inline, nil
	}

	// Context-based multicast: ffXX:XXLL:PPPP:PPPP:PPPP:PPPP:xxxx:xxxx.
	// RFC 6282 defines only DAM=00 for this form: flags+scope, the
	// address's own plen octet carried verbatim (it is not derived from
	// the matched context, which carries no length of its own), and the
	// last 32 bits of the group id.
	if ctx != nil {
		if id, ok := ctx.FindMulticastPrefix(addr); ok {
			out := []byte{addr[1], addr[2]}
			out = append(out, addr[12:16]...)
			return true, true, addrMode(damM128), id, out, nil
		}
	}

	// Full 128-bit multicast, no compression available.
	return true, false, addrMode(damM128), 0, append([]byte(nil), addr[:]...), nil
}

// iidForm resolves the SAM/DAM value for an address whose lower 64 bits are
// either the link-local IID or (on the context-match path) the context-
// relative IID, against the frame's L2-derived IID. Shared by unicast
// source and destination compression.
func iidForm(addr [16]byte, l2IID [8]byte, haveL2IID bool) (sac bool, sam addrMode, sci uint8, inline []byte, err error) {
	var iid [8]byte
	copy(iid[:], addr[8:16])

	if haveL2IID && iid == l2IID {
		return false, amElided, 0, nil, nil
	}
	if shortIID, ok := shortFormIID(iid); ok {
		return false, am16, 0, shortIID[:], nil
	}
	return false, am64, 0, iid[:], nil
}

// inlineForAddrMode returns the inline bytes an already-chosen SAM/DAM value
// requires for addr's lower bits (used on the context-match path, where the
// SAC/DAC bit is forced to 1 but the byte count still follows the IID
// test).
func inlineForAddrMode(mode addrMode, addr [16]byte) []byte {
	switch mode {
	case amElided:
		return nil
	case am16:
		return addr[14:16]
	default:
		return append([]byte(nil), addr[8:16]...)
	}
}

// shortFormIID reports whether iid has the 0000:00ff:fe00:xxxx shape used
// by SAM=10/DAM=10, returning the trailing two bytes.
func shortFormIID(iid [8]byte) (short [2]byte, ok bool) {
	if iid[0] == 0 && iid[1] == 0 && iid[2] == 0 && iid[3] == 0xff && iid[4] == 0xfe && iid[5] == 0 {
		return [2]byte{iid[6], iid[7]}, true
	}
	return short, false
}

func isLinkLocal(addr [16]byte) bool {
	return addr[0] == 0xfe && addr[1]&0xc0 == 0x80
}

func zero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
