package sixlowpan_test

import (
	"testing"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/ieee154"
	"github.com/mistlib/lowpan154/internal/sixlowpan"
)

var (
	l2Src = []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}
	l2Dst = []byte{0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
)

func newDataFrame(t *testing.T, dst, src []byte) *ieee154.Frame {
	t.Helper()
	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.DataInit(buf)
	if err != nil {
		t.Fatalf("DataInit: %v", err)
	}
	// Two extended addresses may omit both PAN IDs; any other pairing here
	// needs both present to be a legal addressing combination.
	var dstPAN, srcPAN *uint16
	if len(dst) != 8 || len(src) != 8 {
		pan := uint16(0xABCD)
		dstPAN, srcPAN = &pan, &pan
	}
	if err := f.SetAddr(dstPAN, dst, srcPAN, src); err != nil {
		t.Fatalf("SetAddr: %v", err)
	}
	return f
}

// compressedBytes runs Compress and returns the IPHC stream it appended
// (everything from the frame's payload start onward).
func compressedBytes(t *testing.T, f *ieee154.Frame, v *sixlowpan.IPv6View, ctx *sixlowpan.ContextTable) []byte {
	t.Helper()
	if err := sixlowpan.Compress(v, f, ctx, nil); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	p, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	return p
}

func buildPacket(t *testing.T, tc uint8, fl uint32, nh, hlim uint8, src, dst [16]byte) *sixlowpan.IPv6View {
	t.Helper()
	buf := buffer.New(make([]byte, sixlowpan.IPv6HeaderLen))
	v, err := sixlowpan.NewIPv6Packet(buf, tc, fl, nh, hlim, src, dst, 0)
	if err != nil {
		t.Fatalf("NewIPv6Packet: %v", err)
	}
	return v
}

// TestCompressNoElisionFullAddresses grounds on test_lowpan_tcfl_none /
// spec.md scenario 2: TF elided, no context match, both addresses inline.
func TestCompressNoElisionFullAddresses(t *testing.T) {
	t.Parallel()

	src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0x55, 0x55, 0x66, 0x66, 0x77, 0x77, 0x88, 0x88}
	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0xcc, 0xcc, 0xdd, 0xdd, 0xee, 0xee, 0xff, 0xff}
	pkt := buildPacket(t, 0, 0, 0x3B, 22, src, dst)
	f := newDataFrame(t, l2Dst, l2Src)

	got := compressedBytes(t, f, pkt, nil)

	want := append([]byte{0x78, 0x00, 0x3B, 0x16}, src[:]...)
	want = append(want, dst[:]...)
	if string(got) != string(want) {
		t.Fatalf("compressed = % x\nwant        = % x", got, want)
	}
}

// TestCompressSrcLinkLocalElidedFromL2 grounds on
// test_lowpan_src_64bit_link_local / spec.md scenario 3.
func TestCompressSrcLinkLocalElidedFromL2(t *testing.T) {
	t.Parallel()

	srcL2 := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	src := [16]byte{0xfe, 0x80}
	copy(src[8:], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	// Flip the U/L bit per the codec's extended->IID derivation, so the
	// L2-derived IID actually equals this source's lower 64 bits.
	src[8] ^= 0x02

	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0xcc, 0xcc, 0xdd, 0xdd, 0xee, 0xee, 0xff, 0xff}
	pkt := buildPacket(t, 0, 0, 0x3B, 22, src, dst)
	f := newDataFrame(t, l2Dst, srcL2)

	got := compressedBytes(t, f, pkt, nil)
	if len(got) < 2 {
		t.Fatalf("compressed too short: % x", got)
	}
	if got[1] != 0x30 {
		t.Errorf("second IPHC byte = %#02x, want 0x30 (SAC=0,SAM=11)", got[1])
	}
}

// TestCompressSrcContext16Bit grounds on
// test_lowpan_src_16bit_ctx_encapsulated / spec.md scenario 4.
func TestCompressSrcContext16Bit(t *testing.T) {
	t.Parallel()

	var ctxPrefix [16]byte
	copy(ctxPrefix[:], []byte{0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70})
	ctx := sixlowpan.NewContextTable()
	if err := ctx.Put(1, ctxPrefix); err != nil {
		t.Fatalf("Put: %v", err)
	}

	srcL2 := []byte{0x11, 0x22}
	src := ctxPrefix
	copy(src[8:], []byte{0x00, 0x00, 0x00, 0xff, 0xfe, 0x00, 0x11, 0x22})
	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0xcc, 0xcc, 0xdd, 0xdd, 0xee, 0xee, 0xff, 0xff}
	pkt := buildPacket(t, 0, 0, 0x3B, 22, src, dst)
	f := newDataFrame(t, l2Dst, srcL2)

	got := compressedBytes(t, f, pkt, ctx)
	if len(got) < 2 {
		t.Fatalf("compressed too short: % x", got)
	}
	if got[1]&0xF0 != 0xF0 {
		t.Errorf("second IPHC byte = %#02x, want CID=1,SAC=1,SAM=11 (top nibble 0xF)", got[1])
	}
}

// TestCompressDest8BitMulticast grounds on
// test_lowpan_dest_8bit_multicast / spec.md scenario 5.
func TestCompressDest8BitMulticast(t *testing.T) {
	t.Parallel()

	src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0x55, 0x55, 0x66, 0x66, 0x77, 0x77, 0x88, 0x88}
	dst := [16]byte{0xFF, 0x02}
	dst[15] = 0x11
	pkt := buildPacket(t, 0, 0, 0x3B, 22, src, dst)
	f := newDataFrame(t, l2Dst, l2Src)

	got := compressedBytes(t, f, pkt, nil)
	want := []byte{0x0b, 0x11}
	tail := []byte{got[1], got[len(got)-1]}
	if string(tail) != string(want) {
		t.Fatalf("second IPHC byte + inline dst = % x, want % x", tail, want)
	}
}

// TestCompressDestContextMulticast grounds on test_lowpan_dest_ctx_multicast
// / spec.md scenario 6.
func TestCompressDestContextMulticast(t *testing.T) {
	t.Parallel()

	var ctxPrefix [16]byte
	copy(ctxPrefix[:], []byte{0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70})
	ctx := sixlowpan.NewContextTable()
	if err := ctx.Put(1, ctxPrefix); err != nil {
		t.Fatalf("Put: %v", err)
	}

	src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0x55, 0x55, 0x66, 0x66, 0x77, 0x77, 0x88, 0x88}
	// dst[2] (0x0D) is the address's own plen octet, carried through
	// verbatim; it is not derived from the matched context.
	dst := [16]byte{0xFF, 0xD0, 0x0D, 0x30, 0x40, 0x50, 0x60, 0x70, 0x00, 0x00, 0x00, 0x00, 0x11, 0x22, 0x33, 0x44}
	pkt := buildPacket(t, 0, 0, 0x3B, 22, src, dst)
	f := newDataFrame(t, l2Dst, l2Src)

	got := compressedBytes(t, f, pkt, ctx)
	want := []byte{0xD0, 0x0D, 0x11, 0x22, 0x33, 0x44}
	tail := got[len(got)-6:]
	if string(tail) != string(want) {
		t.Fatalf("context-multicast tail = % x, want % x", tail, want)
	}
}
