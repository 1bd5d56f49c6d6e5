package ieee154_test

import (
	"errors"
	"testing"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/ieee154"
)

// Header/Sub IE ids used by the 802.15.4-2015 standard that the seed
// scenarios below exercise.
const (
	idCSL            = 0x1A
	idRIT            = 0x1B
	idDSMEPANDescr   = 0x1C
	idTSCHSync       = 0x1A
	idTSCHSlotframe  = 0x1B
	idTSCHTimeslot   = 0x1C
	groupVendorOwned = 0x2
)

func buildNestedIEFrame(t *testing.T) *ieee154.Frame {
	t.Helper()

	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.BeaconInit(buf)
	if err != nil {
		t.Fatalf("BeaconInit: %v", err)
	}
	if err := f.SetSeqnum(0xC1); err != nil {
		t.Fatalf("SetSeqnum: %v", err)
	}
	dstPAN, srcPAN := uint16(0xFACE), uint16(0xF00D)
	dst, src := []byte{0x12, 0x34}, []byte{0x56, 0x78}
	if err := f.SetAddr(&dstPAN, dst, &srcPAN, src); err != nil {
		t.Fatalf("SetAddr: %v", err)
	}

	if err := f.AppendHeaderIE(idCSL, []byte{0x11, 0x11}); err != nil {
		t.Fatalf("AppendHeaderIE CSL: %v", err)
	}
	if err := f.AppendHeaderIE(idRIT, []byte{0x22, 0x22, 0x22}); err != nil {
		t.Fatalf("AppendHeaderIE RIT: %v", err)
	}
	if err := f.AppendHeaderIE(idDSMEPANDescr, []byte{0x33, 0x33, 0x33, 0x33, 0x33}); err != nil {
		t.Fatalf("AppendHeaderIE DSME PAN descriptor: %v", err)
	}
	if err := f.AppendPayloadIE(groupVendorOwned, []byte{0x22, 0x22, 0x22}); err != nil {
		t.Fatalf("AppendPayloadIE vendor: %v", err)
	}
	if err := f.AppendMLME([]ieee154.NestedEntry{
		{SubID: idTSCHSync, Content: []byte{0x11, 0x11}},
		{SubID: idTSCHSlotframe, Content: []byte{0x22, 0x22, 0x22}},
		{SubID: idTSCHTimeslot, Content: []byte{0x33, 0x33, 0x33, 0x33, 0x33, 0x44, 0x44, 0x44, 0x44}},
	}); err != nil {
		t.Fatalf("AppendMLME: %v", err)
	}
	if err := f.FinishIEs(); err != nil {
		t.Fatalf("FinishIEs: %v", err)
	}
	if err := f.AppendPayload([]byte("Hello world!\x00Feed me.\x00")); err != nil {
		t.Fatalf("AppendPayload: %v", err)
	}
	return f
}

func TestNestedIEEmissionAndParse(t *testing.T) {
	t.Parallel()

	f := buildNestedIEFrame(t)

	hies, err := f.HeaderIEs()
	if err != nil {
		t.Fatalf("HeaderIEs: %v", err)
	}
	wantHIEs := []struct {
		id  uint8
		len int
	}{
		{idCSL, 2}, {idRIT, 3}, {idDSMEPANDescr, 5},
	}
	if len(hies) != len(wantHIEs) {
		t.Fatalf("len(HeaderIEs) = %d, want %d", len(hies), len(wantHIEs))
	}
	for i, w := range wantHIEs {
		if hies[i].ID != w.id || len(hies[i].Content) != w.len {
			t.Errorf("HeaderIEs[%d] = {id=%#x len=%d}, want {id=%#x len=%d}",
				i, hies[i].ID, len(hies[i].Content), w.id, w.len)
		}
	}

	pies, err := f.PayloadIEs()
	if err != nil {
		t.Fatalf("PayloadIEs: %v", err)
	}
	if len(pies) != 2 {
		t.Fatalf("len(PayloadIEs) = %d, want 2", len(pies))
	}
	if pies[0].Group != groupVendorOwned || len(pies[0].Content) != 3 {
		t.Errorf("PayloadIEs[0] = %+v, want group=%#x len=3", pies[0], groupVendorOwned)
	}
	if pies[1].Group != ieee154.GroupMLME {
		t.Errorf("PayloadIEs[1].Group = %#x, want GroupMLME", pies[1].Group)
	}

	nies, err := pies[1].NestedIEs()
	if err != nil {
		t.Fatalf("NestedIEs: %v", err)
	}
	wantNIEs := []struct {
		sub uint8
		len int
	}{
		{idTSCHSync, 2}, {idTSCHSlotframe, 3}, {idTSCHTimeslot, 9},
	}
	if len(nies) != len(wantNIEs) {
		t.Fatalf("len(NestedIEs) = %d, want %d", len(nies), len(wantNIEs))
	}
	for i, w := range wantNIEs {
		if nies[i].SubID != w.sub || len(nies[i].Content) != w.len {
			t.Errorf("NestedIEs[%d] = {sub=%#x len=%d}, want {sub=%#x len=%d}",
				i, nies[i].SubID, len(nies[i].Content), w.sub, w.len)
		}
	}

	payload, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if string(payload) != "Hello world!\x00Feed me.\x00" {
		t.Errorf("Payload = %q", payload)
	}

	raw, err := f.FCFRaw()
	if err != nil {
		t.Fatalf("FCFRaw: %v", err)
	}
	if raw&0x0200 == 0 { // IE-present bit
		t.Errorf("fctrl = %#04x, IE-present bit not set", raw)
	}
}

func TestNestedIEFrameRoundTripParse(t *testing.T) {
	t.Parallel()

	f := buildNestedIEFrame(t)
	wireBuf, err := f.RawBuffer()
	if err != nil {
		t.Fatalf("RawBuffer: %v", err)
	}

	rx := buffer.New(wireBuf)
	parsed, err := ieee154.ParseFrame(rx, 0)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}

	hies, err := parsed.HeaderIEs()
	if err != nil {
		t.Fatalf("HeaderIEs: %v", err)
	}
	if len(hies) != 3 {
		t.Fatalf("len(HeaderIEs) = %d, want 3", len(hies))
	}

	payload, err := parsed.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if string(payload) != "Hello world!\x00Feed me.\x00" {
		t.Errorf("Payload = %q", payload)
	}
}

func TestAppendHeaderIEAfterTerminatorFails(t *testing.T) {
	t.Parallel()

	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.BeaconInit(buf)
	if err != nil {
		t.Fatalf("BeaconInit: %v", err)
	}
	if err := f.SetSeqnum(1); err != nil {
		t.Fatalf("SetSeqnum: %v", err)
	}
	if err := f.AppendPayloadIE(groupVendorOwned, []byte{0x01}); err != nil {
		t.Fatalf("AppendPayloadIE: %v", err)
	}
	err = f.AppendHeaderIE(idCSL, []byte{0x11, 0x11})
	if !errors.Is(err, ieee154.ErrIeOrderViolation) {
		t.Fatalf("AppendHeaderIE error = %v, want ErrIeOrderViolation", err)
	}
}

func TestAppendHeaderIEReservedIDFails(t *testing.T) {
	t.Parallel()

	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.BeaconInit(buf)
	if err != nil {
		t.Fatalf("BeaconInit: %v", err)
	}
	if err := f.SetSeqnum(1); err != nil {
		t.Fatalf("SetSeqnum: %v", err)
	}
	if err := f.AppendHeaderIE(ieee154.HT1, nil); !errors.Is(err, ieee154.ErrIeOrderViolation) {
		t.Fatalf("AppendHeaderIE(HT1) error = %v, want ErrIeOrderViolation", err)
	}
}

func TestAppendHeaderIETooLongFails(t *testing.T) {
	t.Parallel()

	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.BeaconInit(buf)
	if err != nil {
		t.Fatalf("BeaconInit: %v", err)
	}
	if err := f.SetSeqnum(1); err != nil {
		t.Fatalf("SetSeqnum: %v", err)
	}
	content := make([]byte, ieee154.MaxHeaderIELen+1)
	if err := f.AppendHeaderIE(idCSL, content); !errors.Is(err, ieee154.ErrIeTooLong) {
		t.Fatalf("AppendHeaderIE error = %v, want ErrIeTooLong", err)
	}
}

func TestNestedIEsOnNonMLMEGroupFails(t *testing.T) {
	t.Parallel()

	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.BeaconInit(buf)
	if err != nil {
		t.Fatalf("BeaconInit: %v", err)
	}
	if err := f.SetSeqnum(1); err != nil {
		t.Fatalf("SetSeqnum: %v", err)
	}
	if err := f.AppendPayloadIE(groupVendorOwned, []byte{0x01}); err != nil {
		t.Fatalf("AppendPayloadIE: %v", err)
	}
	if err := f.FinishIEs(); err != nil {
		t.Fatalf("FinishIEs: %v", err)
	}

	pies, err := f.PayloadIEs()
	if err != nil {
		t.Fatalf("PayloadIEs: %v", err)
	}
	_, err = pies[0].NestedIEs()
	if !errors.Is(err, ieee154.ErrIeOrderViolation) {
		t.Fatalf("NestedIEs error = %v, want ErrIeOrderViolation", err)
	}
}

func TestFinishIEsWithOnlyHeaderIEsWritesHT2(t *testing.T) {
	t.Parallel()

	buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
	f, err := ieee154.BeaconInit(buf)
	if err != nil {
		t.Fatalf("BeaconInit: %v", err)
	}
	if err := f.SetSeqnum(1); err != nil {
		t.Fatalf("SetSeqnum: %v", err)
	}
	if err := f.AppendHeaderIE(idCSL, []byte{0xAA}); err != nil {
		t.Fatalf("AppendHeaderIE: %v", err)
	}
	if err := f.FinishIEs(); err != nil {
		t.Fatalf("FinishIEs: %v", err)
	}

	pies, err := f.PayloadIEs()
	if err != nil {
		t.Fatalf("PayloadIEs: %v", err)
	}
	if pies != nil {
		t.Errorf("PayloadIEs = %v, want nil (HT2 path, no payload IE region)", pies)
	}
}

// TestNestedIEFrameExactBytes compares the built frame's full IE region
// against a literal expected byte sequence, hand-packed per the descriptor
// layout documented in ie.go. Structural checks on IDs and lengths (as in
// TestNestedIEEmissionAndParse) can't catch a regression that swaps two
// fields inside a descriptor but leaves the decoded view looking right;
// only an exact comparison against the wire bytes can.
func TestNestedIEFrameExactBytes(t *testing.T) {
	t.Parallel()

	f := buildNestedIEFrame(t)

	raw, err := f.RawBuffer()
	if err != nil {
		t.Fatalf("RawBuffer: %v", err)
	}
	payload, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}

	want := []byte{
		// Header IE idCSL=0x1A, len=2: desc = len(7)=2 | id(8)=0x1A<<7 = 0x0D02.
		0x02, 0x0D, 0x11, 0x11,
		// Header IE idRIT=0x1B, len=3: desc = 3 | 0x1B<<7 = 0x0D83.
		0x83, 0x0D, 0x22, 0x22, 0x22,
		// Header IE idDSMEPANDescr=0x1C, len=5: desc = 5 | 0x1C<<7 = 0x0E05.
		0x05, 0x0E, 0x33, 0x33, 0x33, 0x33, 0x33,
		// HT1 header terminator: desc = 0 | 0x7E<<7 = 0x3F00.
		0x00, 0x3F,
		// Payload IE group=groupVendorOwned=0x2, len=3: desc = 3 | 0x2<<11 | 1<<15 = 0x9003.
		0x03, 0x90, 0x22, 0x22, 0x22,
		// Payload IE group=GroupMLME=0x1, len=20 (3 nested IEs below): desc = 20 | 0x1<<11 | 1<<15 = 0x8814.
		0x14, 0x88,
		// Nested IE sub=idTSCHSync=0x1A, len=2, short form: desc = 2 | 0x1A<<8 = 0x1A02.
		0x02, 0x1A, 0x11, 0x11,
		// Nested IE sub=idTSCHSlotframe=0x1B, len=3, short form: desc = 3 | 0x1B<<8 = 0x1B03.
		0x03, 0x1B, 0x22, 0x22, 0x22,
		// Nested IE sub=idTSCHTimeslot=0x1C, len=9, short form: desc = 9 | 0x1C<<8 = 0x1C09.
		0x09, 0x1C, 0x33, 0x33, 0x33, 0x33, 0x33, 0x44, 0x44, 0x44, 0x44,
		// Payload IE terminator group=GroupPT=0xF, len=0: desc = 0 | 0xF<<11 | 1<<15 = 0xF800.
		0x00, 0xF8,
	}

	ieEnd := len(raw) - len(payload)
	if ieEnd < len(want) {
		t.Fatalf("IE region shorter than expected: raw=%d payload=%d, want at least %d IE bytes",
			len(raw), len(payload), len(want))
	}
	got := raw[ieEnd-len(want) : ieEnd]
	if string(got) != string(want) {
		t.Fatalf("IE region = % x\nwant        = % x", got, want)
	}
}

func TestBuildNestedIEsLongForm(t *testing.T) {
	t.Parallel()

	content, err := ieee154.BuildNestedIEs([]ieee154.NestedEntry{
		{SubID: 0x9, Content: make([]byte, 300)}, // sub-id < 128 but length forces long form
	})
	if err != nil {
		t.Fatalf("BuildNestedIEs: %v", err)
	}
	if len(content) != 2+300 {
		t.Fatalf("len(content) = %d, want %d", len(content), 2+300)
	}
	desc := uint16(content[0]) | uint16(content[1])<<8
	if desc&0x8000 == 0 {
		t.Errorf("descriptor %#04x is not long-form", desc)
	}
}
