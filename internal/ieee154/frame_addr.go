package ieee154

import "fmt"

// SetAddr writes the destination and source PAN/address fields and sets the
// FCF's PAN-ID-Compression bit per the addressing-legality table. dstPAN and
// srcPAN are nil when that PAN field is to be omitted. dstAddr/srcAddr
// length (0, 2, or 8) selects the addressing mode.
//
// On any failure the frame's cursor is restored to its pre-call position,
// and the frame is otherwise unchanged.
func (f *Frame) SetAddr(dstPAN *uint16, dstAddr []byte, srcPAN *uint16, srcAddr []byte) error {
	destMode, ok := ModeForLen(len(dstAddr))
	if !ok {
		return fmt.Errorf("ieee154: dest address length %d: %w", len(dstAddr), ErrAddressingInvalid)
	}
	srcMode, ok := ModeForLen(len(srcAddr))
	if !ok {
		return fmt.Errorf("ieee154: src address length %d: %w", len(srcAddr), ErrAddressingInvalid)
	}

	pidc, ok := lookupByPAN(destMode, srcMode, dstPAN != nil, srcPAN != nil)
	if !ok {
		return fmt.Errorf("ieee154: dest=%s src=%s dstPAN=%v srcPAN=%v: %w",
			destMode, srcMode, dstPAN != nil, srcPAN != nil, ErrAddressingInvalid)
	}

	start := f.buf.Cursor()
	fail := func(err error) error {
		_ = f.buf.RewindTo(start)
		return err
	}

	dstPANOffset := noOffset
	if dstPAN != nil {
		off, err := f.buf.AppendU16LE(*dstPAN)
		if err != nil {
			return fail(fmt.Errorf("ieee154: write dest PAN: %w", err))
		}
		dstPANOffset = off
	}

	dstAddrOffset := noOffset
	if len(dstAddr) > 0 {
		off, err := f.buf.AppendBytes(dstAddr)
		if err != nil {
			return fail(fmt.Errorf("ieee154: write dest address: %w", err))
		}
		dstAddrOffset = off
	}

	srcPANOffset := noOffset
	if srcPAN != nil {
		off, err := f.buf.AppendU16LE(*srcPAN)
		if err != nil {
			return fail(fmt.Errorf("ieee154: write src PAN: %w", err))
		}
		srcPANOffset = off
	}

	srcAddrOffset := noOffset
	if len(srcAddr) > 0 {
		off, err := f.buf.AppendBytes(srcAddr)
		if err != nil {
			return fail(fmt.Errorf("ieee154: write src address: %w", err))
		}
		srcAddrOffset = off
	}

	v, err := f.readFCF()
	if err != nil {
		return fail(err)
	}
	v = v.withPIDC(pidc).withDAM(destMode).withSAM(srcMode)
	if err := f.writeFCF(v); err != nil {
		return fail(err)
	}

	f.dstPANOffset, f.dstAddrOffset, f.dstAddrLen = dstPANOffset, dstAddrOffset, len(dstAddr)
	f.srcPANOffset, f.srcAddrOffset, f.srcAddrLen = srcPANOffset, srcAddrOffset, len(srcAddr)
	f.payloadOffset = f.buf.Cursor()
	f.end = f.buf.Cursor()

	return nil
}

// DestPAN returns the destination PAN ID, or ok=false if absent.
func (f *Frame) DestPAN() (uint16, bool, error) {
	if f.dstPANOffset == noOffset {
		return 0, false, nil
	}
	v, err := f.buf.ReadU16LE(f.dstPANOffset)
	return v, true, err
}

// DestAddr returns the destination address bytes, or nil if absent.
func (f *Frame) DestAddr() ([]byte, error) {
	if f.dstAddrOffset == noOffset {
		return nil, nil
	}
	return f.buf.Slice(f.dstAddrOffset, f.dstAddrOffset+f.dstAddrLen)
}

// SrcPAN returns the source PAN ID, or ok=false if absent.
func (f *Frame) SrcPAN() (uint16, bool, error) {
	if f.srcPANOffset == noOffset {
		return 0, false, nil
	}
	v, err := f.buf.ReadU16LE(f.srcPANOffset)
	return v, true, err
}

// SrcAddr returns the source address bytes, or nil if absent.
func (f *Frame) SrcAddr() ([]byte, error) {
	if f.srcAddrOffset == noOffset {
		return nil, nil
	}
	return f.buf.Slice(f.srcAddrOffset, f.srcAddrOffset+f.srcAddrLen)
}
