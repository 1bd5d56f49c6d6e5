package ieee154

import (
	"fmt"

	"github.com/mistlib/lowpan154/internal/buffer"
)

// ParseFrame derives a Frame by walking buf once from start, the offset of
// the Frame Control Field. Parsing never mutates buf. The caller is
// expected to have already stripped any trailing FCS.
func ParseFrame(buf *buffer.View, start int) (*Frame, error) {
	f := &Frame{
		buf:           buf,
		mhrStart:      start,
		dstPANOffset:  noOffset,
		dstAddrOffset: noOffset,
		srcPANOffset:  noOffset,
		srcAddrOffset: noOffset,
		hieOffset:     noOffset,
		pieOffset:     noOffset,
	}

	v, err := f.readFCF()
	if err != nil {
		return nil, fmt.Errorf("ieee154: parse frame control field: %w", err)
	}

	pos := start + 2

	if v.seqnumSuppressed() {
		f.seqOffset = noOffset
	} else {
		if _, err := buf.ReadU8(pos); err != nil {
			return nil, fmt.Errorf("%s: sequence number: %w", parseErrPrefix, err)
		}
		f.seqOffset = pos
		pos++
	}

	destMode, srcMode := v.dam(), v.sam()
	if destMode == 1 || srcMode == 1 {
		return nil, fmt.Errorf("%s: reserved addressing mode: %w", parseErrPrefix, ErrMalformedHeader)
	}

	dstPANPresent, srcPANPresent, ok := lookupByModes(destMode, srcMode, v.pidc())
	if !ok {
		return nil, fmt.Errorf("%s: dest=%s src=%s pidc=%v: %w",
			parseErrPrefix, destMode, srcMode, v.pidc(), ErrMalformedHeader)
	}

	if dstPANPresent {
		f.dstPANOffset = pos
		if _, err := buf.ReadU16LE(pos); err != nil {
			return nil, fmt.Errorf("%s: dest PAN: %w", parseErrPrefix, err)
		}
		pos += 2
	}
	if n := destMode.Len(); n > 0 {
		if _, err := buf.Slice(pos, pos+n); err != nil {
			return nil, fmt.Errorf("%s: dest address: %w", parseErrPrefix, err)
		}
		f.dstAddrOffset, f.dstAddrLen = pos, n
		pos += n
	}

	if srcPANPresent {
		f.srcPANOffset = pos
		if _, err := buf.ReadU16LE(pos); err != nil {
			return nil, fmt.Errorf("%s: src PAN: %w", parseErrPrefix, err)
		}
		pos += 2
	}
	if n := srcMode.Len(); n > 0 {
		if _, err := buf.Slice(pos, pos+n); err != nil {
			return nil, fmt.Errorf("%s: src address: %w", parseErrPrefix, err)
		}
		f.srcAddrOffset, f.srcAddrLen = pos, n
		pos += n
	}

	if v.iePresent() {
		hieOffset, pieOffset, hieTerm, pieTerm, payloadOffset, err := walkIEs(buf, pos)
		if err != nil {
			return nil, err
		}
		f.hieOffset = hieOffset
		f.pieOffset = pieOffset
		f.hieTerminated = hieTerm
		f.pieTerminated = pieTerm
		f.payloadOffset = payloadOffset
	} else {
		f.payloadOffset = pos
	}

	f.end = buf.Capacity()

	return f, nil
}

// parseErrPrefix is the common error prefix for frame decoding failures.
const parseErrPrefix = "ieee154: parse frame"

// Payload returns the frame's payload region.
func (f *Frame) Payload() ([]byte, error) {
	return f.buf.Slice(f.payloadOffset, f.end)
}
