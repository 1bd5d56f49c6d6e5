// Package ieee154 implements IEEE 802.15.4 Media Access Control frame
// construction, parsing, and nested Information Element (IE) support.
//
// This covers the Frame Control Field, MHR addressing, and Header/Payload/
// Nested IE encoding. It deliberately omits everything below the single
// bounded byte buffer it operates on: no raw sockets, no CSMA/CA, no
// association, no frame security.
package ieee154

import (
	"errors"
	"fmt"

	"github.com/mistlib/lowpan154/internal/buffer"
)

const unknownStr = "Unknown"

// MaxFrameLength is the maximum 802.15.4 frame size in octets, including
// the trailing 2-byte FCS that this package reserves but never writes.
const MaxFrameLength = 127

// fcsLen is the trailing Frame Check Sequence length the codec reserves.
const fcsLen = 2

// Sentinel errors returned by this package.
var (
	// ErrAddressingInvalid indicates an illegal dest/src addressing-mode
	// and PAN-presence combination passed to SetAddr.
	ErrAddressingInvalid = errors.New("ieee154: invalid addressing combination")

	// ErrSeqnumSuppressed indicates SetSeqnum was called while the FCF's
	// sequence-number-suppression bit is set.
	ErrSeqnumSuppressed = errors.New("ieee154: sequence number suppressed")

	// ErrIeTooLong indicates IE content exceeds the descriptor's length
	// field capacity (127 bytes for a Header IE, 2047 for a Payload or
	// long-form Nested IE, 255 for a short-form Nested IE).
	ErrIeTooLong = errors.New("ieee154: information element too long")

	// ErrIeOrderViolation indicates an IE was appended out of the
	// mandated Header-then-Payload order, or a Nested IE was appended to
	// a non-MLME Payload IE.
	ErrIeOrderViolation = errors.New("ieee154: information element order violation")

	// ErrMalformedHeader indicates a structural violation discovered
	// while parsing: truncated fields, an inconsistent FCF, or an
	// addressing combination with no legal interpretation.
	ErrMalformedHeader = errors.New("ieee154: malformed header")
)

// Frame wraps a byte-buffer view plus the offsets the MHR implies. The FCF
// in the buffer is the source of truth; every offset here is derived from
// it, never the other way around.
type Frame struct {
	buf *buffer.View

	mhrStart int

	seqOffset int // -1 if sequence number is suppressed

	dstPANOffset  int // -1 if absent
	dstAddrOffset int
	dstAddrLen    int

	srcPANOffset  int // -1 if absent
	srcAddrOffset int
	srcAddrLen    int

	hieOffset int // -1 if there is no IE region at all
	pieOffset int // -1 if there are no Payload IEs

	hieTerminated bool
	pieTerminated bool

	payloadOffset int
	end           int
}

const noOffset = -1

// frameInit writes a canonical initial FCF (the given frame type, frame
// version 2, sequence-number suppression clear, IE-present clear), a
// placeholder sequence byte, and positions the frame ready for SetAddr.
func frameInit(buf *buffer.View, ft FrameType) (*Frame, error) {
	f := &Frame{
		buf:           buf,
		mhrStart:      buf.Cursor(),
		dstPANOffset:  noOffset,
		dstAddrOffset: noOffset,
		srcPANOffset:  noOffset,
		srcAddrOffset: noOffset,
		hieOffset:     noOffset,
		pieOffset:     noOffset,
	}

	if _, err := buf.AppendU16LE(uint16(newFCF(ft))); err != nil {
		return nil, fmt.Errorf("ieee154: init frame control field: %w", err)
	}

	seqOffset, err := buf.AppendU8(0)
	if err != nil {
		return nil, fmt.Errorf("ieee154: init sequence number: %w", err)
	}
	f.seqOffset = seqOffset
	f.payloadOffset = buf.Cursor()
	f.end = buf.Cursor()

	return f, nil
}

// BeaconInit initializes a Beacon frame at the buffer's current cursor.
func BeaconInit(buf *buffer.View) (*Frame, error) { return frameInit(buf, FrameTypeBeacon) }

// DataInit initializes a Data frame at the buffer's current cursor.
func DataInit(buf *buffer.View) (*Frame, error) { return frameInit(buf, FrameTypeData) }

// AckInit initializes an Ack frame at the buffer's current cursor.
func AckInit(buf *buffer.View) (*Frame, error) { return frameInit(buf, FrameTypeAck) }

// CmdInit initializes a Command frame at the buffer's current cursor.
func CmdInit(buf *buffer.View) (*Frame, error) { return frameInit(buf, FrameTypeCommand) }

func (f *Frame) readFCF() (fcf, error) {
	v, err := f.buf.ReadU16LE(f.mhrStart)
	if err != nil {
		return 0, fmt.Errorf("ieee154: read frame control field: %w", err)
	}
	return fcf(v), nil
}

func (f *Frame) writeFCF(v fcf) error {
	if err := f.buf.WriteU16LEAt(f.mhrStart, uint16(v)); err != nil {
		return fmt.Errorf("ieee154: write frame control field: %w", err)
	}
	return nil
}

// FCFRaw returns the raw 16-bit Frame Control Field value.
func (f *Frame) FCFRaw() (uint16, error) {
	v, err := f.readFCF()
	return uint16(v), err
}

// FrameType returns the frame type carried in the FCF.
func (f *Frame) FrameType() (FrameType, error) {
	v, err := f.readFCF()
	if err != nil {
		return 0, err
	}
	return v.frameType(), nil
}

// SeqNum returns the sequence number, or (0, false, nil) if suppressed.
func (f *Frame) SeqNum() (uint8, bool, error) {
	v, err := f.readFCF()
	if err != nil {
		return 0, false, err
	}
	if v.seqnumSuppressed() {
		return 0, false, nil
	}
	n, err := f.buf.ReadU8(f.seqOffset)
	if err != nil {
		return 0, false, fmt.Errorf("ieee154: read sequence number: %w", err)
	}
	return n, true, nil
}

// SetSeqnum writes the sequence number at its fixed offset. It fails with
// ErrSeqnumSuppressed if the FCF's suppression bit is set.
func (f *Frame) SetSeqnum(n uint8) error {
	v, err := f.readFCF()
	if err != nil {
		return err
	}
	if v.seqnumSuppressed() {
		return ErrSeqnumSuppressed
	}
	if err := f.buf.WriteAt(f.seqOffset, []byte{n}); err != nil {
		return fmt.Errorf("ieee154: write sequence number: %w", err)
	}
	return nil
}

// Length returns the total frame length written so far, in octets,
// excluding the reserved trailing FCS.
func (f *Frame) Length() int {
	return f.end - f.mhrStart
}

// RawBuffer returns the wire bytes of the frame built so far, from the FCF
// through the last written octet. It excludes the FCS this package reserves
// but never writes.
func (f *Frame) RawBuffer() ([]byte, error) {
	return f.buf.Slice(f.mhrStart, f.end)
}

// AppendPayload writes p immediately after the MHR/IE region and advances
// the frame's end. It fails with ErrCapacityExceeded if p would push the
// frame into the reserved FCS octets (past MaxFrameLength-fcsLen) or past
// the underlying buffer's capacity.
func (f *Frame) AppendPayload(p []byte) error {
	if len(p) > f.remainingCapacity() {
		return fmt.Errorf("ieee154: append payload of %d bytes: %w", len(p), buffer.ErrCapacityExceeded)
	}
	if _, err := f.buf.AppendBytes(p); err != nil {
		return fmt.Errorf("ieee154: append payload: %w", err)
	}
	f.end = f.buf.Cursor()
	return nil
}

// PayloadStart returns the buffer offset at which the payload begins.
func (f *Frame) PayloadStart() int {
	return f.payloadOffset
}

// remainingCapacity returns how many more octets can be appended before
// MaxFrameLength (reserving fcsLen for the FCS) is exceeded.
func (f *Frame) remainingCapacity() int {
	return f.mhrStart + MaxFrameLength - fcsLen - f.buf.Cursor()
}
