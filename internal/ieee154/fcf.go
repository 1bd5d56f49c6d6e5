package ieee154

// -------------------------------------------------------------------------
// Frame Control Field — 16 bits, LSB first.
// -------------------------------------------------------------------------
//
//	bit  0- 2  frame type      (3 bits)
//	bit  3     security        (1 bit)
//	bit  4     pending          (1 bit)
//	bit  5     AR (ack req.)   (1 bit)
//	bit  6     PIDC             (1 bit)
//	bit  7     reserved         (1 bit)
//	bit  8     seqnum-suppress (1 bit)
//	bit  9     IE present       (1 bit)
//	bit 10-11  DAM              (2 bits)
//	bit 12-13  frame version   (2 bits)
//	bit 14-15  SAM              (2 bits)
type fcf uint16

// FrameType identifies the 802.15.4 frame type carried in the FCF's
// low 3 bits.
type FrameType uint8

const (
	FrameTypeBeacon  FrameType = 0x0
	FrameTypeData    FrameType = 0x1
	FrameTypeAck     FrameType = 0x2
	FrameTypeCommand FrameType = 0x3
)

// String returns a human-readable name for the frame type.
func (t FrameType) String() string {
	switch t {
	case FrameTypeBeacon:
		return "Beacon"
	case FrameTypeData:
		return "Data"
	case FrameTypeAck:
		return "Ack"
	case FrameTypeCommand:
		return "Command"
	default:
		return unknownStr
	}
}

// frameVersion is the only frame-version value this package emits and
// accepts: 802.15.4-2015 ("version 2").
const frameVersion uint8 = 2

const (
	fcfBitSecurity  = 1 << 3
	fcfBitPending   = 1 << 4
	fcfBitAR        = 1 << 5
	fcfBitPIDC      = 1 << 6
	fcfBitSeqSupp   = 1 << 8
	fcfBitIEPresent = 1 << 9
)

func newFCF(ft FrameType) fcf {
	return fcf(uint16(ft&0x7) | uint16(frameVersion)<<12)
}

func (f fcf) frameType() FrameType        { return FrameType(f & 0x7) }
func (f fcf) security() bool              { return f&fcfBitSecurity != 0 }
func (f fcf) pending() bool               { return f&fcfBitPending != 0 }
func (f fcf) ackRequested() bool          { return f&fcfBitAR != 0 }
func (f fcf) pidc() bool                  { return f&fcfBitPIDC != 0 }
func (f fcf) seqnumSuppressed() bool      { return f&fcfBitSeqSupp != 0 }
func (f fcf) iePresent() bool             { return f&fcfBitIEPresent != 0 }
func (f fcf) dam() AddrMode               { return AddrMode((f >> 10) & 0x3) }
func (f fcf) version() uint8              { return uint8((f >> 12) & 0x3) }
func (f fcf) sam() AddrMode               { return AddrMode((f >> 14) & 0x3) }

func (f fcf) withPIDC(v bool) fcf      { return setBit(f, fcfBitPIDC, v) }
func (f fcf) withIEPresent(v bool) fcf { return setBit(f, fcfBitIEPresent, v) }

func (f fcf) withDAM(m AddrMode) fcf {
	return fcf(uint16(f)&^(0x3<<10) | uint16(m&0x3)<<10)
}

func (f fcf) withSAM(m AddrMode) fcf {
	return fcf(uint16(f)&^(0x3<<14) | uint16(m&0x3)<<14)
}

func setBit(f fcf, bit uint16, v bool) fcf {
	if v {
		return f | fcf(bit)
	}
	return f &^ fcf(bit)
}
