package ieee154

// -------------------------------------------------------------------------
// Address Codec — little-endian wire primitives and address-mode helpers.
// -------------------------------------------------------------------------
//
// All multi-byte 802.15.4 fields are little-endian on the wire; IPv6
// addresses and prefixes are big-endian (network order). That asymmetry is
// the reason this package never reaches for encoding/binary.BigEndian: it
// only ever touches link-layer fields.

// AddrMode is the 802.15.4 addressing mode code carried in the FCF's SAM/DAM
// fields.
type AddrMode uint8

const (
	// AddrModeAbsent indicates no address is present (0 bytes).
	AddrModeAbsent AddrMode = 0

	// AddrModeShort indicates a 16-bit short address.
	AddrModeShort AddrMode = 2

	// AddrModeExtended indicates a 64-bit extended address.
	AddrModeExtended AddrMode = 3
)

// Len returns the wire length in bytes for the addressing mode.
func (m AddrMode) Len() int {
	switch m {
	case AddrModeShort:
		return 2
	case AddrModeExtended:
		return 8
	default:
		return 0
	}
}

// String returns a human-readable name for the addressing mode.
func (m AddrMode) String() string {
	switch m {
	case AddrModeAbsent:
		return "Absent"
	case AddrModeShort:
		return "Short"
	case AddrModeExtended:
		return "Extended"
	default:
		return unknownStr
	}
}

// ModeForLen maps an address byte length (0, 2, or 8) to its AddrMode. ok is
// false for any other length.
func ModeForLen(n int) (AddrMode, bool) {
	switch n {
	case 0:
		return AddrModeAbsent, true
	case 2:
		return AddrModeShort, true
	case 8:
		return AddrModeExtended, true
	default:
		return 0, false
	}
}

// ShortToIID derives the 8-byte interface identifier for a 16-bit short
// address: 0000:00ff:fe00:<short>.
func ShortToIID(short uint16) [8]byte {
	return [8]byte{
		0x00, 0x00, 0x00, 0xff, 0xfe, 0x00,
		byte(short >> 8), byte(short),
	}
}

// ExtendedToIID derives the 8-byte interface identifier for a 64-bit
// extended address: copy the 8 bytes and flip the universal/local bit of
// the first byte.
func ExtendedToIID(ext [8]byte) [8]byte {
	iid := ext
	iid[0] ^= 0x02
	return iid
}
