package ieee154

// addrRow is one legal row of the addressing-legality table.
type addrRow struct {
	dest, src       AddrMode
	dstPAN, srcPAN  bool
	pidc            bool
}

// addrTable enumerates every legal (dest mode, src mode, dest-PAN present,
// src-PAN present) combination and its PAN-ID-Compression bit. Any
// combination not listed here is ErrAddressingInvalid on build and
// ErrMalformedHeader on parse.
var addrTable = []addrRow{
	{AddrModeAbsent, AddrModeAbsent, false, false, false},
	{AddrModeAbsent, AddrModeAbsent, true, false, true},

	{AddrModeShort, AddrModeAbsent, true, false, false},
	{AddrModeExtended, AddrModeAbsent, true, false, false},
	{AddrModeShort, AddrModeAbsent, false, false, true},
	{AddrModeExtended, AddrModeAbsent, false, false, true},

	{AddrModeAbsent, AddrModeShort, false, true, false},
	{AddrModeAbsent, AddrModeExtended, false, true, false},
	{AddrModeAbsent, AddrModeShort, false, false, true},
	{AddrModeAbsent, AddrModeExtended, false, false, true},

	{AddrModeExtended, AddrModeExtended, true, false, false},
	{AddrModeExtended, AddrModeExtended, false, false, true},

	{AddrModeShort, AddrModeShort, true, true, false},
	{AddrModeShort, AddrModeExtended, true, true, false},
	{AddrModeExtended, AddrModeShort, true, true, false},

	{AddrModeShort, AddrModeShort, true, false, true},
	{AddrModeShort, AddrModeExtended, true, false, true},
}

// lookupByPAN finds the PIDC bit for a build-time request: the caller
// states which addressing modes and which PAN fields it wants present.
func lookupByPAN(dest, src AddrMode, dstPAN, srcPAN bool) (pidc bool, ok bool) {
	for _, row := range addrTable {
		if row.dest == dest && row.src == src && row.dstPAN == dstPAN && row.srcPAN == srcPAN {
			return row.pidc, true
		}
	}
	return false, false
}

// lookupByModes finds the PAN-presence flags implied by a parsed (dest
// mode, src mode, PIDC) triple. Returns ok=false if no row matches, meaning
// the parsed FCF describes an addressing combination this codec does not
// recognize.
func lookupByModes(dest, src AddrMode, pidc bool) (dstPAN, srcPAN bool, ok bool) {
	for _, row := range addrTable {
		if row.dest == dest && row.src == src && row.pidc == pidc {
			return row.dstPAN, row.srcPAN, true
		}
	}
	return false, false, false
}
