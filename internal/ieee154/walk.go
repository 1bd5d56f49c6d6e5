package ieee154

import (
	"fmt"

	"github.com/mistlib/lowpan154/internal/buffer"
)

// walkIEs performs the single forward pass over the Header IE and Payload
// IE regions required by ParseFrame. It validates the terminator discipline
// and IE containment (descriptor length + 2 never exceeds the buffer) but
// does not retain the individual IEs; HeaderIEs/PayloadIEs below do that on
// demand.
func walkIEs(buf *buffer.View, start int) (hieOffset, pieOffset int, hieTerm, pieTerm bool, payloadOffset int, err error) {
	hieOffset = start
	pieOffset = noOffset
	pos := start

	for {
		desc, rerr := buf.ReadU16LE(pos)
		if rerr != nil {
			return 0, 0, false, false, 0, fmt.Errorf("%s: header IE descriptor: %w", parseErrPrefix, rerr)
		}
		if desc&0x8000 != 0 {
			return 0, 0, false, false, 0, fmt.Errorf("%s: payload IE before header terminator: %w", parseErrPrefix, ErrMalformedHeader)
		}
		id, length := decodeHeaderDescriptor(desc)
		if id == HT1 || id == HT2 {
			if length != 0 {
				return 0, 0, false, false, 0, fmt.Errorf("%s: non-empty header terminator: %w", parseErrPrefix, ErrMalformedHeader)
			}
			pos += 2
			hieTerm = true
			if id == HT2 {
				return hieOffset, noOffset, true, false, pos, nil
			}
			pieOffset = pos
			break
		}
		if _, serr := buf.Slice(pos+2, pos+2+length); serr != nil {
			return 0, 0, false, false, 0, fmt.Errorf("%s: header IE content: %w", parseErrPrefix, serr)
		}
		pos += 2 + length
	}

	for {
		desc, rerr := buf.ReadU16LE(pos)
		if rerr != nil {
			return 0, 0, false, false, 0, fmt.Errorf("%s: payload IE descriptor: %w", parseErrPrefix, rerr)
		}
		if desc&0x8000 == 0 {
			return 0, 0, false, false, 0, fmt.Errorf("%s: header IE after payload region began: %w", parseErrPrefix, ErrMalformedHeader)
		}
		group, length := decodePayloadDescriptor(desc)
		if group == GroupPT && length == 0 {
			pos += 2
			pieTerm = true
			return hieOffset, pieOffset, hieTerm, pieTerm, pos, nil
		}
		if _, serr := buf.Slice(pos+2, pos+2+length); serr != nil {
			return 0, 0, false, false, 0, fmt.Errorf("%s: payload IE content: %w", parseErrPrefix, serr)
		}
		pos += 2 + length
	}
}

// HeaderIE is one decoded Header Information Element.
type HeaderIE struct {
	ID      uint8
	Content []byte
}

// HeaderIEs returns the Header IEs in declared order. It returns nil if the
// frame has no IE region at all.
func (f *Frame) HeaderIEs() ([]HeaderIE, error) {
	if f.hieOffset == noOffset {
		return nil, nil
	}
	var out []HeaderIE
	pos := f.hieOffset
	for {
		desc, err := f.buf.ReadU16LE(pos)
		if err != nil {
			return nil, fmt.Errorf("%s: header IE descriptor: %w", parseErrPrefix, err)
		}
		id, length := decodeHeaderDescriptor(desc)
		if id == HT1 || id == HT2 {
			return out, nil
		}
		content, err := f.buf.Slice(pos+2, pos+2+length)
		if err != nil {
			return nil, fmt.Errorf("%s: header IE content: %w", parseErrPrefix, err)
		}
		out = append(out, HeaderIE{ID: id, Content: content})
		pos += 2 + length
	}
}

// PayloadIE is one decoded Payload Information Element.
type PayloadIE struct {
	Group   uint8
	Content []byte
}

// PayloadIEs returns the Payload IEs in declared order. It returns nil if
// the frame has no Payload IE region.
func (f *Frame) PayloadIEs() ([]PayloadIE, error) {
	if f.pieOffset == noOffset {
		return nil, nil
	}
	var out []PayloadIE
	pos := f.pieOffset
	for {
		desc, err := f.buf.ReadU16LE(pos)
		if err != nil {
			return nil, fmt.Errorf("%s: payload IE descriptor: %w", parseErrPrefix, err)
		}
		group, length := decodePayloadDescriptor(desc)
		if group == GroupPT && length == 0 {
			return out, nil
		}
		content, err := f.buf.Slice(pos+2, pos+2+length)
		if err != nil {
			return nil, fmt.Errorf("%s: payload IE content: %w", parseErrPrefix, err)
		}
		out = append(out, PayloadIE{Group: group, Content: content})
		pos += 2 + length
	}
}

// NestedIE is one decoded Nested Information Element.
type NestedIE struct {
	SubID   uint8
	Long    bool
	Content []byte
}

// NestedIEs parses the content of an MLME Payload IE (pie.Content) into its
// sequence of Nested IEs. It fails with ErrIeOrderViolation if pie.Group is
// not GroupMLME.
func (pie PayloadIE) NestedIEs() ([]NestedIE, error) {
	if pie.Group != GroupMLME {
		return nil, fmt.Errorf("ieee154: nested IEs requested on group %#x payload IE: %w", pie.Group, ErrIeOrderViolation)
	}

	var out []NestedIE
	content := pie.Content
	pos := 0
	for pos < len(content) {
		if pos+2 > len(content) {
			return nil, fmt.Errorf("%s: nested IE descriptor truncated: %w", parseErrPrefix, ErrMalformedHeader)
		}
		desc := uint16(content[pos]) | uint16(content[pos+1])<<8
		long := desc&0x8000 != 0

		var sub uint8
		var length int
		if long {
			sub, length = decodeNestedLongDescriptor(desc)
		} else {
			sub, length = decodeNestedShortDescriptor(desc)
		}
		pos += 2
		if pos+length > len(content) {
			return nil, fmt.Errorf("%s: nested IE content truncated: %w", parseErrPrefix, ErrMalformedHeader)
		}
		out = append(out, NestedIE{SubID: sub, Long: long, Content: content[pos : pos+length]})
		pos += length
	}
	return out, nil
}
