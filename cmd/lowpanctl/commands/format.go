package commands

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// decodeHexArg decodes a command-line hex argument, tolerating an optional
// "0x" prefix and embedded whitespace (so frame dumps can be pasted back in
// verbatim).
func decodeHexArg(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.ReplaceAll(s, " ", "")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex argument: %w", err)
	}
	return raw, nil
}

// frameView is the JSON-friendly projection of a parsed frame summary.
type frameView struct {
	FrameType  string          `json:"frame_type"`
	Length     int             `json:"length"`
	Seqnum     *uint8          `json:"seqnum,omitempty"`
	DestPAN    *uint16         `json:"dest_pan,omitempty"`
	DestAddr   string          `json:"dest_addr,omitempty"`
	SrcPAN     *uint16         `json:"src_pan,omitempty"`
	SrcAddr    string          `json:"src_addr,omitempty"`
	HeaderIEs  []ieView        `json:"header_ies,omitempty"`
	PayloadIEs []payloadIEView `json:"payload_ies,omitempty"`
	Payload    string          `json:"payload,omitempty"`
}

type ieView struct {
	ID      uint8  `json:"id"`
	Content string `json:"content"`
}

type payloadIEView struct {
	Group   uint8       `json:"group"`
	Content string      `json:"content,omitempty"`
	Nested  []nestedView `json:"nested,omitempty"`
}

type nestedView struct {
	SubID   uint8  `json:"sub_id"`
	Content string `json:"content"`
}

func renderFrame(v frameView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal frame to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return renderFrameTable(v), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func renderFrameTable(v frameView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, headingStyle.Render("Frame"))
	fmt.Fprintf(w, "Type:\t%s\n", v.FrameType)
	fmt.Fprintf(w, "Length:\t%d\n", v.Length)
	if v.Seqnum != nil {
		fmt.Fprintf(w, "Seqnum:\t%d\n", *v.Seqnum)
	}
	if v.DestPAN != nil {
		fmt.Fprintf(w, "Dest PAN:\t0x%04x\n", *v.DestPAN)
	}
	if v.DestAddr != "" {
		fmt.Fprintf(w, "Dest Addr:\t%s\n", v.DestAddr)
	}
	if v.SrcPAN != nil {
		fmt.Fprintf(w, "Src PAN:\t0x%04x\n", *v.SrcPAN)
	}
	if v.SrcAddr != "" {
		fmt.Fprintf(w, "Src Addr:\t%s\n", v.SrcAddr)
	}

	for _, h := range v.HeaderIEs {
		fmt.Fprintf(w, "Header IE:\tid=%d content=%s\n", h.ID, h.Content)
	}
	for _, p := range v.PayloadIEs {
		fmt.Fprintf(w, "Payload IE:\tgroup=%d content=%s\n", p.Group, p.Content)
		for _, n := range p.Nested {
			fmt.Fprintf(w, "  Nested IE:\tsub=%d content=%s\n", n.SubID, n.Content)
		}
	}
	if v.Payload != "" {
		fmt.Fprintf(w, "Payload:\t%s\n", v.Payload)
	}

	if err := w.Flush(); err != nil {
		return err.Error()
	}
	return buf.String()
}

// renderOutcome styles a short ok/error status line.
func renderOutcome(ok bool, msg string) string {
	if ok {
		return okStyle.Render("OK") + " " + msg
	}
	return errStyle.Render("ERROR") + " " + msg
}
