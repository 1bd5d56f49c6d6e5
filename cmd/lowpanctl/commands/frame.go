package commands

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/ieee154"
)

var errUnknownFrameType = errors.New("unknown frame type, expected beacon, data, ack, or command")

func frameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Parse and build IEEE 802.15.4 frames",
	}
	cmd.AddCommand(frameParseCmd())
	cmd.AddCommand(frameBuildCmd())
	return cmd
}

// --- frame parse ---

func frameParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <hex>",
		Short: "Parse a hex-encoded 802.15.4 frame and print its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := decodeHexArg(args[0])
			if err != nil {
				return err
			}

			buf := buffer.New(raw)
			frame, err := ieee154.ParseFrame(buf, 0)
			if err != nil {
				return fmt.Errorf("parse frame: %w", err)
			}

			view, err := buildFrameView(frame, len(raw))
			if err != nil {
				return err
			}

			out, err := renderFrame(view, outputFormat)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func buildFrameView(frame *ieee154.Frame, length int) (frameView, error) {
	ft, err := frame.FrameType()
	if err != nil {
		return frameView{}, fmt.Errorf("read frame type: %w", err)
	}
	v := frameView{FrameType: ft.String(), Length: length}

	if n, ok, err := frame.SeqNum(); err != nil {
		return frameView{}, fmt.Errorf("read seqnum: %w", err)
	} else if ok {
		v.Seqnum = &n
	}

	if pan, ok, err := frame.DestPAN(); err != nil {
		return frameView{}, fmt.Errorf("read dest PAN: %w", err)
	} else if ok {
		v.DestPAN = &pan
	}
	if addr, err := frame.DestAddr(); err != nil {
		return frameView{}, fmt.Errorf("read dest addr: %w", err)
	} else if len(addr) > 0 {
		v.DestAddr = hex.EncodeToString(addr)
	}

	if pan, ok, err := frame.SrcPAN(); err != nil {
		return frameView{}, fmt.Errorf("read src PAN: %w", err)
	} else if ok {
		v.SrcPAN = &pan
	}
	if addr, err := frame.SrcAddr(); err != nil {
		return frameView{}, fmt.Errorf("read src addr: %w", err)
	} else if len(addr) > 0 {
		v.SrcAddr = hex.EncodeToString(addr)
	}

	headerIEs, err := frame.HeaderIEs()
	if err != nil {
		return frameView{}, fmt.Errorf("read header IEs: %w", err)
	}
	for _, h := range headerIEs {
		v.HeaderIEs = append(v.HeaderIEs, ieView{ID: h.ID, Content: hex.EncodeToString(h.Content)})
	}

	payloadIEs, err := frame.PayloadIEs()
	if err != nil {
		return frameView{}, fmt.Errorf("read payload IEs: %w", err)
	}
	for _, p := range payloadIEs {
		pv := payloadIEView{Group: p.Group, Content: hex.EncodeToString(p.Content)}
		nested, err := p.NestedIEs()
		if err != nil {
			return frameView{}, fmt.Errorf("read nested IEs: %w", err)
		}
		for _, n := range nested {
			pv.Nested = append(pv.Nested, nestedView{SubID: n.SubID, Content: hex.EncodeToString(n.Content)})
		}
		v.PayloadIEs = append(v.PayloadIEs, pv)
	}

	payload, err := frame.Payload()
	if err != nil {
		return frameView{}, fmt.Errorf("read payload: %w", err)
	}
	if len(payload) > 0 {
		v.Payload = hex.EncodeToString(payload)
	}

	return v, nil
}

// --- frame build ---

func frameBuildCmd() *cobra.Command {
	var (
		frameType string
		dstPAN    uint16
		dstAddr   string
		srcPAN    uint16
		srcAddr   string
		seqnum    uint8
		payload   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an 802.15.4 frame and print it as hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			init, err := frameInitForType(frameType)
			if err != nil {
				return err
			}

			buf := buffer.New(make([]byte, ieee154.MaxFrameLength))
			frame, err := init(buf)
			if err != nil {
				return fmt.Errorf("init frame: %w", err)
			}

			var dstAddrBytes, srcAddrBytes []byte
			if dstAddr != "" {
				dstAddrBytes, err = decodeHexArg(dstAddr)
				if err != nil {
					return fmt.Errorf("decode --dst-addr: %w", err)
				}
			}
			if srcAddr != "" {
				srcAddrBytes, err = decodeHexArg(srcAddr)
				if err != nil {
					return fmt.Errorf("decode --src-addr: %w", err)
				}
			}

			var dstPANPtr, srcPANPtr *uint16
			if cmd.Flags().Changed("dst-pan") {
				dstPANPtr = &dstPAN
			}
			if cmd.Flags().Changed("src-pan") {
				srcPANPtr = &srcPAN
			}

			if len(dstAddrBytes) > 0 || len(srcAddrBytes) > 0 || dstPANPtr != nil || srcPANPtr != nil {
				if err := frame.SetAddr(dstPANPtr, dstAddrBytes, srcPANPtr, srcAddrBytes); err != nil {
					return fmt.Errorf("set addressing: %w", err)
				}
			}

			if cmd.Flags().Changed("seqnum") {
				if err := frame.SetSeqnum(seqnum); err != nil {
					return fmt.Errorf("set seqnum: %w", err)
				}
			}

			if payload != "" {
				payloadBytes, err := decodeHexArg(payload)
				if err != nil {
					return fmt.Errorf("decode --payload: %w", err)
				}
				if err := frame.AppendPayload(payloadBytes); err != nil {
					return fmt.Errorf("append payload: %w", err)
				}
			}

			raw, err := frame.RawBuffer()
			if err != nil {
				return fmt.Errorf("read built frame: %w", err)
			}

			fmt.Println(hex.EncodeToString(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&frameType, "type", "data", "frame type: beacon, data, ack, command")
	cmd.Flags().Uint16Var(&dstPAN, "dst-pan", 0, "destination PAN ID")
	cmd.Flags().StringVar(&dstAddr, "dst-addr", "", "destination address, hex (2 bytes short, 8 bytes extended)")
	cmd.Flags().Uint16Var(&srcPAN, "src-pan", 0, "source PAN ID")
	cmd.Flags().StringVar(&srcAddr, "src-addr", "", "source address, hex (2 bytes short, 8 bytes extended)")
	cmd.Flags().Uint8Var(&seqnum, "seqnum", 0, "sequence number")
	cmd.Flags().StringVar(&payload, "payload", "", "frame payload, hex")

	return cmd
}

func frameInitForType(t string) (func(*buffer.View) (*ieee154.Frame, error), error) {
	switch t {
	case "beacon":
		return ieee154.BeaconInit, nil
	case "data":
		return ieee154.DataInit, nil
	case "ack":
		return ieee154.AckInit, nil
	case "command":
		return ieee154.CmdInit, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFrameType, t)
	}
}
