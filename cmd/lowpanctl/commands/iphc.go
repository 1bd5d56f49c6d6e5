package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/config"
	"github.com/mistlib/lowpan154/internal/ieee154"
	"github.com/mistlib/lowpan154/internal/sixlowpan"
)

func iphcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iphc",
		Short: "Compress and decompress 6LoWPAN IPHC headers",
	}
	cmd.AddCommand(iphcCompressCmd())
	cmd.AddCommand(iphcDecompressCmd())
	return cmd
}

// --- iphc compress ---

func iphcCompressCmd() *cobra.Command {
	var (
		dstAddr string
		srcAddr string
		dstPAN  uint16
	)

	cmd := &cobra.Command{
		Use:   "compress <hex-ipv6-packet>",
		Short: "Compress an uncompressed IPv6 packet into an 802.15.4 data frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := decodeHexArg(args[0])
			if err != nil {
				return err
			}
			if len(raw) < sixlowpan.IPv6HeaderLen {
				return fmt.Errorf("packet too short: %d bytes, want at least %d", len(raw), sixlowpan.IPv6HeaderLen)
			}

			ctxTable, err := loadContextTable()
			if err != nil {
				return err
			}

			in := buffer.New(raw)
			pkt, err := sixlowpan.ParseIPv6Packet(in, 0)
			if err != nil {
				return fmt.Errorf("parse ipv6 packet: %w", err)
			}
			payload, err := pkt.Payload(0, len(raw))
			if err != nil {
				return fmt.Errorf("read ipv6 payload: %w", err)
			}

			out := buffer.New(make([]byte, ieee154.MaxFrameLength))
			frame, err := ieee154.DataInit(out)
			if err != nil {
				return fmt.Errorf("init frame: %w", err)
			}

			if dstAddr != "" || srcAddr != "" {
				dstBytes, err := decodeHexArg(dstAddr)
				if err != nil {
					return fmt.Errorf("decode --dst-addr: %w", err)
				}
				srcBytes, err := decodeHexArg(srcAddr)
				if err != nil {
					return fmt.Errorf("decode --src-addr: %w", err)
				}
				var dstPANPtr *uint16
				if dstPAN != 0 {
					dstPANPtr = &dstPAN
				}
				if err := frame.SetAddr(dstPANPtr, dstBytes, nil, srcBytes); err != nil {
					return fmt.Errorf("set frame addressing: %w", err)
				}
			}

			if err := sixlowpan.Compress(pkt, frame, ctxTable, payload); err != nil {
				return fmt.Errorf("compress: %w", err)
			}

			rawFrame, err := frame.RawBuffer()
			if err != nil {
				return fmt.Errorf("read built frame: %w", err)
			}

			saved := len(raw) - len(rawFrame)
			fmt.Println(renderOutcome(true, fmt.Sprintf("compressed %d -> %d bytes (saved %d)", len(raw), len(rawFrame), saved)))
			fmt.Println(hex.EncodeToString(rawFrame))
			return nil
		},
	}

	cmd.Flags().StringVar(&dstAddr, "dst-addr", "", "802.15.4 destination address, hex")
	cmd.Flags().StringVar(&srcAddr, "src-addr", "", "802.15.4 source address, hex")
	cmd.Flags().Uint16Var(&dstPAN, "dst-pan", 0, "802.15.4 destination PAN ID")

	return cmd
}

// --- iphc decompress ---

func iphcDecompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompress <hex-frame>",
		Short: "Decompress an 802.15.4 data frame's IPHC header into an IPv6 packet",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := decodeHexArg(args[0])
			if err != nil {
				return err
			}

			ctxTable, err := loadContextTable()
			if err != nil {
				return err
			}

			in := buffer.New(raw)
			frame, err := ieee154.ParseFrame(in, 0)
			if err != nil {
				return fmt.Errorf("parse frame: %w", err)
			}

			out := buffer.New(make([]byte, sixlowpan.IPv6HeaderLen+ieee154.MaxFrameLength))
			if _, err := sixlowpan.Decompress(frame, ctxTable, out); err != nil {
				return fmt.Errorf("decompress: %w", err)
			}

			fmt.Println(renderOutcome(true, fmt.Sprintf("decompressed %d -> %d bytes", len(raw), out.Cursor())))
			fmt.Println(hex.EncodeToString(out.Bytes()))
			return nil
		},
	}
}

// loadContextTable builds a sixlowpan.ContextTable from --config, or the
// reserved-only default table if no --config was given.
func loadContextTable() (*sixlowpan.ContextTable, error) {
	ctxTable := sixlowpan.NewContextTable()
	if configPath == "" {
		return ctxTable, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, ce := range cfg.ContextTable {
		prefix, err := ce.DecodePrefix()
		if err != nil {
			return nil, err
		}
		if err := ctxTable.Put(ce.ID, prefix); err != nil {
			return nil, fmt.Errorf("install context %d: %w", ce.ID, err)
		}
	}
	return ctxTable, nil
}
