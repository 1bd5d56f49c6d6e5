package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mistlib/lowpan154/internal/config"
)

var errConfigRequired = errors.New("--config is required for context-table commands")

func ctxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctx",
		Short: "Inspect and edit a lowpand config file's context table",
	}
	cmd.AddCommand(ctxListCmd())
	cmd.AddCommand(ctxPutCmd())
	cmd.AddCommand(ctxRemoveCmd())
	return cmd
}

// --- ctx list ---

func ctxListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the context table entries in --config",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfigForCtx()
			if err != nil {
				return err
			}
			fmt.Print(renderContextTable(cfg.ContextTable))
			return nil
		},
	}
}

func renderContextTable(entries []config.ContextEntry) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\n", e.ID, e.Prefix)
	}
	_ = w.Flush()
	return buf.String()
}

// --- ctx put ---

func ctxPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <id> <hex-prefix>",
		Short: "Insert or replace a context table entry in --config",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			if _, err := hex.DecodeString(strings.TrimPrefix(args[1], "0x")); err != nil {
				return fmt.Errorf("decode prefix: %w", err)
			}

			entry := config.ContextEntry{ID: uint8(id), Prefix: strings.TrimPrefix(args[1], "0x")}
			if _, err := entry.DecodePrefix(); err != nil {
				return err
			}

			doc, err := loadConfigDocForCtx()
			if err != nil {
				return err
			}
			doc.ContextTable = upsertContext(doc.ContextTable, entry)
			return writeConfigDoc(doc)
		},
	}
}

func upsertContext(entries []config.ContextEntry, entry config.ContextEntry) []config.ContextEntry {
	for i, e := range entries {
		if e.ID == entry.ID {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

// --- ctx remove ---

func ctxRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a context table entry from --config",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}

			doc, err := loadConfigDocForCtx()
			if err != nil {
				return err
			}

			out := doc.ContextTable[:0]
			for _, e := range doc.ContextTable {
				if e.ID != uint8(id) {
					out = append(out, e)
				}
			}
			doc.ContextTable = out

			return writeConfigDoc(doc)
		},
	}
}

// --- shared config I/O ---

func loadConfigForCtx() (*config.Config, error) {
	if configPath == "" {
		return nil, errConfigRequired
	}
	return config.Load(configPath)
}

// loadConfigDocForCtx loads the raw config for mutation, tolerating a
// nonexistent file by starting from defaults (ctx put then creates it).
func loadConfigDocForCtx() (*config.Config, error) {
	if configPath == "" {
		return nil, errConfigRequired
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func writeConfigDoc(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
