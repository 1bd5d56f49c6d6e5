// Package commands implements the lowpanctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// outputFormat controls the output format (table or json) of
	// `frame parse`; the other commands ignore it.
	outputFormat string

	// configPath points at the YAML config file backing the ctx subcommands.
	configPath string
)

// rootCmd is the top-level cobra command for lowpanctl.
var rootCmd = &cobra.Command{
	Use:   "lowpanctl",
	Short: "Inspect and build 802.15.4 frames and their 6LoWPAN IPHC compression",
	Long: "lowpanctl parses and builds IEEE 802.15.4 frames, compresses and decompresses " +
		"6LoWPAN IPHC headers, and manages a local context table file — all without a running daemon.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatTable,
		"output format: table, json")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a lowpand config file backing context-table commands")

	rootCmd.AddCommand(frameCmd())
	rootCmd.AddCommand(iphcCmd())
	rootCmd.AddCommand(ctxCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
