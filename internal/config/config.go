// Package config manages lowpand configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete lowpand configuration.
type Config struct {
	ContextTable []ContextEntry `koanf:"context_table" yaml:"context_table"`
	Metrics      MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Log          LogConfig      `koanf:"log" yaml:"log"`
	Frame        FrameConfig    `koanf:"frame" yaml:"frame"`
}

// ContextEntry declares one 6LoWPAN context table slot to install at
// startup. ID must be in [1,15]; slot 0 is always the reserved link-local
// prefix and cannot be overridden here.
//
// A context is a bare 16-byte address, not a CIDR-style prefix/length pair:
// RFC 6282 context matching always compares a fixed number of bits chosen
// by the operation doing the matching (64 bits for stateful address
// compression), not a per-context configured length.
type ContextEntry struct {
	// ID is the context slot index, 1-15.
	ID uint8 `koanf:"id" yaml:"id"`
	// Prefix is the hex-encoded 16-byte context address, left-padded with
	// zero bytes if shorter.
	Prefix string `koanf:"prefix" yaml:"prefix"`
}

// DecodePrefix parses Prefix as a 16-byte array, left-padding with zeros if
// shorter than 32 hex characters.
func (c ContextEntry) DecodePrefix() ([16]byte, error) {
	var out [16]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(c.Prefix, "0x"))
	if err != nil {
		return out, fmt.Errorf("context_table[%d] prefix %q: %w", c.ID, c.Prefix, err)
	}
	if len(raw) > 16 {
		return out, fmt.Errorf("context_table[%d] prefix %q: %w", c.ID, c.Prefix, ErrInvalidPrefix)
	}
	copy(out[:], raw)
	return out, nil
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr" yaml:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path" yaml:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level" yaml:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format" yaml:"format"`
}

// FrameConfig describes the local 802.15.4 link-layer identity used when
// the daemon builds outgoing frames and synthesizes link-local IIDs.
type FrameConfig struct {
	// PANID is the local PAN identifier.
	PANID uint16 `koanf:"pan_id" yaml:"pan_id"`
	// ShortAddr is the local 16-bit short address, if assigned.
	ShortAddr uint16 `koanf:"short_addr" yaml:"short_addr"`
	// ExtendedAddr is the local 64-bit extended address, hex-encoded
	// (16 characters).
	ExtendedAddr string `koanf:"extended_addr" yaml:"extended_addr"`
}

// DecodeExtendedAddr parses ExtendedAddr as an 8-byte array.
func (fc FrameConfig) DecodeExtendedAddr() ([8]byte, error) {
	var out [8]byte
	if fc.ExtendedAddr == "" {
		return out, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(fc.ExtendedAddr, "0x"))
	if err != nil {
		return out, fmt.Errorf("frame.extended_addr %q: %w", fc.ExtendedAddr, err)
	}
	if len(raw) != 8 {
		return out, fmt.Errorf("frame.extended_addr %q: %w", fc.ExtendedAddr, ErrInvalidExtendedAddr)
	}
	copy(out[:], raw)
	return out, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for lowpand configuration.
// Variables are named LOWPAND_<section>_<key>, e.g., LOWPAND_METRICS_ADDR.
const envPrefix = "LOWPAND_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (LOWPAND_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	LOWPAND_METRICS_ADDR  -> metrics.addr
//	LOWPAND_METRICS_PATH  -> metrics.path
//	LOWPAND_LOG_LEVEL     -> log.level
//	LOWPAND_LOG_FORMAT    -> log.format
//	LOWPAND_FRAME_PAN_ID  -> frame.pan_id
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms LOWPAND_METRICS_ADDR -> metrics.addr.
// Strips the LOWPAND_ prefix, lowercases, and replaces the first _ (the
// section separator) with ., so LOWPAND_FRAME_PAN_ID -> frame.pan_id.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
		"log.level":    defaults.Log.Level,
		"log.format":   defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidContextID indicates a context_table entry used id 0 or an
	// id outside [1,15].
	ErrInvalidContextID = errors.New("context_table id must be in [1,15]")

	// ErrInvalidPrefix indicates a context_table entry's prefix could not
	// be decoded or exceeded 16 bytes.
	ErrInvalidPrefix = errors.New("context_table prefix must decode to at most 16 bytes")

	// ErrDuplicateContextID indicates two context_table entries share an id.
	ErrDuplicateContextID = errors.New("duplicate context_table id")

	// ErrInvalidExtendedAddr indicates frame.extended_addr did not decode
	// to exactly 8 bytes.
	ErrInvalidExtendedAddr = errors.New("frame.extended_addr must be 8 bytes hex-encoded")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if err := validateContextTable(cfg.ContextTable); err != nil {
		return err
	}
	if _, err := cfg.Frame.DecodeExtendedAddr(); err != nil {
		return err
	}
	return nil
}

func validateContextTable(entries []ContextEntry) error {
	seen := make(map[uint8]struct{}, len(entries))

	for i, ce := range entries {
		if ce.ID == 0 || ce.ID > 15 {
			return fmt.Errorf("context_table[%d]: %w", i, ErrInvalidContextID)
		}
		if _, err := ce.DecodePrefix(); err != nil {
			return err
		}
		if _, dup := seen[ce.ID]; dup {
			return fmt.Errorf("context_table[%d] id %d: %w", i, ce.ID, ErrDuplicateContextID)
		}
		seen[ce.ID] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
