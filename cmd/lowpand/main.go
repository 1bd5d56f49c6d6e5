// lowpand is a batch daemon hosting the 802.15.4 frame codec and IPHC
// compressor/decompressor as a long-running process: it installs a context
// table from configuration, serves Prometheus metrics and a health check,
// and processes length-prefixed records from stdin, writing results to
// stdout.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/config"
	"github.com/mistlib/lowpan154/internal/ieee154"
	lowpanmetrics "github.com/mistlib/lowpan154/internal/metrics"
	"github.com/mistlib/lowpan154/internal/sixlowpan"
	appversion "github.com/mistlib/lowpan154/internal/version"
)

const shutdownTimeout = 10 * time.Second

// mode selects which direction the stdin/stdout pipeline runs.
type mode string

const (
	modeDecompress mode = "decompress"
	modeCompress   mode = "compress"
)

var errUnknownMode = errors.New("lowpand: unknown mode (want compress or decompress)")

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	pipeMode := flag.String("mode", string(modeDecompress), "pipeline direction: compress or decompress")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log, logLevel)

	logger.Info("lowpand starting",
		slog.String("version", appversion.Version),
		slog.String("mode", *pipeMode),
		slog.String("metrics_addr", cfg.Metrics.Addr))

	reg := prometheus.NewRegistry()
	collector := lowpanmetrics.NewCollector(reg)

	ctx, err := installContextTable(cfg, collector)
	if err != nil {
		logger.Error("failed to install context table", slog.String("error", err.Error()))
		return 1
	}

	if err := runDaemon(cfg, mode(*pipeMode), ctx, collector, reg, logger); err != nil {
		logger.Error("lowpand exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("lowpand stopped")
	return 0
}

// installContextTable builds a sixlowpan.ContextTable from cfg.ContextTable
// and records its occupancy in collector.
func installContextTable(cfg *config.Config, collector *lowpanmetrics.Collector) (*sixlowpan.ContextTable, error) {
	ctx := sixlowpan.NewContextTable()
	for _, ce := range cfg.ContextTable {
		prefix, err := ce.DecodePrefix()
		if err != nil {
			return nil, err
		}
		if err := ctx.Put(ce.ID, prefix); err != nil {
			return nil, fmt.Errorf("install context %d: %w", ce.ID, err)
		}
	}
	collector.SetContextTableSize(len(cfg.ContextTable))
	return ctx, nil
}

func runDaemon(
	cfg *config.Config,
	m mode,
	ctxTable *sixlowpan.ContextTable,
	collector *lowpanmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return runWatchdog(gCtx, logger)
	})

	g.Go(func() error {
		defer stop()
		return processStream(os.Stdin, os.Stdout, m, cfg, ctxTable, collector, logger)
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return shutdownServers(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Stream processing — length-prefixed records on stdin/stdout
// -------------------------------------------------------------------------

// processStream reads 2-byte big-endian length-prefixed records from r,
// compresses or decompresses each according to m, and writes a
// length-prefixed result record to w. It returns when r reaches EOF.
func processStream(
	r io.Reader,
	w io.Writer,
	m mode,
	cfg *config.Config,
	ctxTable *sixlowpan.ContextTable,
	collector *lowpanmetrics.Collector,
	logger *slog.Logger,
) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	defer bw.Flush() //nolint:errcheck

	for {
		var length uint16
		if err := binary.Read(br, binary.BigEndian, &length); err != nil {
			if errors.Is(err, io.EOF) {
				return bw.Flush()
			}
			return fmt.Errorf("read record length: %w", err)
		}

		record := make([]byte, length)
		if _, err := io.ReadFull(br, record); err != nil {
			return fmt.Errorf("read record body: %w", err)
		}

		out, err := processRecord(record, m, cfg, ctxTable, collector)
		if err != nil {
			logger.Warn("dropping malformed record", slog.String("error", err.Error()))
			continue
		}

		if err := binary.Write(bw, binary.BigEndian, uint16(len(out))); err != nil {
			return fmt.Errorf("write record length: %w", err)
		}
		if _, err := bw.Write(out); err != nil {
			return fmt.Errorf("write record body: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
	}
}

// processRecord applies the configured pipeline direction to one record.
func processRecord(
	record []byte,
	m mode,
	cfg *config.Config,
	ctxTable *sixlowpan.ContextTable,
	collector *lowpanmetrics.Collector,
) ([]byte, error) {
	switch m {
	case modeDecompress:
		return decompressRecord(record, ctxTable, collector)
	case modeCompress:
		return compressRecord(record, cfg, ctxTable, collector)
	default:
		return nil, fmt.Errorf("%q: %w", m, errUnknownMode)
	}
}

// decompressRecord treats record as a built 802.15.4 data frame and returns
// its reconstructed 40-byte-header IPv6 packet plus payload tail.
func decompressRecord(record []byte, ctxTable *sixlowpan.ContextTable, collector *lowpanmetrics.Collector) ([]byte, error) {
	in := buffer.New(record)
	frame, err := ieee154.ParseFrame(in, 0)
	if err != nil {
		collector.RecordDecompression(lowpanmetrics.OutcomeError)
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	collector.IncFramesParsed("data")

	out := buffer.New(make([]byte, sixlowpan.IPv6HeaderLen+ieee154.MaxFrameLength))
	if _, err := sixlowpan.Decompress(frame, ctxTable, out); err != nil {
		collector.RecordDecompression(lowpanmetrics.OutcomeError)
		return nil, fmt.Errorf("decompress: %w", err)
	}
	collector.RecordDecompression(lowpanmetrics.OutcomeOK)
	return out.Bytes(), nil
}

// compressRecord treats record as an uncompressed 40-byte-header IPv6
// packet and returns an 802.15.4 data frame carrying its IPHC compression,
// addressed using cfg.Frame's local identity.
func compressRecord(record []byte, cfg *config.Config, ctxTable *sixlowpan.ContextTable, collector *lowpanmetrics.Collector) ([]byte, error) {
	in := buffer.New(record)
	pkt, err := sixlowpan.ParseIPv6Packet(in, 0)
	if err != nil {
		collector.RecordCompression(lowpanmetrics.OutcomeError, sixlowpan.IPv6HeaderLen, 0)
		return nil, fmt.Errorf("parse ipv6 packet: %w", err)
	}
	payload, err := pkt.Payload(0, len(record))
	if err != nil {
		collector.RecordCompression(lowpanmetrics.OutcomeError, sixlowpan.IPv6HeaderLen, 0)
		return nil, fmt.Errorf("read ipv6 payload: %w", err)
	}

	extAddr, err := cfg.Frame.DecodeExtendedAddr()
	if err != nil {
		return nil, err
	}

	out := buffer.New(make([]byte, ieee154.MaxFrameLength))
	frame, err := ieee154.DataInit(out)
	if err != nil {
		return nil, fmt.Errorf("init frame: %w", err)
	}
	// This pipeline has no neighbor table to resolve the datagram's
	// destination to an L2 peer, so it addresses the frame to itself
	// (PAN-internal loopback); a real deployment would look the next-hop
	// address up from routing state before calling SetAddr.
	if err := frame.SetAddr(&cfg.Frame.PANID, extAddr[:], &cfg.Frame.PANID, extAddr[:]); err != nil {
		collector.RecordCompression(lowpanmetrics.OutcomeError, sixlowpan.IPv6HeaderLen, 0)
		return nil, fmt.Errorf("set frame addressing: %w", err)
	}

	if err := sixlowpan.Compress(pkt, frame, ctxTable, payload); err != nil {
		collector.RecordCompression(lowpanmetrics.OutcomeError, sixlowpan.IPv6HeaderLen, 0)
		return nil, fmt.Errorf("compress: %w", err)
	}
	collector.IncFramesBuilt("data")

	raw, err := frame.RawBuffer()
	if err != nil {
		return nil, fmt.Errorf("read built frame: %w", err)
	}
	collector.RecordCompression(lowpanmetrics.OutcomeOK, sixlowpan.IPv6HeaderLen, len(raw)-frame.PayloadStart()-len(payload))
	return raw, nil
}

// -------------------------------------------------------------------------
// Systemd integration
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", err.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// HTTP servers
// -------------------------------------------------------------------------

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func shutdownServers(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	notifyStopping(logger)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Config / logging
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLogger(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
