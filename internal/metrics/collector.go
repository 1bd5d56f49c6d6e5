// Package lowpanmetrics exposes Prometheus counters, a gauge, and a
// histogram for the frame builder/parser, IE engine, and IPHC codec.
package lowpanmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "lowpan154"
)

// Label names.
const (
	labelFrameType = "frame_type"
	labelIEClass   = "ie_class"
	labelOutcome   = "outcome"
)

// Outcome label values for CompressionsTotal/DecompressionsTotal.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// IE class label values for IEsAppended/IEsParsed.
const (
	IEClassHeader  = "header"
	IEClassPayload = "payload"
	IEClassNested  = "nested"
)

// Collector holds all 6LoWPAN/802.15.4 Prometheus metrics.
type Collector struct {
	// FramesBuilt counts frames built via ieee154.Frame constructors,
	// labeled by frame type (beacon/data/ack/command).
	FramesBuilt *prometheus.CounterVec

	// FramesParsed counts frames parsed from a received byte buffer,
	// labeled by frame type.
	FramesParsed *prometheus.CounterVec

	// IEsAppended counts Information Elements appended while building a
	// frame, labeled by IE class (header/payload/nested).
	IEsAppended *prometheus.CounterVec

	// IEsParsed counts Information Elements walked while parsing a frame,
	// labeled by IE class.
	IEsParsed *prometheus.CounterVec

	// CompressionsTotal counts IPHC compression attempts, labeled by
	// outcome (ok/error).
	CompressionsTotal *prometheus.CounterVec

	// DecompressionsTotal counts IPHC decompression attempts, labeled by
	// outcome (ok/error).
	DecompressionsTotal *prometheus.CounterVec

	// CompressedBytesSaved records, per successful compression, the
	// difference between the uncompressed 40-byte IPv6 header and the
	// emitted IPHC byte count.
	CompressedBytesSaved prometheus.Histogram

	// ContextTableSize reports the number of occupied context table
	// slots (1-15; slot 0 is always present and excluded).
	ContextTableSize prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.FramesBuilt,
		c.FramesParsed,
		c.IEsAppended,
		c.IEsParsed,
		c.CompressionsTotal,
		c.DecompressionsTotal,
		c.CompressedBytesSaved,
		c.ContextTableSize,
	)

	return c
}

func newMetrics() *Collector {
	frameLabels := []string{labelFrameType}
	ieLabels := []string{labelIEClass}
	outcomeLabels := []string{labelOutcome}

	return &Collector{
		FramesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_built_total",
			Help:      "Total 802.15.4 frames built, by frame type.",
		}, frameLabels),

		FramesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_parsed_total",
			Help:      "Total 802.15.4 frames parsed, by frame type.",
		}, frameLabels),

		IEsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ies_appended_total",
			Help:      "Total Information Elements appended while building a frame, by IE class.",
		}, ieLabels),

		IEsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ies_parsed_total",
			Help:      "Total Information Elements walked while parsing a frame, by IE class.",
		}, ieLabels),

		CompressionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressions_total",
			Help:      "Total IPHC compression attempts, by outcome.",
		}, outcomeLabels),

		DecompressionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decompressions_total",
			Help:      "Total IPHC decompression attempts, by outcome.",
		}, outcomeLabels),

		CompressedBytesSaved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compressed_bytes_saved",
			Help:      "Bytes saved per successful compression versus the uncompressed 40-byte IPv6 header.",
			Buckets:   []float64{0, 4, 8, 12, 16, 20, 24, 28, 32, 36, 40},
		}),

		ContextTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "context_table_size",
			Help:      "Number of occupied context table slots (excluding the reserved slot 0).",
		}),
	}
}

// -------------------------------------------------------------------------
// Frame / IE counters
// -------------------------------------------------------------------------

// IncFramesBuilt increments the built-frames counter for frameType.
func (c *Collector) IncFramesBuilt(frameType string) {
	c.FramesBuilt.WithLabelValues(frameType).Inc()
}

// IncFramesParsed increments the parsed-frames counter for frameType.
func (c *Collector) IncFramesParsed(frameType string) {
	c.FramesParsed.WithLabelValues(frameType).Inc()
}

// IncIEsAppended increments the appended-IEs counter for ieClass.
func (c *Collector) IncIEsAppended(ieClass string) {
	c.IEsAppended.WithLabelValues(ieClass).Inc()
}

// IncIEsParsed increments the parsed-IEs counter for ieClass.
func (c *Collector) IncIEsParsed(ieClass string) {
	c.IEsParsed.WithLabelValues(ieClass).Inc()
}

// -------------------------------------------------------------------------
// IPHC codec counters
// -------------------------------------------------------------------------

// RecordCompression increments CompressionsTotal for outcome and, on a
// successful compression, observes the bytes saved versus the uncompressed
// IPv6HeaderLen (40).
func (c *Collector) RecordCompression(outcome string, uncompressedLen, compressedLen int) {
	c.CompressionsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		saved := uncompressedLen - compressedLen
		if saved < 0 {
			saved = 0
		}
		c.CompressedBytesSaved.Observe(float64(saved))
	}
}

// RecordDecompression increments DecompressionsTotal for outcome.
func (c *Collector) RecordDecompression(outcome string) {
	c.DecompressionsTotal.WithLabelValues(outcome).Inc()
}

// SetContextTableSize sets the ContextTableSize gauge.
func (c *Collector) SetContextTableSize(occupied int) {
	c.ContextTableSize.Set(float64(occupied))
}
