// Package metrics exports sender and receiver counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mob852/framecast/internal/domain"
)

const namespace = "framecast"

// Prometheus implements ports.SenderMetrics and ports.ReceiverMetrics on its
// own registry, so several instances can coexist in one process.
type Prometheus struct {
	registry *prometheus.Registry

	framesSent     prometheus.Counter
	chunksSent     prometheus.Counter
	envelopeBytes  prometheus.Histogram
	encodeFailures prometheus.Counter

	datagrams     prometheus.Counter
	datagramBytes prometheus.Counter
	rejected      *prometheus.CounterVec
	slots         *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	latency       prometheus.Histogram
	liveSlots     prometheus.Gauge
}

// NewPrometheus registers every collector on a fresh registry. session is
// attached as a constant label.
func NewPrometheus(session string) *Prometheus {
	labels := prometheus.Labels{"session": session}
	reg := prometheus.NewRegistry()
	m := &Prometheus{
		registry: reg,
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sender", Name: "frames_total",
			Help: "Frames handed to the transport.", ConstLabels: labels,
		}),
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sender", Name: "chunks_total",
			Help: "Chunk datagrams sent.", ConstLabels: labels,
		}),
		envelopeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sender", Name: "envelope_bytes",
			Help:        "Serialized envelope size.",
			Buckets:     prometheus.ExponentialBuckets(16*1024, 2, 10),
			ConstLabels: labels,
		}),
		encodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sender", Name: "encode_failures_total",
			Help: "Frames skipped because they could not be encoded.", ConstLabels: labels,
		}),
		datagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "datagrams_total",
			Help: "Datagrams read from the socket.", ConstLabels: labels,
		}),
		datagramBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "datagram_bytes_total",
			Help: "Bytes read from the socket.", ConstLabels: labels,
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "datagrams_rejected_total",
			Help: "Datagrams ignored before or during reassembly.", ConstLabels: labels,
		}, []string{"reason"}),
		slots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "messages_total",
			Help: "Messages that left reassembly, by outcome.", ConstLabels: labels,
		}, []string{"outcome", "reason"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "frames_dropped_total",
			Help: "Verified frames dropped before reaching sinks.", ConstLabels: labels,
		}, []string{"stage"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "frame_latency_seconds",
			Help:        "Capture to delivery latency.",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 12),
			ConstLabels: labels,
		}),
		liveSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "receiver", Name: "live_slots",
			Help: "Messages currently being reassembled.", ConstLabels: labels,
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesSent, m.chunksSent, m.envelopeBytes, m.encodeFailures,
		m.datagrams, m.datagramBytes, m.rejected, m.slots, m.dropped, m.latency, m.liveSlots,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Prometheus) FrameSent(chunks int, envelopeBytes int) {
	m.framesSent.Inc()
	m.chunksSent.Add(float64(chunks))
	m.envelopeBytes.Observe(float64(envelopeBytes))
}

func (m *Prometheus) EncodeFailed() { m.encodeFailures.Inc() }

func (m *Prometheus) DatagramReceived(bytes int) {
	m.datagrams.Inc()
	m.datagramBytes.Add(float64(bytes))
}

func (m *Prometheus) DatagramRejected(reason domain.Reason) {
	m.rejected.WithLabelValues(string(reason)).Inc()
}

func (m *Prometheus) SlotFinished(state domain.SlotState, reason domain.Reason) {
	m.slots.WithLabelValues(state.String(), string(reason)).Inc()
}

func (m *Prometheus) FrameDropped(stage string) { m.dropped.WithLabelValues(stage).Inc() }

func (m *Prometheus) FrameLatency(d time.Duration) { m.latency.Observe(d.Seconds()) }

func (m *Prometheus) LiveSlots(n int) { m.liveSlots.Set(float64(n)) }
