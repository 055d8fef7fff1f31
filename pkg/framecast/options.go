package framecast

import (
	"github.com/mob852/framecast/internal/ports"
)

// Metrics is implemented by collectors that serve both sides, such as the
// Prometheus adapter.
type Metrics interface {
	SenderMetrics
	ReceiverMetrics
}

// Option configures optional behavior of a Sender or Receiver. Options that
// only apply to the other side are ignored.
type Option func(*options)

type options struct {
	logger       ports.Logger
	eventHandler EventHandler
	plugins      []Plugin

	source FrameSource
	codec  Codec
	writer DatagramWriter
	reader DatagramReader
	sinks  []FrameSink

	senderMetrics   SenderMetrics
	receiverMetrics ReceiverMetrics
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized on Start.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithFrameSource replaces the test pattern or image directory. The sender
// closes the source when its run ends, so a source serves a single Start.
func WithFrameSource(src FrameSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithCodec replaces the JPEG codec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithDatagramWriter replaces the UDP socket of a sender. Like a frame
// source, it is closed when the run ends.
func WithDatagramWriter(w DatagramWriter) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithDatagramReader replaces the UDP socket of a receiver. It is closed
// when the run ends.
func WithDatagramReader(r DatagramReader) Option {
	return func(o *options) {
		o.reader = r
	}
}

// WithFrameSink adds a sink for delivered frames.
func WithFrameSink(s FrameSink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, s)
	}
}

// WithMetrics routes counters to m instead of the built-in Prometheus
// registry. If m also has a Handler() http.Handler method it serves /metrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.senderMetrics = m
		o.receiverMetrics = m
	}
}
