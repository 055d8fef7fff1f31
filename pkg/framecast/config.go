package framecast

import (
	"fmt"
	"net"
	"time"

	"github.com/mob852/framecast/internal/adapters/codec"
	"github.com/mob852/framecast/internal/adapters/source"
	"github.com/mob852/framecast/internal/adapters/udp"
	"github.com/mob852/framecast/internal/app"
	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/pkg/wire"
)

// SenderConfig configures a Sender. Zero fields take their defaults.
type SenderConfig struct {
	// Target is the receiver's host:port. Required unless a DatagramWriter
	// is injected with WithDatagramWriter.
	Target string

	FPS       float64
	ChunkSize int

	// ChunkDelay is the gap between datagrams of one frame. Negative sends
	// them back to back.
	ChunkDelay time.Duration

	// ThroughputWindow is how often sending throughput is logged.
	ThroughputWindow time.Duration

	Quality int
	Width   int
	Height  int

	// SourceDir, when set, sends the images in this directory instead of a
	// generated test pattern.
	SourceDir string
	Loop      bool

	// Frames stops the sender after this many frames. Zero means unlimited.
	Frames int

	// StateDir holds status.json with the next sequence number. Empty
	// disables persistence and every run starts at sequence 0.
	StateDir string

	SendBuffer int

	// SessionID tags logs, metrics and state. A random UUID if empty.
	SessionID string
}

// SetDefaults fills zero fields.
func (c *SenderConfig) SetDefaults() {
	if c.FPS <= 0 {
		c.FPS = app.DefaultFPS
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = app.DefaultMaxChunkSize
	}
	if c.ChunkDelay == 0 {
		c.ChunkDelay = app.DefaultChunkDelay
	} else if c.ChunkDelay < 0 {
		c.ChunkDelay = 0
	}
	if c.ThroughputWindow <= 0 {
		c.ThroughputWindow = app.DefaultWindow
	}
	if c.Quality <= 0 {
		c.Quality = codec.DefaultQuality
	}
	if c.Width <= 0 {
		c.Width = source.DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = source.DefaultHeight
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = udp.DefaultSendBuffer
	}
}

// Validate checks the configuration for errors.
func (c *SenderConfig) Validate(haveWriter bool) error {
	if c.Target == "" && !haveWriter {
		return fmt.Errorf("%w: target is required", domain.ErrInvalidConfig)
	}
	if c.Target != "" {
		if _, _, err := net.SplitHostPort(c.Target); err != nil {
			return fmt.Errorf("%w: target %q: %v", domain.ErrInvalidConfig, c.Target, err)
		}
	}
	if c.ChunkSize > wire.MaxChunkPayload {
		return fmt.Errorf("%w: chunk size %d exceeds %d", domain.ErrInvalidConfig, c.ChunkSize, wire.MaxChunkPayload)
	}
	if c.Quality > 100 {
		return fmt.Errorf("%w: quality %d out of range", domain.ErrInvalidConfig, c.Quality)
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: negative frame limit", domain.ErrInvalidConfig)
	}
	return nil
}

// ReceiverConfig configures a Receiver. Zero fields take their defaults.
type ReceiverConfig struct {
	// Listen is the UDP address to bind. Required unless a DatagramReader
	// is injected with WithDatagramReader.
	Listen string

	SlotTimeout time.Duration
	MaxSlots    int

	// LateWindow is how many finished sequences are remembered, for up to
	// SlotTimeout each, to drop their stragglers. Negative disables it.
	LateWindow int
	QueueSize  int

	// ExpectedSender, when set, drops datagrams from any other host.
	// "host" matches any port, "host:port" only that port.
	ExpectedSender string

	// Decode runs the JPEG decoder on every frame before sinks see it.
	Decode bool

	// OutputDir, when set, saves every delivered frame there.
	OutputDir string

	// HTTPAddr, when set, serves /health, /stats, /metrics, /frame.jpg and /ws.
	HTTPAddr string

	ReceiveBuffer int

	SessionID string
}

// SetDefaults fills zero fields.
func (c *ReceiverConfig) SetDefaults() {
	if c.SlotTimeout <= 0 {
		c.SlotTimeout = app.DefaultSlotTimeout
	}
	if c.MaxSlots <= 0 {
		c.MaxSlots = app.DefaultMaxSlots
	}
	if c.LateWindow == 0 {
		c.LateWindow = app.DefaultLateWindow
	}
	if c.QueueSize <= 0 {
		c.QueueSize = app.DefaultQueueSize
	}
	if c.ReceiveBuffer <= 0 {
		c.ReceiveBuffer = udp.DefaultReceiveBuffer
	}
}

// Validate checks the configuration for errors.
func (c *ReceiverConfig) Validate(haveReader bool) error {
	if c.Listen == "" && !haveReader {
		return fmt.Errorf("%w: listen address is required", domain.ErrInvalidConfig)
	}
	if c.ExpectedSender != "" {
		if _, err := udp.ResolveSender(c.ExpectedSender); err != nil {
			return fmt.Errorf("%w: expected sender: %v", domain.ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *ReceiverConfig) reassembly() app.ReassemblerConfig {
	return app.ReassemblerConfig{
		SlotTimeout: c.SlotTimeout,
		MaxSlots:    c.MaxSlots,
		LateWindow:  c.LateWindow,
	}
}
