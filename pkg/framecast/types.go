package framecast

import (
	"context"
	"fmt"
	"time"

	"github.com/mob852/framecast/internal/app"
	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

// Logger is the interface for structured logging.
type Logger = ports.Logger

// LogField represents a structured log field.
type LogField = ports.Field

// Re-exported ports so callers can plug in their own components.
type (
	FrameSource     = ports.FrameSource
	Codec           = ports.Codec
	DatagramWriter  = ports.DatagramWriter
	DatagramReader  = ports.DatagramReader
	FrameSink       = ports.FrameSink
	SenderMetrics   = ports.SenderMetrics
	ReceiverMetrics = ports.ReceiverMetrics
	DeliveredFrame  = domain.DeliveredFrame
	RawFrame        = domain.RawFrame
	SenderStats     = app.SenderStats
	ReceiverStats   = app.ReceiverStats
)

// Errors returned by Start and Stop.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)

// State is the lifecycle state of a sender or receiver.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Plugin extends a sender or receiver with optional behavior.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops. Embed it and override what you need.
type BasePlugin struct{}

func (BasePlugin) Name() string                                  { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }

// Role says which side a plugin is attached to.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// PacingControl adjusts a running sender.
type PacingControl interface {
	SetPacing(fps float64, chunkDelay time.Duration)
	Pacing() (fps float64, chunkDelay time.Duration)
}

// PluginConfig is what a plugin learns about its host on Initialize.
type PluginConfig struct {
	Role      Role
	SessionID string
	Logger    Logger

	// StateDir is the sender state directory. Empty on receivers.
	StateDir string

	// OutputDir is where the receiver saves frames. Empty on senders or
	// when frames are not saved.
	OutputDir string

	// Pacing is nil on receivers.
	Pacing PacingControl
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FrameSentEvent is emitted after every datagram of a frame was written.
type FrameSentEvent struct {
	Sequence      uint64
	Chunks        int
	EnvelopeBytes int
	Duration      time.Duration
}

// FrameSkippedEvent is emitted when a frame could not be encoded or was too
// large to send. No sequence number is consumed.
type FrameSkippedEvent struct {
	Error error
}

// FrameDeliveredEvent is emitted for every verified frame handed to sinks.
type FrameDeliveredEvent struct {
	Sequence uint64
	Bytes    int
	Latency  time.Duration
}

// FrameLostEvent is emitted when a receiver gives up on a sequence number.
type FrameLostEvent struct {
	Sequence uint64
	Corrupt  bool
	Reason   string
}

// EventHandler receives notifications from senders and receivers.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnFrameSent(FrameSentEvent)
	OnFrameSkipped(FrameSkippedEvent)
	OnFrameDelivered(FrameDeliveredEvent)
	OnFrameLost(FrameLostEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// implement only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)       {}
func (BaseEventHandler) OnFrameSent(FrameSentEvent)           {}
func (BaseEventHandler) OnFrameSkipped(FrameSkippedEvent)     {}
func (BaseEventHandler) OnFrameDelivered(FrameDeliveredEvent) {}
func (BaseEventHandler) OnFrameLost(FrameLostEvent)           {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnFrameSent(seq uint64, chunks, envelopeBytes int, d time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnFrameSent(FrameSentEvent{Sequence: seq, Chunks: chunks, EnvelopeBytes: envelopeBytes, Duration: d})
}

func (e *eventEmitterWrapper) OnFrameSkipped(err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnFrameSkipped(FrameSkippedEvent{Error: err})
}

func (e *eventEmitterWrapper) onFinish(o domain.Outcome) {
	if e.handler == nil {
		return
	}
	switch o.State {
	case domain.SlotCorrupt, domain.SlotExpired:
		e.handler.OnFrameLost(FrameLostEvent{
			Sequence: o.Sequence,
			Corrupt:  o.State == domain.SlotCorrupt,
			Reason:   string(o.Reason),
		})
	}
}

// eventSink reports deliveries to the handler. It is registered after every
// other sink.
type eventSink struct {
	handler EventHandler
}

func (s eventSink) Name() string { return "events" }

func (s eventSink) Consume(_ context.Context, f domain.DeliveredFrame) error {
	s.handler.OnFrameDelivered(FrameDeliveredEvent{
		Sequence: f.Message.Sequence,
		Bytes:    len(f.Message.Payload),
		Latency:  f.Latency(),
	})
	return nil
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	minimums := CompatibilityMatrix()
	for name, version := range ModuleVersions() {
		if !isVersionCompatible(version, minimums[name]) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, version, minimums[name])
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion, both in
// "major.minor.patch" form.
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
