package ports

import (
	"time"

	"github.com/mob852/framecast/internal/domain"
)

// SenderMetrics records send-side events.
type SenderMetrics interface {
	FrameSent(chunks int, envelopeBytes int)
	EncodeFailed()
}

// ReceiverMetrics records receive-side events.
type ReceiverMetrics interface {
	DatagramReceived(bytes int)
	DatagramRejected(reason domain.Reason)
	SlotFinished(state domain.SlotState, reason domain.Reason)
	FrameDropped(stage string)
	FrameLatency(d time.Duration)
	LiveSlots(n int)
}

// NoopMetrics implements both metrics ports by discarding everything.
type NoopMetrics struct{}

func (NoopMetrics) FrameSent(int, int) {}
func (NoopMetrics) EncodeFailed() {}
func (NoopMetrics) DatagramReceived(int) {}
func (NoopMetrics) DatagramRejected(domain.Reason) {}
func (NoopMetrics) SlotFinished(domain.SlotState, domain.Reason) {}
func (NoopMetrics) FrameDropped(string) {}
func (NoopMetrics) FrameLatency(time.Duration) {}
func (NoopMetrics) LiveSlots(int) {}
