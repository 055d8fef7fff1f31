package domain

import (
	"image"
	"math"
	"time"

	"github.com/mob852/framecast/pkg/wire"
)

// RawFrame is an uncompressed image as produced by a frame source.
type RawFrame struct {
	Image      image.Image
	CapturedAt time.Time
}

// FrameMessage is the logical unit sent per captured frame.
type FrameMessage struct {
	// Sequence is unique per sender session.
	Sequence uint64

	// CaptureTimestamp is when the source produced the frame.
	CaptureTimestamp time.Time

	// LocalSendTime is a human-readable snapshot of the sender clock.
	LocalSendTime string

	// Payload is the compressed frame from the codec.
	Payload []byte
}

// NewFrameMessage stamps payload with seq and the local send time.
func NewFrameMessage(seq uint64, captured, now time.Time, payload []byte) FrameMessage {
	return FrameMessage{
		Sequence:         seq,
		CaptureTimestamp: captured,
		LocalSendTime:    now.Format(wire.LocalTimeLayout),
		Payload:          payload,
	}
}

// ToEnvelope converts the message to its serialized form.
func (m FrameMessage) ToEnvelope() wire.Envelope {
	var ts float64
	if !m.CaptureTimestamp.IsZero() {
		ts = float64(m.CaptureTimestamp.Unix()) + float64(m.CaptureTimestamp.Nanosecond())/1e9
	}
	return wire.Envelope{
		Timestamp: ts,
		Frame:     m.Payload,
		LocalTime: m.LocalSendTime,
		Sequence:  m.Sequence,
	}
}

// FrameFromEnvelope converts a decoded envelope back into a message.
func FrameFromEnvelope(e wire.Envelope) FrameMessage {
	var captured time.Time
	if e.Timestamp > 0 {
		sec, frac := math.Modf(e.Timestamp)
		captured = time.Unix(int64(sec), int64(frac*1e9))
	}
	return FrameMessage{
		Sequence:         e.Sequence,
		CaptureTimestamp: captured,
		LocalSendTime:    e.LocalTime,
		Payload:          e.Frame,
	}
}

// DeliveredFrame is a reassembled, verified frame handed to sinks.
type DeliveredFrame struct {
	Message    FrameMessage
	ReceivedAt time.Time

	// Image is set when the receiver decodes payloads.
	Image image.Image
}

// Latency returns the capture-to-delivery delay, or zero if unknown.
func (f DeliveredFrame) Latency() time.Duration {
	if f.Message.CaptureTimestamp.IsZero() {
		return 0
	}
	return f.ReceivedAt.Sub(f.Message.CaptureTimestamp)
}
