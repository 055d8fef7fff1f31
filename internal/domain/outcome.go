package domain

// SlotState is the reassembly state of one sequence number.
type SlotState int

const (
	// SlotAbsent means no slot exists for the sequence number.
	SlotAbsent SlotState = iota
	// SlotCollecting means chunks or metadata have arrived but the message is incomplete.
	SlotCollecting
	// SlotDelivered means the message was reassembled and verified.
	SlotDelivered
	// SlotCorrupt means the message was complete but failed verification.
	SlotCorrupt
	// SlotExpired means the slot was dropped by timeout or capacity eviction.
	SlotExpired
)

// String returns a human-readable representation of the state.
func (s SlotState) String() string {
	switch s {
	case SlotAbsent:
		return "absent"
	case SlotCollecting:
		return "collecting"
	case SlotDelivered:
		return "delivered"
	case SlotCorrupt:
		return "corrupt"
	case SlotExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state removes the slot.
func (s SlotState) Terminal() bool {
	return s == SlotDelivered || s == SlotCorrupt || s == SlotExpired
}

// Reason qualifies a non-delivered outcome.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonDuplicate Reason = "duplicate"
	ReasonMalformed Reason = "malformed"
	ReasonLate      Reason = "late"
	ReasonChecksum  Reason = "checksum"
	ReasonSize      Reason = "size"
	ReasonTimeout   Reason = "timeout"
	ReasonEvicted   Reason = "evicted"
	ReasonForeign   Reason = "foreign"
)

// Outcome is the result of feeding one datagram to the reassembler, or of a sweep.
type Outcome struct {
	Sequence uint64
	State    SlotState
	Reason   Reason

	// Envelope is set only when State is SlotDelivered.
	Envelope []byte
}
