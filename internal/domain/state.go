package domain

import "time"

// State is the sender state persisted across restarts.
type State struct {
	// NextSequence is the first sequence number the next session may use.
	NextSequence uint64 `json:"next_sequence"`

	// SessionID identifies the sender run that last saved the state.
	SessionID string `json:"session_id,omitempty"`

	// FramesSent is the lifetime count of frames handed to the transport.
	FramesSent uint64 `json:"frames_sent"`

	UpdatedAt time.Time `json:"updated_at"`
}
