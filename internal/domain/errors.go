package domain

import "errors"

// Domain errors represent error conditions in the framecast domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("framecast: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("framecast: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("framecast: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("framecast: invalid configuration")

	// ErrSourceUnavailable is returned when the frame source cannot produce frames.
	// It ends the send loop.
	ErrSourceUnavailable = errors.New("framecast: frame source unavailable")

	// ErrTransport is returned when a datagram cannot be written. It ends the session.
	ErrTransport = errors.New("framecast: transport failure")

	// ErrEncode marks a frame the codec could not compress. The frame is skipped.
	ErrEncode = errors.New("framecast: encode failure")
)
