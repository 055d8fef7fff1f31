// Package framecast streams video frames over UDP.
//
// This package offers blocking helpers on top of pkg/framecast for programs
// that just want to run a sender or receiver until a context ends:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err := framecast.Send(ctx, fc.SenderConfig{Target: "10.0.0.5:12346", FPS: 15})
//
// Use pkg/framecast directly for fine-grained control over the lifecycle.
package framecast

import (
	"context"
	"errors"
	"fmt"

	fc "github.com/mob852/framecast/pkg/framecast"
)

// ErrCrashed is returned when a sender or receiver stopped on an
// unrecoverable error.
var ErrCrashed = errors.New("framecast: crashed")

// Runner is implemented by *fc.Sender and *fc.Receiver.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error
	Done() <-chan struct{}
	Status() fc.State
}

// Run starts r and blocks until it finishes on its own or ctx is cancelled,
// then stops it.
func Run(ctx context.Context, r Runner) error {
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-r.Done():
	}

	if err := r.Stop(); err != nil && !errors.Is(err, fc.ErrNotRunning) {
		return fmt.Errorf("stop: %w", err)
	}
	if r.Status() == fc.StateCrashed {
		return ErrCrashed
	}
	return nil
}

// Send runs a sender with cfg until its source is exhausted or ctx ends.
func Send(ctx context.Context, cfg fc.SenderConfig, opts ...fc.Option) error {
	s, err := fc.NewSender(cfg, opts...)
	if err != nil {
		return err
	}
	return Run(ctx, s)
}

// Receive runs a receiver with cfg until ctx ends.
func Receive(ctx context.Context, cfg fc.ReceiverConfig, opts ...fc.Option) error {
	r, err := fc.NewReceiver(cfg, opts...)
	if err != nil {
		return err
	}
	return Run(ctx, r)
}
