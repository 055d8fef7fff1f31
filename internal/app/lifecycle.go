package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

// ShutdownTimeout bounds how long Stop waits for the transfer loop to return.
const ShutdownTimeout = 30 * time.Second

// State is where a sender or receiver run currently is.
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
		return "Unknown"
	}
}

// next lists the states each state may move to.
var next = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// idle reports whether no run is in progress.
func (s State) idle() bool {
	return s == StateStopped || s == StateCrashed
}

// Lifecycle guards Start and Stop of one framecast endpoint and tracks the
// goroutine that moves its frames.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       ports.Logger
	eventEmitter EventEmitter
}

// EventEmitter observes state changes, e.g. to feed the state gauge.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle returns a Lifecycle in StateStopped. emitter may be nil.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateStopped,
		logger:       logger,
		eventEmitter: emitter,
	}
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to to. A rejected move leaves the state untouched and
// returns ErrNotRunning when the endpoint is idle, ErrAlreadyRunning otherwise.
func (l *Lifecycle) TransitionTo(to State, reason string) error {
	l.mu.Lock()
	from := l.state
	if !slices.Contains(next[from], to) {
		l.mu.Unlock()
		if from.idle() {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = to
	l.mu.Unlock()

	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(from, to, reason)
	}
	l.logger.Info("state transition",
		ports.String("from", from.String()),
		ports.String("to", to.String()),
		ports.String("reason", reason),
	)
	return nil
}

// CanStart reports whether the endpoint is idle.
func (l *Lifecycle) CanStart() bool {
	return l.State().idle()
}

func (l *Lifecycle) CanStop() bool {
	s := l.State()
	return s == StateRunning || s == StateStarting
}

// SetCancel records the function that cancels the transfer loop's context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel cancels the transfer loop's context, if one was recorded.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn as a tracked worker. When fn returns, the lifecycle moves to
// Crashed if fn failed, or to Stopped otherwise, unless Stop already owns the
// transition.
func (l *Lifecycle) Go(fn func() error) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := fn()
		l.finish(err)
	}()
}

func (l *Lifecycle) finish(err error) {
	switch l.State() {
	case StateStopping, StateStopped, StateCrashed:
		return
	}
	// A canceled or expired parent context is a requested stop, not a crash.
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		l.logger.Error("worker failed", ports.Err(err))
		_ = l.TransitionTo(StateCrashed, err.Error())
		return
	}
	if l.TransitionTo(StateStopping, "worker finished") == nil {
		_ = l.TransitionTo(StateStopped, "worker finished")
	}
}

// WaitWithTimeout blocks until every goroutine started by Go has returned,
// or fails with ErrShutdownTimeout once timeout elapses.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("transfer loop did not stop in time",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
