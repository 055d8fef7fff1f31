package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) Events() []stateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stateChangeEvent{}, m.events...)
}

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	if l == nil {
		t.Fatal("NewLifecycle returned nil")
	}
	if l.State() != StateStopped {
		t.Errorf("initial state = %v, want StateStopped", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.state.String()
		if got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_TransitionTo(t *testing.T) {
	all := []State{StateStopped, StateStarting, StateRunning, StateStopping, StateCrashed}
	allowed := map[[2]State]bool{
		{StateStopped, StateStarting}:  true,
		{StateStarting, StateRunning}:  true,
		{StateStarting, StateStopping}: true,
		{StateStarting, StateCrashed}:  true,
		{StateRunning, StateStopping}:  true,
		{StateRunning, StateCrashed}:   true,
		{StateStopping, StateStopped}:  true,
		{StateStopping, StateCrashed}:  true,
		{StateCrashed, StateStarting}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				l := NewLifecycle(&mockLogger{}, nil)
				l.state = from

				err := l.TransitionTo(to, "test")

				if allowed[[2]State{from, to}] {
					if err != nil {
						t.Fatalf("TransitionTo() = %v, want nil", err)
					}
					if l.State() != to {
						t.Errorf("state = %v, want %v", l.State(), to)
					}
					return
				}
				want := domain.ErrAlreadyRunning
				if from == StateStopped || from == StateCrashed {
					want = domain.ErrNotRunning
				}
				if err != want {
					t.Errorf("TransitionTo() = %v, want %v", err, want)
				}
				if l.State() != from {
					t.Errorf("state = %v after rejected transition, want %v", l.State(), from)
				}
			})
		}
	}
}

func TestLifecycle_TransitionTo_EmitsEvents(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(&mockLogger{}, emitter)

	_ = l.TransitionTo(StateStarting, "start test")
	_ = l.TransitionTo(StateRunning, "running test")

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	if events[0].previous != StateStopped || events[0].current != StateStarting {
		t.Errorf("event 0: got %v->%v, want Stopped->Starting", events[0].previous, events[0].current)
	}
	if events[1].previous != StateStarting || events[1].current != StateRunning {
		t.Errorf("event 1: got %v->%v, want Starting->Running", events[1].previous, events[1].current)
	}
}

func TestLifecycle_CanStart(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateStopped, true},
		{StateStarting, false},
		{StateRunning, false},
		{StateStopping, false},
		{StateCrashed, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			l := NewLifecycle(&mockLogger{}, nil)
			l.state = tt.state

			got := l.CanStart()
			if got != tt.want {
				t.Errorf("CanStart() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLifecycle_CanStop(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateStopped, false},
		{StateStarting, true},
		{StateRunning, true},
		{StateStopping, false},
		{StateCrashed, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			l := NewLifecycle(&mockLogger{}, nil)
			l.state = tt.state

			got := l.CanStop()
			if got != tt.want {
				t.Errorf("CanStop() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLifecycle_SetCancel_And_Cancel(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	l.SetCancel(cancel)

	select {
	case <-ctx.Done():
		t.Error("context should not be canceled before Cancel()")
	default:
	}

	l.Cancel()

	select {
	case <-ctx.Done():
	default:
		t.Error("context should be canceled after Cancel()")
	}
}

func TestLifecycle_Cancel_NilSafe(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	l.Cancel()
}

func TestLifecycle_Go_WaitsForWorkers(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	_ = l.TransitionTo(StateStarting, "test")
	_ = l.TransitionTo(StateRunning, "test")
	_ = l.TransitionTo(StateStopping, "test")

	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		l.Go(func() error {
			<-release
			return nil
		})
	}
	close(release)

	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
	// Stop owns the transition while stopping.
	if l.State() != StateStopping {
		t.Errorf("state = %v, want Stopping", l.State())
	}
}

func TestLifecycle_Go_WorkerOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want State
	}{
		{"clean exit", nil, StateStopped},
		{"canceled", context.Canceled, StateStopped},
		{"deadline", context.DeadlineExceeded, StateStopped},
		{"failure", domain.ErrTransport, StateCrashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter := &mockEmitter{}
			l := NewLifecycle(&mockLogger{}, emitter)
			_ = l.TransitionTo(StateStarting, "test")
			_ = l.TransitionTo(StateRunning, "test")

			err := tt.err
			l.Go(func() error { return err })

			if err := l.WaitWithTimeout(time.Second); err != nil {
				t.Fatalf("WaitWithTimeout() = %v", err)
			}
			if l.State() != tt.want {
				t.Errorf("state = %v, want %v", l.State(), tt.want)
			}
		})
	}
}

func TestLifecycle_WaitWithTimeout_Timeout(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	_ = l.TransitionTo(StateStarting, "test")
	_ = l.TransitionTo(StateRunning, "test")

	release := make(chan struct{})
	l.Go(func() error {
		<-release
		return nil
	})

	err := l.WaitWithTimeout(10 * time.Millisecond)
	if err != domain.ErrShutdownTimeout {
		t.Errorf("WaitWithTimeout() = %v, want ErrShutdownTimeout", err)
	}

	close(release)
	_ = l.WaitWithTimeout(time.Second)
}

func TestLifecycle_Concurrency(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.State()
				_ = l.CanStart()
				_ = l.CanStop()
			}
		}()
	}

	// Only one goroutine can win Stopped->Starting.
	var started sync.WaitGroup
	wins := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		started.Add(1)
		go func() {
			defer started.Done()
			if l.TransitionTo(StateStarting, "test") == nil {
				wins <- struct{}{}
				_ = l.TransitionTo(StateRunning, "test")
			}
		}()
	}

	wg.Wait()
	started.Wait()
	close(wins)
	if n := len(wins); n != 1 {
		t.Errorf("%d goroutines started the run, want 1", n)
	}
	if l.State() != StateRunning {
		t.Errorf("state = %v, want Running", l.State())
	}
}
