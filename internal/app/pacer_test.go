package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mob852/framecast/internal/domain"
)

func TestPacer_ChunkCadence(t *testing.T) {
	w := &recordingWriter{}
	p := NewPacer(w, 0, 2*time.Millisecond, time.Second)

	start := time.Now()
	for i := 0; i < 6; i++ {
		if err := p.Transmit(context.Background(), []byte{byte(i)}); err != nil {
			t.Fatalf("Transmit() error = %v", err)
		}
	}
	// First datagram is immediate, the other five wait one interval each.
	if elapsed := time.Since(start); elapsed < 9*time.Millisecond {
		t.Errorf("6 datagrams took %v, want >= ~10ms", elapsed)
	}
	if got := len(w.Datagrams()); got != 6 {
		t.Errorf("wrote %d datagrams, want 6", got)
	}
}

func TestPacer_FrameCadence(t *testing.T) {
	p := NewPacer(&recordingWriter{}, 100, 0, time.Second)

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := p.WaitFrame(context.Background()); err != nil {
			t.Fatalf("WaitFrame() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("4 frames at 100 fps took %v, want >= ~30ms", elapsed)
	}
}

func TestPacer_Unpaced(t *testing.T) {
	p := NewPacer(&recordingWriter{}, 0, 0, time.Second)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		_ = p.WaitFrame(context.Background())
		_ = p.Transmit(context.Background(), []byte{1})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unpaced loop took %v", elapsed)
	}
}

func TestPacer_WaitCanceled(t *testing.T) {
	p := NewPacer(&recordingWriter{}, 0.5, 0, time.Second)
	_ = p.WaitFrame(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := p.WaitFrame(ctx); err == nil {
		t.Fatal("WaitFrame() should fail when the context ends before the next frame")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("canceled wait took %v", elapsed)
	}
}

func TestPacer_TransmitWrapsTransportError(t *testing.T) {
	w := &recordingWriter{failAfter: 1}
	p := NewPacer(w, 0, 0, time.Second)

	if err := p.Transmit(context.Background(), []byte{1}); err != nil {
		t.Fatalf("first Transmit() error = %v", err)
	}
	err := p.Transmit(context.Background(), []byte{2})
	if !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Transmit() error = %v, want ErrTransport", err)
	}
}

func TestPacer_SetPacing(t *testing.T) {
	p := NewPacer(&recordingWriter{}, 30, time.Millisecond, time.Second)
	p.SetPacing(60, 2*time.Millisecond)

	fps, delay := p.Pacing()
	if fps != 60 || delay != 2*time.Millisecond {
		t.Errorf("Pacing() = %v, %v", fps, delay)
	}
}

func TestThroughput_Window(t *testing.T) {
	tp := NewThroughput(time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tp.now = func() time.Time { return now }

	for i := 0; i < 30; i++ {
		if _, ok := tp.Record(3); ok {
			t.Fatalf("window closed early at frame %d", i)
		}
		now = now.Add(time.Second / 30)
	}
	now = now.Add(time.Millisecond)
	snap, ok := tp.Record(5)
	if !ok {
		t.Fatal("window did not close after one second")
	}
	if snap.Frames != 31 || snap.Chunks != 95 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.FPS < 30 || snap.FPS > 32 {
		t.Errorf("FPS = %v, want ~31", snap.FPS)
	}
	if tp.Last() != snap {
		t.Error("Last() does not match the closed window")
	}
}

func TestLatencyWindow(t *testing.T) {
	w := NewLatencyWindow(3)
	if s := w.Snapshot(); s.Samples != 0 {
		t.Errorf("empty snapshot = %+v", s)
	}

	for _, ms := range []int{10, 20, 30, 40} {
		w.Add(time.Duration(ms) * time.Millisecond)
	}
	s := w.Snapshot()
	if s.Samples != 3 || s.Mean != 30*time.Millisecond || s.Max != 40*time.Millisecond || s.Last != 40*time.Millisecond {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestBackoff_SleepCanceled(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if b.Sleep(ctx) {
		t.Error("Sleep() = true on canceled context")
	}
}

func TestBackoff_Grows(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)
	for i := 0; i < 4; i++ {
		b.Sleep(context.Background())
	}
	if b.Current() != 4*time.Millisecond {
		t.Errorf("Current() = %v, want capped at 4ms", b.Current())
	}
	b.Reset()
	if b.Current() != time.Millisecond {
		t.Errorf("Current() after Reset = %v", b.Current())
	}
}
