package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mob852/framecast/internal/domain"
)

// recordingWriter keeps a copy of every datagram.
type recordingWriter struct {
	mu        sync.Mutex
	datagrams [][]byte
	times     []time.Time
	failAfter int
	closed    bool
}

func (w *recordingWriter) WriteDatagram(ctx context.Context, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAfter > 0 && len(w.datagrams) >= w.failAfter {
		return errors.New("sendto: no buffer space available")
	}
	w.datagrams = append(w.datagrams, append([]byte(nil), b...))
	w.times = append(w.times, time.Now())
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) Datagrams() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.datagrams...)
}

// transmitFunc adapts a function to Transmitter.
type transmitFunc func(ctx context.Context, b []byte) error

func (f transmitFunc) Transmit(ctx context.Context, b []byte) error { return f(ctx, b) }

// chanReader serves datagrams pushed onto a channel.
type chanReader struct {
	in        chan []byte
	from      net.Addr
	closeOnce sync.Once
	done      chan struct{}
}

func newChanReader(from net.Addr) *chanReader {
	return &chanReader{in: make(chan []byte, 1024), from: from, done: make(chan struct{})}
}

func (r *chanReader) ReadDatagram(buf []byte) (int, net.Addr, error) {
	select {
	case b := <-r.in:
		return copy(buf, b), r.from, nil
	case <-r.done:
		return 0, nil, net.ErrClosed
	}
}

func (r *chanReader) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5005}
}

func (r *chanReader) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

// sliceSource yields n solid-color frames then io.EOF, or err if set.
type sliceSource struct {
	n      int
	err    error
	served int
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (domain.RawFrame, error) {
	if s.served >= s.n {
		if s.err != nil {
			return domain.RawFrame{}, s.err
		}
		return domain.RawFrame{}, io.EOF
	}
	s.served++
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(0, 0, color.Gray{Y: uint8(s.served)})
	return domain.RawFrame{Image: img, CapturedAt: time.Now()}, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// rawCodec stores the gray pixels verbatim. failOn lists 1-based calls that fail.
type rawCodec struct {
	size   int
	calls  int
	failOn map[int]bool
}

func (c *rawCodec) Encode(img image.Image) ([]byte, error) {
	c.calls++
	if c.failOn[c.calls] {
		return nil, errors.New("encoder rejected frame")
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, errors.New("unsupported image")
	}
	out := append([]byte(nil), g.Pix...)
	for len(out) < c.size {
		out = append(out, byte(len(out)))
	}
	return out, nil
}

func (c *rawCodec) Decode(b []byte) (image.Image, error) {
	if len(b) < 16 {
		return nil, errors.New("short payload")
	}
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	copy(g.Pix, b)
	return g, nil
}

// memoryState is an in-memory StateRepository.
type memoryState struct {
	mu    sync.Mutex
	state domain.State
	saves []domain.State
}

func (m *memoryState) Load(ctx context.Context) (domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memoryState) Save(ctx context.Context, s domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.saves = append(m.saves, s)
	return nil
}

// collectSink records delivered frames.
type collectSink struct {
	mu     sync.Mutex
	frames []domain.DeliveredFrame
	got    chan struct{}
}

func newCollectSink() *collectSink { return &collectSink{got: make(chan struct{}, 1024)} }

func (s *collectSink) Name() string { return "collect" }

func (s *collectSink) Consume(ctx context.Context, f domain.DeliveredFrame) error {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func (s *collectSink) Frames() []domain.DeliveredFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DeliveredFrame(nil), s.frames...)
}
