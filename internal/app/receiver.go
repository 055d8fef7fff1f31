package app

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
	"github.com/mob852/framecast/pkg/wire"
)

// DefaultQueueSize is the number of verified envelopes buffered for sinks.
const DefaultQueueSize = 16

// ReceiverConfig contains configuration for the receive side.
type ReceiverConfig struct {
	Reassembly ReassemblerConfig

	// SweepInterval is how often idle slots are checked. Defaults to a
	// quarter of the slot timeout.
	SweepInterval time.Duration

	// QueueSize bounds envelopes waiting for sinks. When full, new frames
	// are dropped rather than stalling the read loop.
	QueueSize int

	// ExpectedSender, when set, drops datagrams from any other address.
	// A zero port matches any port.
	ExpectedSender *net.UDPAddr

	// DecodeFrames runs the codec on every payload before handing it to sinks.
	DecodeFrames bool

	LatencyWindow int
}

// ReceiverStats is a snapshot of the receive side counters.
type ReceiverStats struct {
	Reassembly      ReassemblerStats `json:"reassembly"`
	Datagrams       uint64           `json:"datagrams"`
	Bytes           uint64           `json:"bytes"`
	Foreign         uint64           `json:"foreign"`
	Undecodable     uint64           `json:"undecodable"`
	ReadErrors      uint64           `json:"read_errors"`
	QueueDrops      uint64           `json:"queue_drops"`
	DecodeFailures  uint64           `json:"decode_failures"`
	SinkErrors      uint64           `json:"sink_errors"`
	FramesDelivered uint64           `json:"frames_delivered"`
	LastSequence    uint64           `json:"last_sequence"`
	Latency         LatencySnapshot  `json:"latency"`
}

type receiverCounters struct {
	datagrams, bytes, foreign, undecodable, readErrors atomic.Uint64
	queueDrops, decodeFailures, sinkErrors, delivered  atomic.Uint64
	lastSequence                                       atomic.Uint64
}

// Receiver reads datagrams, reassembles them and hands verified frames to sinks.
type Receiver struct {
	config  ReceiverConfig
	reader  ports.DatagramReader
	codec   ports.Codec
	sinks   []ports.FrameSink
	metrics ports.ReceiverMetrics
	logger  ports.Logger
	now     func() time.Time

	reasm    *Reassembler
	latency  *LatencyWindow
	counters receiverCounters

	sinksMu sync.RWMutex
}

// NewReceiver creates a receiver. Run takes ownership of reader and closes it
// when it returns. codec is only used when config.DecodeFrames is set.
func NewReceiver(
	config ReceiverConfig,
	reader ports.DatagramReader,
	codec ports.Codec,
	sinks []ports.FrameSink,
	metrics ports.ReceiverMetrics,
	logger ports.Logger,
) (*Receiver, error) {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = config.Reassembly.SlotTimeout / 4
	}
	if config.SweepInterval < time.Millisecond {
		config.SweepInterval = time.Millisecond
	}
	if config.Reassembly.Now == nil {
		config.Reassembly.Now = time.Now
	}

	r := &Receiver{
		config:  config,
		reader:  reader,
		codec:   codec,
		sinks:   sinks,
		metrics: metrics,
		logger:  logger,
		now:     config.Reassembly.Now,
		latency: NewLatencyWindow(config.LatencyWindow),
	}

	rc := config.Reassembly
	userHook := rc.OnFinish
	rc.OnFinish = func(o domain.Outcome) {
		r.onFinish(o)
		if userHook != nil {
			userHook(o)
		}
	}
	reasm, err := NewReassembler(rc)
	if err != nil {
		return nil, err
	}
	r.reasm = reasm
	return r, nil
}

// AddSink registers another sink. Safe to call while running.
func (r *Receiver) AddSink(s ports.FrameSink) {
	r.sinksMu.Lock()
	defer r.sinksMu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Close releases the reader of a receiver whose Run was never called.
func (r *Receiver) Close() error {
	return r.reader.Close()
}

// Run reads until ctx is canceled or the reader is closed.
func (r *Receiver) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan domain.Outcome, r.config.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		r.reader.Close()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		defer close(queue)
		return r.readLoop(gctx, queue)
	})
	g.Go(func() error {
		return r.sweepLoop(gctx)
	})
	g.Go(func() error {
		for out := range queue {
			r.deliver(gctx, out)
		}
		return nil
	})

	r.logger.Info("receiver started", ports.String("addr", addrString(r.reader.LocalAddr())))
	return g.Wait()
}

func (r *Receiver) readLoop(ctx context.Context, queue chan<- domain.Outcome) error {
	buf := make([]byte, 1<<16)
	bo := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	for {
		n, from, err := r.reader.ReadDatagram(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			r.counters.readErrors.Add(1)
			r.logger.Warn("read error", ports.Err(err))
			if !bo.Sleep(ctx) {
				return nil
			}
			continue
		}
		bo.Reset()

		out, ok := r.HandleDatagram(buf[:n], from)
		if !ok || out.State != domain.SlotDelivered {
			continue
		}
		select {
		case queue <- out:
		default:
			r.counters.queueDrops.Add(1)
			r.metrics.FrameDropped("queue")
			r.logger.Debug("delivery queue full, frame dropped", ports.Uint64("sequence", out.Sequence))
		}
	}
}

// HandleDatagram classifies one datagram and feeds it to the reassembler.
// It reports false when the datagram was dropped before reassembly.
func (r *Receiver) HandleDatagram(b []byte, from net.Addr) (domain.Outcome, bool) {
	r.counters.datagrams.Add(1)
	r.counters.bytes.Add(uint64(len(b)))
	r.metrics.DatagramReceived(len(b))

	if !r.fromExpected(from) {
		r.counters.foreign.Add(1)
		r.metrics.DatagramRejected(domain.ReasonForeign)
		return domain.Outcome{}, false
	}

	p, err := wire.Parse(b)
	if err != nil {
		r.counters.undecodable.Add(1)
		r.metrics.DatagramRejected(domain.ReasonMalformed)
		r.logger.Debug("undecodable datagram", ports.Err(err), ports.Int("bytes", len(b)))
		return domain.Outcome{}, false
	}

	var out domain.Outcome
	switch p.Kind {
	case wire.KindMetadata:
		m, ok := domain.MetadataFromWire(p.Metadata)
		if !ok {
			r.counters.undecodable.Add(1)
			r.metrics.DatagramRejected(domain.ReasonMalformed)
			return domain.Outcome{}, false
		}
		out = r.reasm.HandleMetadata(m)
	case wire.KindChunk:
		out = r.reasm.HandleChunk(domain.ChunkFromWire(p.Chunk, p.Data))
	}

	switch out.Reason {
	case domain.ReasonDuplicate, domain.ReasonLate, domain.ReasonMalformed:
		r.metrics.DatagramRejected(out.Reason)
	}
	r.metrics.LiveSlots(r.reasm.Len())
	return out, true
}

func (r *Receiver) fromExpected(from net.Addr) bool {
	want := r.config.ExpectedSender
	if want == nil {
		return true
	}
	got, ok := from.(*net.UDPAddr)
	if !ok {
		return false
	}
	if !got.IP.Equal(want.IP) {
		return false
	}
	return want.Port == 0 || want.Port == got.Port
}

func (r *Receiver) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if expired := r.reasm.Sweep(r.now()); len(expired) > 0 {
				r.metrics.LiveSlots(r.reasm.Len())
			}
		}
	}
}

func (r *Receiver) onFinish(o domain.Outcome) {
	r.metrics.SlotFinished(o.State, o.Reason)
	switch o.State {
	case domain.SlotCorrupt:
		r.logger.Debug("corrupt message discarded",
			ports.Uint64("sequence", o.Sequence), ports.String("reason", string(o.Reason)))
	case domain.SlotExpired:
		r.logger.Debug("incomplete message expired",
			ports.Uint64("sequence", o.Sequence), ports.String("reason", string(o.Reason)))
	}
}

// deliver decodes a verified envelope and hands it to every sink.
func (r *Receiver) deliver(ctx context.Context, out domain.Outcome) {
	env, err := wire.DecodeEnvelope(out.Envelope)
	if err != nil {
		r.counters.undecodable.Add(1)
		r.metrics.FrameDropped("envelope")
		r.logger.Warn("verified envelope did not decode", ports.Err(err), ports.Uint64("sequence", out.Sequence))
		return
	}
	msg := domain.FrameFromEnvelope(env)
	if msg.Sequence != out.Sequence {
		r.counters.undecodable.Add(1)
		r.metrics.FrameDropped("sequence")
		r.logger.Warn("envelope sequence mismatch",
			ports.Uint64("header", out.Sequence), ports.Uint64("envelope", msg.Sequence))
		return
	}

	frame := domain.DeliveredFrame{Message: msg, ReceivedAt: r.now()}
	if r.config.DecodeFrames && r.codec != nil {
		img, err := r.codec.Decode(msg.Payload)
		if err != nil {
			r.counters.decodeFailures.Add(1)
			r.metrics.FrameDropped("decode")
			r.logger.Warn("frame decode failed", ports.Err(err), ports.Uint64("sequence", msg.Sequence))
			return
		}
		frame.Image = img
	}

	if l := frame.Latency(); l > 0 {
		r.latency.Add(l)
		r.metrics.FrameLatency(l)
	}
	r.counters.delivered.Add(1)
	r.counters.lastSequence.Store(msg.Sequence)

	r.sinksMu.RLock()
	sinks := r.sinks
	r.sinksMu.RUnlock()
	for _, s := range sinks {
		if err := s.Consume(ctx, frame); err != nil {
			r.counters.sinkErrors.Add(1)
			r.logger.Warn("sink failed", ports.String("sink", s.Name()), ports.Err(err))
		}
	}
}

// Stats returns a snapshot of the receive counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Reassembly:      r.reasm.Stats(),
		Datagrams:       r.counters.datagrams.Load(),
		Bytes:           r.counters.bytes.Load(),
		Foreign:         r.counters.foreign.Load(),
		Undecodable:     r.counters.undecodable.Load(),
		ReadErrors:      r.counters.readErrors.Load(),
		QueueDrops:      r.counters.queueDrops.Load(),
		DecodeFailures:  r.counters.decodeFailures.Load(),
		SinkErrors:      r.counters.sinkErrors.Load(),
		FramesDelivered: r.counters.delivered.Load(),
		LastSequence:    r.counters.lastSequence.Load(),
		Latency:         r.latency.Snapshot(),
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
