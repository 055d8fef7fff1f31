package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/pkg/integrity"
	"github.com/mob852/framecast/pkg/wire"
)

// Reassembler defaults.
const (
	DefaultSlotTimeout = 2 * time.Second
	DefaultMaxSlots    = 64
	DefaultLateWindow  = 256
)

// ReassemblerConfig bounds the memory held by in-flight messages.
type ReassemblerConfig struct {
	// SlotTimeout expires a slot that made no progress for this long.
	SlotTimeout time.Duration

	// MaxSlots caps concurrently collecting sequence numbers.
	MaxSlots int

	// LateWindow is how many finished sequence numbers are remembered so
	// their stragglers are dropped. A sequence is only remembered for
	// SlotTimeout after it finished, so a restarted sender reusing numbers
	// is accepted again. Zero means DefaultLateWindow, negative disables it.
	LateWindow int

	// OnFinish is called, without the lock held, for every terminal outcome
	// including timeouts and evictions.
	OnFinish func(domain.Outcome)

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Validate checks the configuration.
func (c ReassemblerConfig) Validate() error {
	if c.SlotTimeout <= 0 {
		return fmt.Errorf("%w: slot timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxSlots <= 0 {
		return fmt.Errorf("%w: max slots must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// ReassemblerStats counts what happened to datagrams and slots.
type ReassemblerStats struct {
	Delivered  uint64 `json:"delivered"`
	Corrupt    uint64 `json:"corrupt"`
	Expired    uint64 `json:"expired"`
	Evicted    uint64 `json:"evicted"`
	Duplicates uint64 `json:"duplicates"`
	Malformed  uint64 `json:"malformed"`
	Late       uint64 `json:"late"`
	LiveSlots  int    `json:"live_slots"`
}

type slot struct {
	seq     uint64
	total   uint32
	meta    domain.Metadata
	hasMeta bool
	chunks  map[uint32][]byte
	bytes   int

	createdAt    time.Time
	lastProgress time.Time
}

// Reassembler collects chunks per sequence number and yields verified envelopes.
// It owns every slot; a single mutex serializes the receive loop and the sweeper.
type Reassembler struct {
	cfg ReassemblerConfig

	mu    sync.Mutex
	slots map[uint64]*slot
	stats ReassemblerStats

	lateWindow  int
	finished    []finishedSeq
	finishedAt  map[uint64]time.Time
	finishedPos int
}

type finishedSeq struct {
	seq uint64
	at  time.Time
}

// NewReassembler returns an empty Reassembler.
func NewReassembler(cfg ReassemblerConfig) (*Reassembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	window := cfg.LateWindow
	switch {
	case window == 0:
		window = DefaultLateWindow
	case window < 0:
		window = 0
	}
	return &Reassembler{
		cfg:        cfg,
		slots:      make(map[uint64]*slot, cfg.MaxSlots),
		lateWindow: window,
		finished:   make([]finishedSeq, 0, window),
		finishedAt: make(map[uint64]time.Time, window),
	}, nil
}

// HandleMetadata records the metadata of one message.
func (r *Reassembler) HandleMetadata(m domain.Metadata) domain.Outcome {
	r.mu.Lock()
	out, done := r.handleMetadata(m)
	r.mu.Unlock()
	r.notify(done)
	return out
}

func (r *Reassembler) handleMetadata(m domain.Metadata) (domain.Outcome, []domain.Outcome) {
	if m.TotalChunks > wire.MaxTotalChunks || m.TotalSize > wire.MaxEnvelopeSize {
		return r.reject(m.Sequence, domain.ReasonMalformed), nil
	}
	now := r.cfg.Now()
	if r.isFinished(m.Sequence, now) {
		return r.reject(m.Sequence, domain.ReasonLate), nil
	}

	var done []domain.Outcome
	s, ok := r.slots[m.Sequence]
	switch {
	case !ok:
		done = r.makeRoom(now)
		s = r.open(m.Sequence, m.TotalChunks, now)
	case s.hasMeta:
		r.stats.Duplicates++
		return domain.Outcome{Sequence: m.Sequence, State: domain.SlotCollecting, Reason: domain.ReasonDuplicate}, nil
	case s.total != m.TotalChunks:
		return r.reject(m.Sequence, domain.ReasonMalformed), nil
	}

	s.meta = m
	s.hasMeta = true
	s.lastProgress = now
	out := r.tryComplete(s)
	if out.State.Terminal() {
		done = append(done, out)
	}
	return out, done
}

// HandleChunk stores one chunk. The chunk data is copied.
func (r *Reassembler) HandleChunk(c domain.Chunk) domain.Outcome {
	r.mu.Lock()
	out, done := r.handleChunk(c)
	r.mu.Unlock()
	r.notify(done)
	return out
}

func (r *Reassembler) handleChunk(c domain.Chunk) (domain.Outcome, []domain.Outcome) {
	if c.TotalChunks == 0 || c.TotalChunks > wire.MaxTotalChunks || c.Index >= c.TotalChunks {
		return r.reject(c.Sequence, domain.ReasonMalformed), nil
	}
	now := r.cfg.Now()
	if r.isFinished(c.Sequence, now) {
		return r.reject(c.Sequence, domain.ReasonLate), nil
	}

	var done []domain.Outcome
	s, ok := r.slots[c.Sequence]
	if !ok {
		done = r.makeRoom(now)
		s = r.open(c.Sequence, c.TotalChunks, now)
	}
	if s.total != c.TotalChunks {
		return r.reject(c.Sequence, domain.ReasonMalformed), done
	}
	if _, dup := s.chunks[c.Index]; dup {
		r.stats.Duplicates++
		return domain.Outcome{Sequence: c.Sequence, State: domain.SlotCollecting, Reason: domain.ReasonDuplicate}, done
	}
	if s.bytes+len(c.Data) > wire.MaxEnvelopeSize {
		return r.reject(c.Sequence, domain.ReasonMalformed), done
	}

	s.chunks[c.Index] = append([]byte(nil), c.Data...)
	s.bytes += len(c.Data)
	s.lastProgress = now

	out := r.tryComplete(s)
	if out.State.Terminal() {
		done = append(done, out)
	}
	return out, done
}

// Sweep expires every slot with no progress for SlotTimeout.
func (r *Reassembler) Sweep(now time.Time) []domain.Outcome {
	r.mu.Lock()
	var done []domain.Outcome
	for seq, s := range r.slots {
		if now.Sub(s.lastProgress) >= r.cfg.SlotTimeout {
			r.stats.Expired++
			r.finish(seq, now)
			done = append(done, domain.Outcome{Sequence: seq, State: domain.SlotExpired, Reason: domain.ReasonTimeout})
		}
	}
	r.mu.Unlock()
	r.notify(done)
	return done
}

// State reports where seq is in its lifecycle. Finished slots are Absent.
func (r *Reassembler) State(seq uint64) domain.SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[seq]; ok {
		return domain.SlotCollecting
	}
	return domain.SlotAbsent
}

// Len returns the number of live slots.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Stats returns a snapshot of the counters.
func (r *Reassembler) Stats() ReassemblerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats
	st.LiveSlots = len(r.slots)
	return st
}

func (r *Reassembler) open(seq uint64, total uint32, now time.Time) *slot {
	s := &slot{
		seq:          seq,
		total:        total,
		chunks:       make(map[uint32][]byte, total),
		createdAt:    now,
		lastProgress: now,
	}
	r.slots[seq] = s
	return s
}

// makeRoom evicts the oldest slots until one more fits.
func (r *Reassembler) makeRoom(now time.Time) []domain.Outcome {
	var done []domain.Outcome
	for len(r.slots) >= r.cfg.MaxSlots {
		var oldest *slot
		for _, s := range r.slots {
			if oldest == nil || s.createdAt.Before(oldest.createdAt) ||
				(s.createdAt.Equal(oldest.createdAt) && s.seq < oldest.seq) {
				oldest = s
			}
		}
		r.stats.Expired++
		r.stats.Evicted++
		r.finish(oldest.seq, now)
		done = append(done, domain.Outcome{Sequence: oldest.seq, State: domain.SlotExpired, Reason: domain.ReasonEvicted})
	}
	return done
}

func (r *Reassembler) tryComplete(s *slot) domain.Outcome {
	if !s.hasMeta || len(s.chunks) != int(s.total) {
		return domain.Outcome{Sequence: s.seq, State: domain.SlotCollecting}
	}
	defer r.finish(s.seq, s.lastProgress)

	envelope := make([]byte, 0, s.bytes)
	for i := uint32(0); i < s.total; i++ {
		envelope = append(envelope, s.chunks[i]...)
	}
	if uint64(len(envelope)) != s.meta.TotalSize {
		r.stats.Corrupt++
		return domain.Outcome{Sequence: s.seq, State: domain.SlotCorrupt, Reason: domain.ReasonSize}
	}
	if !integrity.Verify(envelope, s.meta.Checksum) {
		r.stats.Corrupt++
		return domain.Outcome{Sequence: s.seq, State: domain.SlotCorrupt, Reason: domain.ReasonChecksum}
	}
	r.stats.Delivered++
	return domain.Outcome{Sequence: s.seq, State: domain.SlotDelivered, Envelope: envelope}
}

func (r *Reassembler) reject(seq uint64, reason domain.Reason) domain.Outcome {
	switch reason {
	case domain.ReasonLate:
		r.stats.Late++
	case domain.ReasonMalformed:
		r.stats.Malformed++
	}
	state := domain.SlotAbsent
	if _, ok := r.slots[seq]; ok {
		state = domain.SlotCollecting
	}
	return domain.Outcome{Sequence: seq, State: state, Reason: reason}
}

// finish removes the slot and remembers seq as done at time at.
func (r *Reassembler) finish(seq uint64, at time.Time) {
	delete(r.slots, seq)
	if r.lateWindow == 0 {
		return
	}
	e := finishedSeq{seq: seq, at: at}
	if len(r.finished) < r.lateWindow {
		r.finished = append(r.finished, e)
	} else {
		old := r.finished[r.finishedPos]
		// Only forget old.seq if it was not finished again since.
		if t, ok := r.finishedAt[old.seq]; ok && t.Equal(old.at) {
			delete(r.finishedAt, old.seq)
		}
		r.finished[r.finishedPos] = e
		r.finishedPos = (r.finishedPos + 1) % r.lateWindow
	}
	r.finishedAt[seq] = at
}

// isFinished reports whether seq finished less than SlotTimeout before now.
func (r *Reassembler) isFinished(seq uint64, now time.Time) bool {
	at, ok := r.finishedAt[seq]
	if !ok {
		return false
	}
	if now.Sub(at) >= r.cfg.SlotTimeout {
		delete(r.finishedAt, seq)
		return false
	}
	return true
}

func (r *Reassembler) notify(done []domain.Outcome) {
	if r.cfg.OnFinish == nil {
		return
	}
	for _, o := range done {
		r.cfg.OnFinish(o)
	}
}
