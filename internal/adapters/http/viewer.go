package http

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

// reorderWindow is how far back a sequence number may be and still be
// treated as stale rather than as a restarted sender.
const reorderWindow = 1024

const (
	clientBuffer = 2
	writeTimeout = 2 * time.Second
)

// Snapshot is the most recent frame shown by the viewer.
type Snapshot struct {
	Sequence   uint64
	Payload    []byte
	ReceivedAt time.Time
}

// Viewer is a frame sink that keeps the latest frame and pushes every newer
// frame to websocket clients. Frames older than the last one shown are skipped.
type Viewer struct {
	logger ports.Logger

	mu      sync.RWMutex
	latest  Snapshot
	hasLast bool
	skipped uint64
	clients map[*viewerClient]struct{}
}

type viewerClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewViewer returns an empty viewer.
func NewViewer(logger ports.Logger) *Viewer {
	return &Viewer{logger: logger, clients: make(map[*viewerClient]struct{})}
}

// Name implements ports.FrameSink.
func (v *Viewer) Name() string { return "viewer" }

// Consume implements ports.FrameSink.
func (v *Viewer) Consume(ctx context.Context, f domain.DeliveredFrame) error {
	seq := f.Message.Sequence

	v.mu.Lock()
	if v.hasLast && seq <= v.latest.Sequence && v.latest.Sequence-seq < reorderWindow {
		v.skipped++
		v.mu.Unlock()
		return nil
	}
	payload := append([]byte(nil), f.Message.Payload...)
	v.latest = Snapshot{Sequence: seq, Payload: payload, ReceivedAt: f.ReceivedAt}
	v.hasLast = true
	clients := make([]*viewerClient, 0, len(v.clients))
	for c := range v.clients {
		clients = append(clients, c)
	}
	v.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			// Slow client: it keeps the frames it already has queued.
		}
	}
	return nil
}

// Latest returns the last frame shown, if any.
func (v *Viewer) Latest() (Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.latest, v.hasLast
}

// Skipped returns how many stale frames were dropped.
func (v *Viewer) Skipped() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.skipped
}

// Clients returns the number of connected websocket clients.
func (v *Viewer) Clients() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.clients)
}

// attach serves conn until the client goes away or ctx ends.
func (v *Viewer) attach(ctx context.Context, conn *websocket.Conn) {
	c := &viewerClient{conn: conn, send: make(chan []byte, clientBuffer)}

	v.mu.Lock()
	v.clients[c] = struct{}{}
	latest, ok := v.latest, v.hasLast
	v.mu.Unlock()
	if ok {
		c.send <- latest.Payload
	}

	defer func() {
		v.mu.Lock()
		delete(v.clients, c)
		v.mu.Unlock()
		c.close()
	}()

	// Reader: only used to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case frame := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				v.logger.Debug("viewer client write failed", ports.Err(err))
				return
			}
		}
	}
}

func (c *viewerClient) close() {
	c.once.Do(func() {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	})
}
