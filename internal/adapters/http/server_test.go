package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/pkg/log"
)

func delivered(seq uint64, payload string) domain.DeliveredFrame {
	now := time.Now()
	return domain.DeliveredFrame{
		Message:    domain.NewFrameMessage(seq, now, now, []byte(payload)),
		ReceivedAt: now,
	}
}

func newTestServer(t *testing.T, viewer *Viewer) *httptest.Server {
	t.Helper()
	s := NewServer(ServerConfig{
		Stats:   func() any { return map[string]int{"delivered": 3} },
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("framecast_up 1\n")) }),
		Viewer:  viewer,
		Logger:  zerolog.Nop(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServerHealthAndStats(t *testing.T) {
	ts := newTestServer(t, NewViewer(log.NewNoopLogger()))

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	var stats map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["delivered"] != 3 {
		t.Errorf("stats = %v", stats)
	}
}

func TestServerMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "framecast_up") {
		t.Errorf("metrics body = %q", body)
	}

	// No viewer means no viewer routes.
	resp, err = http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/frame.jpg without viewer status = %d", resp.StatusCode)
	}
}

func TestServerLatestFrame(t *testing.T) {
	viewer := NewViewer(log.NewNoopLogger())
	ts := newTestServer(t, viewer)

	resp, err := http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty viewer status = %d, want 404", resp.StatusCode)
	}

	viewer.Consume(context.Background(), delivered(41, "jpeg-41"))

	resp, err = http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Frame-Sequence"); got != "41" {
		t.Errorf("X-Frame-Sequence = %q", got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestViewerSkipsStaleFrames(t *testing.T) {
	v := NewViewer(log.NewNoopLogger())
	ctx := context.Background()

	v.Consume(ctx, delivered(10, "a"))
	v.Consume(ctx, delivered(9, "b"))
	v.Consume(ctx, delivered(10, "c"))
	v.Consume(ctx, delivered(12, "d"))

	snap, ok := v.Latest()
	if !ok || snap.Sequence != 12 || string(snap.Payload) != "d" {
		t.Fatalf("latest = %+v, %v", snap, ok)
	}
	if v.Skipped() != 2 {
		t.Errorf("skipped = %d, want 2", v.Skipped())
	}

	// A sequence far behind means the sender restarted.
	v.Consume(ctx, delivered(5000, "x"))
	v.Consume(ctx, delivered(1, "restart"))
	snap, _ = v.Latest()
	if snap.Sequence != 1 {
		t.Errorf("after restart latest = %d, want 1", snap.Sequence)
	}
}

func TestViewerWebsocket(t *testing.T) {
	viewer := NewViewer(log.NewNoopLogger())
	viewer.Consume(context.Background(), delivered(1, "first"))
	ts := newTestServer(t, viewer)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage || string(msg) != "first" {
		t.Fatalf("got %d %q, want latest frame on connect", kind, msg)
	}

	deadline := time.Now().Add(5 * time.Second)
	for viewer.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	viewer.Consume(context.Background(), delivered(2, "second"))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "second" {
		t.Errorf("pushed frame = %q", msg)
	}

	conn.Close()
	deadline = time.Now().Add(5 * time.Second)
	for viewer.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerRunShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(ServerConfig{Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
