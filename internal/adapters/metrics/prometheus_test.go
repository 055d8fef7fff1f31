package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

var (
	_ ports.SenderMetrics   = (*Prometheus)(nil)
	_ ports.ReceiverMetrics = (*Prometheus)(nil)
)

func TestPrometheus_Counters(t *testing.T) {
	m := NewPrometheus("s1")

	m.FrameSent(3, 150000)
	m.FrameSent(2, 90000)
	m.EncodeFailed()
	m.DatagramReceived(1000)
	m.DatagramRejected(domain.ReasonDuplicate)
	m.SlotFinished(domain.SlotCorrupt, domain.ReasonChecksum)
	m.SlotFinished(domain.SlotExpired, domain.ReasonTimeout)
	m.FrameDropped("queue")
	m.FrameLatency(12 * time.Millisecond)
	m.LiveSlots(4)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"framecast_sender_frames_total", nil, 2},
		{"framecast_sender_chunks_total", nil, 5},
		{"framecast_sender_encode_failures_total", nil, 1},
		{"framecast_receiver_messages_total", map[string]string{"outcome": "corrupt", "reason": "checksum"}, 1},
		{"framecast_receiver_frames_dropped_total", map[string]string{"stage": "queue"}, 1},
		{"framecast_receiver_live_slots", nil, 4},
	}
	for _, tt := range tests {
		if got := gatherValue(t, m, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

// gatherValue returns the value of the first sample of name whose labels
// include want.
func gatherValue(t *testing.T, m *Prometheus, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if !hasLabels(metric, want) {
				continue
			}
			switch {
			case metric.Counter != nil:
				return metric.GetCounter().GetValue()
			case metric.Gauge != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestPrometheus_Handler(t *testing.T) {
	m := NewPrometheus("s2")
	m.DatagramReceived(10)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `framecast_receiver_datagrams_total{session="s2"} 1`) {
		t.Errorf("exposition missing datagram counter:\n%s", body)
	}
}

func TestPrometheus_Independent(t *testing.T) {
	a := NewPrometheus("a")
	b := NewPrometheus("b")
	a.EncodeFailed()
	if got := gatherValue(t, b, "framecast_sender_encode_failures_total", nil); got != 0 {
		t.Errorf("b saw %v failures recorded on a", got)
	}
}
