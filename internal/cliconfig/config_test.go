package cliconfig

import (
	"testing"
	"time"

	"github.com/mob852/framecast/pkg/wire"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sender.Target != "127.0.0.1:12346" {
		t.Errorf("Target = %v, want 127.0.0.1:12346", cfg.Sender.Target)
	}
	if cfg.Sender.FPS != 30 {
		t.Errorf("FPS = %v, want 30", cfg.Sender.FPS)
	}
	if cfg.Sender.ChunkDelay != 500*time.Microsecond {
		t.Errorf("ChunkDelay = %v, want 500µs", cfg.Sender.ChunkDelay)
	}
	if cfg.Receiver.SlotTimeout != 2*time.Second {
		t.Errorf("SlotTimeout = %v, want 2s", cfg.Receiver.SlotTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}

	if err := cfg.ValidateSender(); err != nil {
		t.Errorf("default sender config invalid: %v", err)
	}
	if err := cfg.ValidateReceiver(); err != nil {
		t.Errorf("default receiver config invalid: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_ValidateSender(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SenderConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*SenderConfig) {}},
		{name: "missing target", mutate: func(s *SenderConfig) { s.Target = "" }, wantErr: true},
		{name: "target without port", mutate: func(s *SenderConfig) { s.Target = "10.0.0.1" }, wantErr: true},
		{name: "zero fps", mutate: func(s *SenderConfig) { s.FPS = 0 }, wantErr: true},
		{name: "chunk too large", mutate: func(s *SenderConfig) { s.ChunkSize = wire.MaxChunkPayload + 1 }, wantErr: true},
		{name: "largest chunk", mutate: func(s *SenderConfig) { s.ChunkSize = wire.MaxChunkPayload }},
		{name: "negative delay", mutate: func(s *SenderConfig) { s.ChunkDelay = -time.Millisecond }, wantErr: true},
		{name: "no delay", mutate: func(s *SenderConfig) { s.ChunkDelay = 0 }},
		{name: "quality out of range", mutate: func(s *SenderConfig) { s.Quality = 101 }, wantErr: true},
		{name: "zero width", mutate: func(s *SenderConfig) { s.Width = 0 }, wantErr: true},
		{name: "negative frames", mutate: func(s *SenderConfig) { s.Frames = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Sender)
			err := cfg.ValidateSender()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSender() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReceiver(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ReceiverConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*ReceiverConfig) {}},
		{name: "missing listen", mutate: func(r *ReceiverConfig) { r.Listen = "" }, wantErr: true},
		{name: "zero timeout", mutate: func(r *ReceiverConfig) { r.SlotTimeout = 0 }, wantErr: true},
		{name: "zero slots", mutate: func(r *ReceiverConfig) { r.MaxSlots = 0 }, wantErr: true},
		{name: "zero queue", mutate: func(r *ReceiverConfig) { r.QueueSize = 0 }, wantErr: true},
		{name: "cleanup without output dir", mutate: func(r *ReceiverConfig) { r.CleanupHigh = 1 << 20 }, wantErr: true},
		{
			name: "cleanup low above high",
			mutate: func(r *ReceiverConfig) {
				r.OutputDir = "/frames"
				r.CleanupHigh = 1 << 20
				r.CleanupLow = 2 << 20
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Receiver)
			err := cfg.ValidateReceiver()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReceiver() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReceiver_Derivations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Receiver.OutputDir = "/frames"
	cfg.Receiver.CleanupHigh = 4 << 20

	if err := cfg.ValidateReceiver(); err != nil {
		t.Fatalf("ValidateReceiver() error = %v", err)
	}
	if cfg.Receiver.CleanupLow != 3<<20 {
		t.Errorf("CleanupLow = %d, want %d", cfg.Receiver.CleanupLow, 3<<20)
	}
}

func TestConfig_ValidateLogLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error", "disabled"} {
		cfg := Config{LogLevel: level}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate(%q) error = %v", level, err)
		}
	}
	cfg := Config{LogLevel: "loud"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted unknown level")
	}
}
