package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Sender   SenderFile   `toml:"sender"`
	Receiver ReceiverFile `toml:"receiver"`
	Log      LogFile      `toml:"log"`
}

// SenderFile is the [sender] table.
type SenderFile struct {
	Target     string  `toml:"target"`
	FPS        float64 `toml:"fps"`
	ChunkSize  int     `toml:"chunk_size"`
	ChunkDelay string  `toml:"chunk_delay"`
	Quality    int     `toml:"quality"`
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Source     string  `toml:"source"`
	Frames     int     `toml:"frames"`
	Loop       *bool   `toml:"loop"`
	StateDir   string  `toml:"state_dir"`
	SendBuffer int     `toml:"send_buffer"`
}

// ReceiverFile is the [receiver] table.
type ReceiverFile struct {
	Listen         string `toml:"listen"`
	SlotTimeout    string `toml:"slot_timeout"`
	MaxSlots       int    `toml:"max_slots"`
	LateWindow     int    `toml:"late_window"`
	QueueSize      int    `toml:"queue_size"`
	ExpectedSender string `toml:"expected_sender"`
	OutputDir      string `toml:"output_dir"`
	HTTPAddr       string `toml:"http_addr"`
	ReceiveBuffer  int    `toml:"receive_buffer"`
	Decode         *bool  `toml:"decode"`
	CleanupHigh    int64  `toml:"cleanup_high_bytes"`
	CleanupLow     int64  `toml:"cleanup_low_bytes"`
}

// LogFile is the [log] table.
type LogFile struct {
	Level string `toml:"level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.framecast/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".framecast", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	snd := &cfg.Sender
	s.setString("target", fc.Sender.Target, &snd.Target)
	s.setFloat("fps", fc.Sender.FPS, &snd.FPS)
	s.setInt("chunk-size", fc.Sender.ChunkSize, &snd.ChunkSize)
	if err := s.setDuration("chunk-delay", fc.Sender.ChunkDelay, &snd.ChunkDelay); err != nil {
		return err
	}
	s.setInt("quality", fc.Sender.Quality, &snd.Quality)
	s.setInt("width", fc.Sender.Width, &snd.Width)
	s.setInt("height", fc.Sender.Height, &snd.Height)
	s.setString("source", fc.Sender.Source, &snd.Source)
	s.setInt("frames", fc.Sender.Frames, &snd.Frames)
	s.setBool("loop", fc.Sender.Loop, &snd.Loop)
	s.setString("state-dir", fc.Sender.StateDir, &snd.StateDir)
	s.setInt("send-buffer", fc.Sender.SendBuffer, &snd.SendBuffer)

	rcv := &cfg.Receiver
	s.setString("listen", fc.Receiver.Listen, &rcv.Listen)
	if err := s.setDuration("slot-timeout", fc.Receiver.SlotTimeout, &rcv.SlotTimeout); err != nil {
		return err
	}
	s.setInt("max-slots", fc.Receiver.MaxSlots, &rcv.MaxSlots)
	s.setInt("late-window", fc.Receiver.LateWindow, &rcv.LateWindow)
	s.setInt("queue-size", fc.Receiver.QueueSize, &rcv.QueueSize)
	s.setString("expected-sender", fc.Receiver.ExpectedSender, &rcv.ExpectedSender)
	s.setString("output-dir", fc.Receiver.OutputDir, &rcv.OutputDir)
	s.setString("http-addr", fc.Receiver.HTTPAddr, &rcv.HTTPAddr)
	s.setInt("receive-buffer", fc.Receiver.ReceiveBuffer, &rcv.ReceiveBuffer)
	s.setBool("decode", fc.Receiver.Decode, &rcv.Decode)
	s.setInt64("cleanup-high", fc.Receiver.CleanupHigh, &rcv.CleanupHigh)
	s.setInt64("cleanup-low", fc.Receiver.CleanupLow, &rcv.CleanupLow)

	s.setString("log-level", fc.Log.Level, &cfg.LogLevel)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
