package cliconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mob852/framecast/pkg/wire"
)

// DefaultPort is the UDP port frames are sent to when none is configured.
const DefaultPort = 12346

// SenderConfig holds the send command settings.
type SenderConfig struct {
	Target     string
	FPS        float64
	ChunkSize  int
	ChunkDelay time.Duration
	Quality    int
	Width      int
	Height     int
	Source     string // directory of images; empty means test pattern
	Frames     int    // 0 sends until stopped
	Loop       bool
	StateDir   string
	SendBuffer int
}

// ReceiverConfig holds the recv command settings.
type ReceiverConfig struct {
	Listen         string
	SlotTimeout    time.Duration
	MaxSlots       int
	LateWindow     int
	QueueSize      int
	ExpectedSender string
	OutputDir      string
	HTTPAddr       string
	ReceiveBuffer  int
	Decode         bool

	// CleanupHigh and CleanupLow bound OutputDir in bytes. Zero disables cleanup.
	CleanupHigh int64
	CleanupLow  int64
}

// Config holds CLI configuration for framecast.
type Config struct {
	Sender   SenderConfig
	Receiver ReceiverConfig
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Sender: SenderConfig{
			Target:     net.JoinHostPort("127.0.0.1", strconv.Itoa(DefaultPort)),
			FPS:        30,
			ChunkSize:  65000,
			ChunkDelay: 500 * time.Microsecond,
			Quality:    95,
			Width:      1920,
			Height:     1080,
			StateDir:   DefaultStateDir(),
			SendBuffer: wire.MaxDatagramSize * 2,
		},
		Receiver: ReceiverConfig{
			Listen:        net.JoinHostPort("0.0.0.0", strconv.Itoa(DefaultPort)),
			SlotTimeout:   2 * time.Second,
			MaxSlots:      64,
			LateWindow:    256,
			QueueSize:     16,
			ReceiveBuffer: 256 << 10,
		},
		LogLevel: "info",
	}
}

// DefaultStateDir returns ~/.framecast, or "" if the home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".framecast")
	}
	return ""
}

// ValidateSender checks the sender settings.
func (c *Config) ValidateSender() error {
	s := &c.Sender
	if s.Target == "" {
		return fmt.Errorf("target is required")
	}
	if _, _, err := net.SplitHostPort(s.Target); err != nil {
		return fmt.Errorf("target %q: %w", s.Target, err)
	}
	if s.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if s.ChunkSize <= 0 || s.ChunkSize > wire.MaxChunkPayload {
		return fmt.Errorf("chunk size must be in (0, %d]", wire.MaxChunkPayload)
	}
	if s.ChunkDelay < 0 {
		return fmt.Errorf("chunk delay must not be negative")
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("quality must be in [1, 100]")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if s.Frames < 0 {
		return fmt.Errorf("frames must not be negative")
	}
	return nil
}

// ValidateReceiver checks the receiver settings and fills in derived values.
func (c *Config) ValidateReceiver() error {
	r := &c.Receiver
	if r.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if r.SlotTimeout <= 0 {
		return fmt.Errorf("slot timeout must be positive")
	}
	if r.MaxSlots <= 0 {
		return fmt.Errorf("max slots must be positive")
	}
	if r.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if r.LateWindow < 0 {
		return fmt.Errorf("late window must not be negative")
	}
	if r.CleanupHigh > 0 {
		if r.OutputDir == "" {
			return fmt.Errorf("cleanup needs an output directory")
		}
		if r.CleanupLow <= 0 {
			r.CleanupLow = r.CleanupHigh * 3 / 4
		}
		if r.CleanupLow >= r.CleanupHigh {
			return fmt.Errorf("cleanup low watermark must be below the high watermark")
		}
	}
	return nil
}

// Validate checks the log settings. Sender and receiver settings are checked
// by the command that uses them.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "off":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

// configSetter applies values that do not override explicitly set flags.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
