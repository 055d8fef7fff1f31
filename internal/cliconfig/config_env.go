package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (FRAMECAST_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	snd := &cfg.Sender
	s.setString("target", os.Getenv("FRAMECAST_TARGET"), &snd.Target)
	if err := s.setFloatFromString("fps", os.Getenv("FRAMECAST_FPS"), &snd.FPS); err != nil {
		return err
	}
	if err := s.setIntFromString("chunk-size", os.Getenv("FRAMECAST_CHUNK_SIZE"), &snd.ChunkSize); err != nil {
		return err
	}
	if err := s.setDuration("chunk-delay", os.Getenv("FRAMECAST_CHUNK_DELAY"), &snd.ChunkDelay); err != nil {
		return err
	}
	if err := s.setIntFromString("quality", os.Getenv("FRAMECAST_QUALITY"), &snd.Quality); err != nil {
		return err
	}
	s.setString("source", os.Getenv("FRAMECAST_SOURCE"), &snd.Source)
	s.setString("state-dir", os.Getenv("FRAMECAST_STATE_DIR"), &snd.StateDir)

	rcv := &cfg.Receiver
	s.setString("listen", os.Getenv("FRAMECAST_LISTEN"), &rcv.Listen)
	if err := s.setDuration("slot-timeout", os.Getenv("FRAMECAST_SLOT_TIMEOUT"), &rcv.SlotTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("max-slots", os.Getenv("FRAMECAST_MAX_SLOTS"), &rcv.MaxSlots); err != nil {
		return err
	}
	s.setString("expected-sender", os.Getenv("FRAMECAST_EXPECTED_SENDER"), &rcv.ExpectedSender)
	s.setString("output-dir", os.Getenv("FRAMECAST_OUTPUT_DIR"), &rcv.OutputDir)
	s.setString("http-addr", os.Getenv("FRAMECAST_HTTP_ADDR"), &rcv.HTTPAddr)
	s.setBoolFromString("decode", os.Getenv("FRAMECAST_DECODE"), &rcv.Decode)
	if err := s.setInt64FromString("cleanup-high", os.Getenv("FRAMECAST_CLEANUP_HIGH_BYTES"), &rcv.CleanupHigh); err != nil {
		return err
	}

	s.setString("log-level", os.Getenv("FRAMECAST_LOG_LEVEL"), &cfg.LogLevel)

	return nil
}
