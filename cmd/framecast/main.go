package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	root "github.com/mob852/framecast"
	"github.com/mob852/framecast/internal/cliconfig"
	"github.com/mob852/framecast/pkg/framecast"
	"github.com/mob852/framecast/pkg/log"
	"github.com/mob852/framecast/plugins/configwatcher"
	"github.com/mob852/framecast/plugins/snapshotcleanup"
)

const helpDescription = `
Stream video frames over UDP and put them back together on the other side.

Highlights:
  - Splits each frame into datagrams that fit a single UDP packet.
  - Verifies every reassembled frame with an MD5 checksum before delivery.
  - Drops stale, duplicate and corrupted frames instead of stalling.
  - Paces the sender by frame rate and per-chunk delay; retune live by
    editing the config file.
`

var exampleUsage = strings.TrimSpace(`
  framecast recv --listen 0.0.0.0:12346 --output-dir ./frames --http-addr :8080
  framecast send --target 192.168.1.20:12346 --fps 15 --source ./images --loop
  framecast send --config $HOME/.framecast/config.toml --frames 100
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return framecast.Version
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "framecast",
		Short:         "UDP video frame transport",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.framecast/config.toml)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error, disabled)")

	root.AddCommand(
		newSendCmd(&cfg, &cfgPath),
		newRecvCmd(&cfg, &cfgPath),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		logger := log.NewConsoleLogger(os.Stderr, zerolog.InfoLevel)
		logger.Error().Err(err).Msg("framecast")
		os.Exit(1)
	}
}

// loadConfig layers the config file and FRAMECAST_* variables under the
// flags the user set explicitly. It returns the config file path in use, or
// "" when there is none.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	} else {
		cfgFile = ""
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return cfgFile, nil
}

func newLogger(cfg *cliconfig.Config) zerolog.Logger {
	return log.NewConsoleLogger(os.Stderr, log.ParseLevel(cfg.LogLevel))
}

func newSendCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	s := &cfg.Sender
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Capture frames and send them to a receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := loadConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateSender(); err != nil {
				return err
			}
			logger := newLogger(cfg)
			logger.Info().Interface("config", cfg.Sender).Msg("configuration")

			libCfg := framecast.SenderConfig{
				Target:     s.Target,
				FPS:        s.FPS,
				ChunkSize:  s.ChunkSize,
				ChunkDelay: s.ChunkDelay,
				Quality:    s.Quality,
				Width:      s.Width,
				Height:     s.Height,
				SourceDir:  s.Source,
				Loop:       s.Loop,
				Frames:     s.Frames,
				StateDir:   s.StateDir,
				SendBuffer: s.SendBuffer,
			}
			// The library treats zero as "use the default".
			if libCfg.ChunkDelay == 0 {
				libCfg.ChunkDelay = -1
			}

			opts := []framecast.Option{
				framecast.WithLogger(log.NewZerologAdapterWithLogger(logger)),
			}
			if cfgFile != "" {
				opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{Path: cfgFile}))
			}

			snd, err := framecast.NewSender(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create sender: %w", err)
			}
			return runUntilSignal(cmd.Context(), logger, snd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&s.Target, "target", s.Target, "receiver address host:port")
	f.Float64Var(&s.FPS, "fps", s.FPS, "frames per second")
	f.IntVar(&s.ChunkSize, "chunk-size", s.ChunkSize, "maximum payload bytes per datagram")
	f.DurationVar(&s.ChunkDelay, "chunk-delay", s.ChunkDelay, "pause between datagrams of one frame")
	f.IntVar(&s.Quality, "quality", s.Quality, "JPEG quality 1-100")
	f.IntVar(&s.Width, "width", s.Width, "test pattern width")
	f.IntVar(&s.Height, "height", s.Height, "test pattern height")
	f.StringVar(&s.Source, "source", s.Source, "directory of images to send (default: generated test pattern)")
	f.IntVar(&s.Frames, "frames", s.Frames, "stop after this many frames (0 = unlimited)")
	f.BoolVar(&s.Loop, "loop", s.Loop, "restart the source directory when exhausted")
	f.StringVar(&s.StateDir, "state-dir", s.StateDir, "directory for status.json (empty disables sequence persistence)")
	f.IntVar(&s.SendBuffer, "send-buffer", s.SendBuffer, "socket send buffer bytes")
	return cmd
}

func newRecvCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	r := &cfg.Receiver
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Receive, verify and deliver frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.ValidateReceiver(); err != nil {
				return err
			}
			logger := newLogger(cfg)
			logger.Info().Interface("config", cfg.Receiver).Msg("configuration")

			libCfg := framecast.ReceiverConfig{
				Listen:         r.Listen,
				SlotTimeout:    r.SlotTimeout,
				MaxSlots:       r.MaxSlots,
				LateWindow:     r.LateWindow,
				QueueSize:      r.QueueSize,
				ExpectedSender: r.ExpectedSender,
				Decode:         r.Decode,
				OutputDir:      r.OutputDir,
				HTTPAddr:       r.HTTPAddr,
				ReceiveBuffer:  r.ReceiveBuffer,
			}
			// The library treats zero as "use the default"; negative disables.
			if libCfg.LateWindow == 0 {
				libCfg.LateWindow = -1
			}

			opts := []framecast.Option{
				framecast.WithLogger(log.NewZerologAdapterWithLogger(logger)),
			}
			if r.CleanupHigh > 0 {
				opts = append(opts, snapshotcleanup.WithSnapshotCleanup(snapshotcleanup.Config{
					HighWatermark:  r.CleanupHigh,
					LowWatermark:   r.CleanupLow,
					RunImmediately: true,
				}))
			}

			rcv, err := framecast.NewReceiver(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create receiver: %w", err)
			}
			return runUntilSignal(cmd.Context(), logger, rcv)
		},
	}

	f := cmd.Flags()
	f.StringVar(&r.Listen, "listen", r.Listen, "UDP address to listen on")
	f.DurationVar(&r.SlotTimeout, "slot-timeout", r.SlotTimeout, "discard partial frames older than this")
	f.IntVar(&r.MaxSlots, "max-slots", r.MaxSlots, "maximum frames under reassembly")
	f.IntVar(&r.LateWindow, "late-window", r.LateWindow, "recently finished sequences remembered to drop late chunks (0 disables)")
	f.IntVar(&r.QueueSize, "queue-size", r.QueueSize, "delivery queue length")
	f.StringVar(&r.ExpectedSender, "expected-sender", r.ExpectedSender, "only accept datagrams from this host or host:port")
	f.StringVar(&r.OutputDir, "output-dir", r.OutputDir, "save delivered frames to this directory")
	f.StringVar(&r.HTTPAddr, "http-addr", r.HTTPAddr, "serve health, stats, metrics and the live viewer on this address")
	f.IntVar(&r.ReceiveBuffer, "receive-buffer", r.ReceiveBuffer, "socket receive buffer bytes")
	f.BoolVar(&r.Decode, "decode", r.Decode, "decode every frame and drop undecodable ones")
	f.Int64Var(&r.CleanupHigh, "cleanup-high", r.CleanupHigh, "prune saved frames when output-dir exceeds this many bytes (0 disables)")
	f.Int64Var(&r.CleanupLow, "cleanup-low", r.CleanupLow, "prune saved frames down to this many bytes (default 3/4 of cleanup-high)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print module versions",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "framecast %s %s/%s\n", getVersion(), runtime.GOOS, runtime.GOARCH)
			for _, name := range []string{"wire", "integrity", "log"} {
				fmt.Fprintf(out, "  %-10s %s\n", name, framecast.ModuleVersions()[name])
			}
		},
	}
}

// runUntilSignal runs r until it finishes on its own or SIGINT/SIGTERM
// arrives.
func runUntilSignal(parent context.Context, logger zerolog.Logger, r root.Runner) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := root.Run(ctx, r)
	if ctx.Err() != nil && parent.Err() == nil {
		logger.Info().Msg("stopped by signal")
	}
	return err
}
