package framecast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mob852/framecast/internal/adapters/codec"
	"github.com/mob852/framecast/internal/adapters/fs"
	logAdapter "github.com/mob852/framecast/internal/adapters/log"
	"github.com/mob852/framecast/internal/adapters/source"
	"github.com/mob852/framecast/internal/adapters/udp"
	"github.com/mob852/framecast/internal/app"
	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
)

// Sender captures frames and streams them to a receiver.
// Use NewSender to create one, then Start to begin sending.
type Sender struct {
	config    SenderConfig
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger
	emitter   *eventEmitterWrapper
	frag      *app.Fragmenter
	metrics   ports.SenderMetrics

	mu            sync.RWMutex
	run           *app.Sender
	pacer         *app.Pacer
	done          chan struct{}
	pluginsActive bool
	cancel        context.CancelFunc
}

// NewSender creates a Sender in StateStopped.
func NewSender(cfg SenderConfig, opts ...Option) (*Sender, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(o.writer != nil); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	frag, err := app.NewFragmenter(cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	metrics := o.senderMetrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	done := make(chan struct{})
	close(done)

	return &Sender{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		logger:    logger,
		emitter:   emitter,
		frag:      frag,
		metrics:   metrics,
		done:      done,
	}, nil
}

// Start begins sending in the background.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.lifecycle.SetCancel(cancel)

	if err := initPlugins(runCtx, s.opts.plugins, PluginConfig{
		Role:      RoleSender,
		SessionID: s.config.SessionID,
		Logger:    s.logger,
		StateDir:  s.config.StateDir,
		Pacing:    s,
	}, s.logger); err != nil {
		cancel()
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed")
		return err
	}

	run, pacer, err := s.build()
	if err != nil {
		cancel()
		shutdownPlugins(s.opts.plugins, s.logger)
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "setup failed: "+err.Error())
		return err
	}
	s.run = run
	s.pacer = pacer
	s.pluginsActive = len(s.opts.plugins) > 0

	if err := s.lifecycle.TransitionTo(app.StateRunning, "sender starting"); err != nil {
		cancel()
		run.Close()
		s.run, s.pacer = nil, nil
		shutdownPlugins(s.opts.plugins, s.logger)
		s.pluginsActive = false
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "start failed: "+err.Error())
		return err
	}

	done := make(chan struct{})
	s.done = done
	s.lifecycle.Go(func() error {
		defer close(done)
		return run.Run(runCtx)
	})
	return nil
}

func (s *Sender) build() (*app.Sender, *app.Pacer, error) {
	src := s.opts.source
	// Injected components serve one run only.
	s.opts.source = nil
	switch {
	case src != nil:
	case s.config.SourceDir != "":
		dir, err := source.NewDirectory(s.config.SourceDir, s.config.Loop)
		if err != nil {
			return nil, nil, err
		}
		src = dir
	default:
		pattern, err := source.NewPattern(s.config.Width, s.config.Height, 0)
		if err != nil {
			return nil, nil, err
		}
		src = pattern
	}
	if s.config.Frames > 0 {
		src = limitSource(src, s.config.Frames)
	}

	enc := s.opts.codec
	if enc == nil {
		c, err := codec.NewJPEG(s.config.Quality)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
		enc = c
	}

	writer := s.opts.writer
	s.opts.writer = nil
	if writer == nil {
		w, err := udp.Dial(s.config.Target, s.config.SendBuffer)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
		writer = w
	}

	var stateRepo ports.StateRepository
	if s.config.StateDir != "" {
		stateRepo = fs.NewStateFileRepository(s.config.StateDir)
	}

	fps, delay := s.config.FPS, s.config.ChunkDelay
	pacer := app.NewPacer(writer, fps, delay, s.config.ThroughputWindow)

	run := app.NewSender(
		app.SenderConfig{SessionID: s.config.SessionID},
		src, enc, s.frag, pacer, writer, stateRepo, s.metrics, s.logger, s.emitter,
	)
	return run, pacer, nil
}

// Stop cancels the send loop and waits for it to persist its state.
// Returns ErrShutdownTimeout if the loop does not end within
// app.ShutdownTimeout, and ErrNotRunning if the sender already stopped.
func (s *Sender) Stop() error {
	s.mu.Lock()
	if !s.lifecycle.CanStop() {
		// The loop may have ended on its own; plugins still need a shutdown.
		active := s.pluginsActive
		s.pluginsActive = false
		s.mu.Unlock()
		if active {
			shutdownPlugins(s.opts.plugins, s.logger)
			return nil
		}
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.pluginsActive = false
	s.mu.Unlock()

	err := s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	shutdownPlugins(s.opts.plugins, s.logger)

	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Done is closed when the current run ends, whether by Stop, by the source
// running out or by a failure.
func (s *Sender) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Status returns the current lifecycle state.
func (s *Sender) Status() State {
	return convertState(s.lifecycle.State())
}

// SessionID returns the session identifier.
func (s *Sender) SessionID() string { return s.config.SessionID }

// Stats returns the counters of the current or last run.
func (s *Sender) Stats() SenderStats {
	s.mu.RLock()
	run := s.run
	s.mu.RUnlock()
	if run == nil {
		return SenderStats{SessionID: s.config.SessionID}
	}
	return run.Stats()
}

// SetPacing changes the frame rate and inter-chunk delay. It takes effect
// immediately on a running sender and is kept for later runs.
func (s *Sender) SetPacing(fps float64, chunkDelay time.Duration) {
	s.mu.Lock()
	if fps > 0 {
		s.config.FPS = fps
	}
	if chunkDelay >= 0 {
		s.config.ChunkDelay = chunkDelay
	}
	pacer := s.pacer
	fps, chunkDelay = s.config.FPS, s.config.ChunkDelay
	s.mu.Unlock()

	if pacer != nil {
		pacer.SetPacing(fps, chunkDelay)
	}
	s.logger.Info("pacing updated", ports.Float64("fps", fps), ports.Duration("chunk_delay", chunkDelay))
}

// Pacing returns the configured frame rate and inter-chunk delay.
func (s *Sender) Pacing() (float64, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.FPS, s.config.ChunkDelay
}

// limitedSource ends after n frames.
type limitedSource struct {
	ports.FrameSource
	left int
}

func limitSource(src ports.FrameSource, n int) ports.FrameSource {
	return &limitedSource{FrameSource: src, left: n}
}

func (l *limitedSource) Next(ctx context.Context) (domain.RawFrame, error) {
	if l.left <= 0 {
		return domain.RawFrame{}, ports.ErrSourceExhausted
	}
	l.left--
	return l.FrameSource.Next(ctx)
}

func initPlugins(ctx context.Context, plugins []Plugin, cfg PluginConfig, logger ports.Logger) error {
	for i, p := range plugins {
		if err := p.Initialize(ctx, cfg); err != nil {
			logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			shutdownPlugins(plugins[:i], logger)
			return err
		}
		logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}
	return nil
}

// shutdownPlugins stops plugins in reverse order.
func shutdownPlugins(plugins []Plugin, logger ports.Logger) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}
