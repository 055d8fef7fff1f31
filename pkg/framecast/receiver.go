package framecast

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mob852/framecast/internal/adapters/codec"
	"github.com/mob852/framecast/internal/adapters/fs"
	httpAdapter "github.com/mob852/framecast/internal/adapters/http"
	logAdapter "github.com/mob852/framecast/internal/adapters/log"
	"github.com/mob852/framecast/internal/adapters/metrics"
	"github.com/mob852/framecast/internal/adapters/udp"
	"github.com/mob852/framecast/internal/app"
	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/internal/ports"
	"github.com/mob852/framecast/pkg/log"
)

// Receiver reassembles frames from datagrams and hands them to sinks.
// Use NewReceiver to create one, then Start to begin receiving.
type Receiver struct {
	config    ReceiverConfig
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger
	emitter   *eventEmitterWrapper
	metrics   ports.ReceiverMetrics
	handler   http.Handler // serves /metrics; nil without HTTPAddr
	viewer    *httpAdapter.Viewer

	mu            sync.RWMutex
	run           *app.Receiver
	addr          net.Addr
	done          chan struct{}
	pluginsActive bool
	cancel        context.CancelFunc
}

// NewReceiver creates a Receiver in StateStopped.
func NewReceiver(cfg ReceiverConfig, opts ...Option) (*Receiver, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(o.reader != nil); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}

	r := &Receiver{
		config:  cfg,
		opts:    o,
		logger:  logger,
		emitter: &eventEmitterWrapper{handler: o.eventHandler},
	}
	r.lifecycle = app.NewLifecycle(logger, r.emitter)

	r.metrics = o.receiverMetrics
	if h, ok := r.metrics.(interface{ Handler() http.Handler }); ok {
		r.handler = h.Handler()
	}
	if r.metrics == nil {
		if cfg.HTTPAddr != "" {
			prom := metrics.NewPrometheus(cfg.SessionID)
			r.metrics = prom
			r.handler = prom.Handler()
		} else {
			r.metrics = ports.NoopMetrics{}
		}
	}
	if cfg.HTTPAddr != "" {
		r.viewer = httpAdapter.NewViewer(logger)
	}

	done := make(chan struct{})
	close(done)
	r.done = done
	return r, nil
}

// Start binds the socket and begins receiving in the background.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.lifecycle.SetCancel(cancel)

	if err := initPlugins(runCtx, r.opts.plugins, PluginConfig{
		Role:      RoleReceiver,
		SessionID: r.config.SessionID,
		Logger:    r.logger,
		OutputDir: r.config.OutputDir,
	}, r.logger); err != nil {
		cancel()
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed")
		return err
	}

	run, err := r.build()
	if err != nil {
		cancel()
		shutdownPlugins(r.opts.plugins, r.logger)
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "setup failed: "+err.Error())
		return err
	}
	r.run = run
	r.pluginsActive = len(r.opts.plugins) > 0

	var server *httpAdapter.Server
	if r.config.HTTPAddr != "" {
		server = httpAdapter.NewServer(httpAdapter.ServerConfig{
			Addr:    r.config.HTTPAddr,
			Stats:   func() any { return r.Stats() },
			Metrics: r.handler,
			Viewer:  r.viewer,
			Logger:  zerologFor(r.logger),
		})
	}

	if err := r.lifecycle.TransitionTo(app.StateRunning, "receiver starting"); err != nil {
		cancel()
		run.Close()
		r.run = nil
		shutdownPlugins(r.opts.plugins, r.logger)
		r.pluginsActive = false
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "start failed: "+err.Error())
		return err
	}

	done := make(chan struct{})
	r.done = done
	r.lifecycle.Go(func() error {
		defer close(done)
		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error { return run.Run(gctx) })
		if server != nil {
			g.Go(func() error { return server.Run(gctx) })
		}
		return g.Wait()
	})
	return nil
}

func (r *Receiver) build() (*app.Receiver, error) {
	var expected *net.UDPAddr
	if r.config.ExpectedSender != "" {
		a, err := udp.ResolveSender(r.config.ExpectedSender)
		if err != nil {
			return nil, err
		}
		expected = a
	}

	dec := r.opts.codec
	if dec == nil {
		c, err := codec.NewJPEG(codec.DefaultQuality)
		if err != nil {
			return nil, err
		}
		dec = c
	}

	sinks := append([]ports.FrameSink(nil), r.opts.sinks...)
	if r.config.OutputDir != "" {
		saver, err := fs.NewFrameSaver(r.config.OutputDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, saver)
	}
	if r.viewer != nil {
		sinks = append(sinks, r.viewer)
	}
	if r.opts.eventHandler != nil {
		sinks = append(sinks, eventSink{handler: r.opts.eventHandler})
	}

	reader := r.opts.reader
	r.opts.reader = nil
	if reader == nil {
		rd, err := udp.Listen(r.config.Listen, r.config.ReceiveBuffer)
		if err != nil {
			return nil, err
		}
		reader = rd
	}
	r.addr = reader.LocalAddr()

	reasm := r.config.reassembly()
	reasm.OnFinish = r.emitter.onFinish

	run, err := app.NewReceiver(app.ReceiverConfig{
		Reassembly:     reasm,
		QueueSize:      r.config.QueueSize,
		ExpectedSender: expected,
		DecodeFrames:   r.config.Decode,
	}, reader, dec, sinks, r.metrics, r.logger)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return run, nil
}

// Stop closes the socket and waits for queued frames to reach the sinks.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if !r.lifecycle.CanStop() {
		active := r.pluginsActive
		r.pluginsActive = false
		r.mu.Unlock()
		if active {
			shutdownPlugins(r.opts.plugins, r.logger)
			return nil
		}
		return domain.ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.pluginsActive = false
	r.mu.Unlock()

	err := r.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	shutdownPlugins(r.opts.plugins, r.logger)

	if err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Done is closed when the current run ends.
func (r *Receiver) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// Status returns the current lifecycle state.
func (r *Receiver) Status() State {
	return convertState(r.lifecycle.State())
}

// Addr returns the bound socket address, or nil before the first Start.
func (r *Receiver) Addr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addr
}

// SessionID returns the session identifier.
func (r *Receiver) SessionID() string { return r.config.SessionID }

// Stats returns the counters of the current or last run.
func (r *Receiver) Stats() ReceiverStats {
	r.mu.RLock()
	run := r.run
	r.mu.RUnlock()
	if run == nil {
		return ReceiverStats{}
	}
	return run.Stats()
}

// zerologFor unwraps the zerolog logger behind a log.ZerologAdapter so the
// HTTP request log ends up in the same stream.
func zerologFor(l ports.Logger) zerolog.Logger {
	if z, ok := l.(*log.ZerologAdapter); ok {
		return z.Logger()
	}
	return zerolog.Nop()
}
