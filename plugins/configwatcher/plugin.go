// Package configwatcher reloads sender pacing when the config file changes.
// Edits to fps and chunk_delay in the [sender] table take effect on the
// running sender without a restart.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mob852/framecast/internal/cliconfig"
	"github.com/mob852/framecast/internal/ports"
	"github.com/mob852/framecast/pkg/framecast"
)

// Plugin watches one TOML config file.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	path          string
	debounceDelay time.Duration

	// Runtime state
	pacing   framecast.PacingControl
	logger   framecast.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch. Default: ~/.framecast/config.toml
	Path string

	// DebounceDelay is how long to wait after the last change before
	// reloading. Editors often write a file in several steps.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Path == "" {
		cfg.Path = cliconfig.DefaultConfigPath()
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching when attached to a sender.
func (p *Plugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	p.mu.Lock()
	p.pacing = cfg.Pacing
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.pacing == nil {
		p.logger.Warn("config watcher disabled: host has no pacing to adjust",
			ports.String("role", string(cfg.Role)))
		return nil
	}
	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config file path")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files instead of writing in place.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher initialized", ports.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns how many times pacing was applied from the file.
func (p *Plugin) Reloads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", ports.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies fps and chunk_delay from the file. Missing keys keep the
// current values.
func (p *Plugin) reload() {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Warn("config reload failed", ports.String("path", p.path), ports.Err(err))
		return
	}

	delay := time.Duration(-1)
	if fc.Sender.ChunkDelay != "" {
		d, err := time.ParseDuration(fc.Sender.ChunkDelay)
		if err != nil || d < 0 {
			p.logger.Warn("config reload: invalid chunk_delay", ports.String("value", fc.Sender.ChunkDelay))
			return
		}
		delay = d
	}

	p.pacing.SetPacing(fc.Sender.FPS, delay)

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
}

// Ensure Plugin implements framecast.Plugin.
var _ framecast.Plugin = (*Plugin)(nil)
