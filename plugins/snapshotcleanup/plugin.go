// Package snapshotcleanup bounds the disk space used by saved frames.
// When enabled, it periodically removes the oldest frame files once the
// output directory grows past a high watermark.
package snapshotcleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mob852/framecast/internal/adapters/fs"
	"github.com/mob852/framecast/internal/ports"
	"github.com/mob852/framecast/pkg/framecast"
)

// Plugin implements frame cleanup for a receiver output directory.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	checkInterval  time.Duration
	highWatermark  int64
	lowWatermark   int64
	runImmediately bool

	// Runtime state
	dir     string
	logger  framecast.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	removed int
}

// Config holds configuration options for the cleanup plugin.
type Config struct {
	// CheckInterval is how often the directory size is checked.
	// Default: 1 minute
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which cleanup begins.
	// Default: 1 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after cleanup.
	// Default: 3/4 of HighWatermark
	LowWatermark int64

	// RunImmediately runs a check on startup.
	RunImmediately bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  time.Minute,
		HighWatermark:  1 << 30,
		LowWatermark:   3 << 28,
		RunImmediately: true,
	}
}

// New creates a new cleanup plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = 1 << 30
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark >= cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark / 4 * 3
	}

	return &Plugin{
		checkInterval:  cfg.CheckInterval,
		highWatermark:  cfg.HighWatermark,
		lowWatermark:   cfg.LowWatermark,
		runImmediately: cfg.RunImmediately,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "snapshotcleanup"
}

// Initialize starts the cleanup loop when the receiver saves frames.
func (p *Plugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	p.mu.Lock()
	p.dir = cfg.OutputDir
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.dir == "" {
		p.logger.Warn("frame cleanup disabled: no output directory configured")
		return nil
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("frame cleanup initialized",
		ports.String("dir", p.dir),
		ports.String("high", formatBytes(p.highWatermark)),
		ports.String("low", formatBytes(p.lowWatermark)),
	)

	p.wg.Add(1)
	go p.cleanupLoop(cleanupCtx)
	return nil
}

// Shutdown stops the cleanup loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// Removed returns how many frame files were deleted so far.
func (p *Plugin) Removed() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.removed
}

func (p *Plugin) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.runImmediately {
		p.cleanupOnce(ctx)
	}

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupOnce(ctx)
		}
	}
}

// cleanupOnce removes the oldest frames until the directory is below the low
// watermark. Files that are not frames are counted but never removed.
func (p *Plugin) cleanupOnce(ctx context.Context) {
	p.mu.RLock()
	dir := p.dir
	p.mu.RUnlock()

	frames, curSize, err := scanFrames(dir)
	if err != nil {
		p.logger.Error("frame cleanup: scan failed", ports.Err(err))
		return
	}
	if curSize <= p.highWatermark {
		return
	}

	var freed int64
	removed := 0
	for _, f := range frames {
		if ctx.Err() != nil {
			break
		}
		if curSize <= p.lowWatermark {
			break
		}
		if err := os.Remove(f.path); err != nil {
			p.logger.Error("frame cleanup: remove failed", ports.String("file", f.path), ports.Err(err))
			continue
		}
		curSize -= f.size
		freed += f.size
		removed++
	}

	if removed > 0 {
		p.mu.Lock()
		p.removed += removed
		p.mu.Unlock()
		p.logger.Info("frame cleanup completed",
			ports.Int("files", removed),
			ports.String("freed", formatBytes(freed)),
			ports.String("remaining", formatBytes(curSize)),
		)
	}
}

type frameFile struct {
	path     string
	size     int64
	sequence uint64
	captured time.Time
}

// scanFrames lists frame files oldest first and returns the total size of
// every regular file in dir.
func scanFrames(dir string) ([]frameFile, int64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var frames []frameFile
	for _, e := range ents {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		total += info.Size()

		seq, captured, ok := fs.ParseFrameFileName(e.Name())
		if !ok {
			continue
		}
		frames = append(frames, frameFile{
			path:     filepath.Join(dir, e.Name()),
			size:     info.Size(),
			sequence: seq,
			captured: captured,
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		if !frames[i].captured.Equal(frames[j].captured) {
			return frames[i].captured.Before(frames[j].captured)
		}
		return frames[i].sequence < frames[j].sequence
	})
	return frames, total, nil
}

func formatBytes(b int64) string {
	const (
		_          = iota
		KB float64 = 1 << (10 * iota)
		MB
		GB
	)

	fb := float64(b)
	switch {
	case fb >= GB:
		return fmt.Sprintf("%.2fGiB", fb/GB)
	case fb >= MB:
		return fmt.Sprintf("%.2fMiB", fb/MB)
	case fb >= KB:
		return fmt.Sprintf("%.2fKiB", fb/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Ensure Plugin implements framecast.Plugin.
var _ framecast.Plugin = (*Plugin)(nil)
