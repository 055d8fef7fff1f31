package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mob852/framecast/internal/domain"
)

// FramePrefix and FrameExt frame every saved snapshot name.
const (
	FramePrefix = "frame_"
	FrameExt    = ".jpg"

	frameTimeLayout = "20060102_150405.000"
)

// FrameSaver writes every delivered frame's payload to a directory.
type FrameSaver struct {
	dir string
}

// NewFrameSaver creates the output directory if needed.
func NewFrameSaver(dir string) (*FrameSaver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FrameSaver{dir: dir}, nil
}

// Name implements ports.FrameSink.
func (s *FrameSaver) Name() string { return "disk" }

// Dir returns the output directory.
func (s *FrameSaver) Dir() string { return s.dir }

// Consume writes frame_<seq>_<capture time>.jpg atomically.
func (s *FrameSaver) Consume(ctx context.Context, f domain.DeliveredFrame) error {
	path := filepath.Join(s.dir, FrameFileName(f))
	return writeFileAtomic(path, f.Message.Payload, 0o644)
}

// FrameFileName names a frame by sequence number and capture time, falling
// back to the receive time when the sender sent no timestamp.
func FrameFileName(f domain.DeliveredFrame) string {
	ts := f.Message.CaptureTimestamp
	if ts.IsZero() {
		ts = f.ReceivedAt
	}
	return fmt.Sprintf("%s%010d_%s%s", FramePrefix, f.Message.Sequence, ts.Format(frameTimeLayout), FrameExt)
}

// ParseFrameFileName extracts the sequence number and timestamp from a name
// produced by FrameFileName.
func ParseFrameFileName(name string) (uint64, time.Time, bool) {
	if !strings.HasPrefix(name, FramePrefix) || !strings.HasSuffix(name, FrameExt) {
		return 0, time.Time{}, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, FramePrefix), FrameExt)
	seqPart, tsPart, ok := strings.Cut(core, "_")
	if !ok {
		return 0, time.Time{}, false
	}
	var seq uint64
	if _, err := fmt.Sscanf(seqPart, "%d", &seq); err != nil {
		return 0, time.Time{}, false
	}
	ts, err := time.ParseInLocation(frameTimeLayout, tsPart, time.Local)
	if err != nil {
		return 0, time.Time{}, false
	}
	return seq, ts, true
}
