package snapshotcleanup

import "github.com/mob852/framecast/pkg/framecast"

// WithSnapshotCleanup returns a framecast Option that keeps the receiver's
// output directory between the configured watermarks.
//
// Usage:
//
//	rcv, err := framecast.NewReceiver(cfg,
//	    snapshotcleanup.WithSnapshotCleanup(snapshotcleanup.Config{
//	        CheckInterval: time.Minute,
//	        HighWatermark: 4 << 30, // 4 GiB
//	        LowWatermark:  3 << 30, // 3 GiB
//	    }),
//	)
func WithSnapshotCleanup(cfg Config) framecast.Option {
	return framecast.WithPlugin(New(cfg))
}

// WithDefaultSnapshotCleanup enables cleanup with default settings (check
// every minute, high watermark 1 GiB, low watermark 768 MiB).
func WithDefaultSnapshotCleanup() framecast.Option {
	return WithSnapshotCleanup(DefaultConfig())
}
