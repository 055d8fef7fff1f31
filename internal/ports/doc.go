// Package ports defines the interfaces that connect the application layer to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [FrameSource]: produces raw frames at some nominal rate
//   - [Codec]: compresses frames into opaque payloads and back
//   - [DatagramWriter], [DatagramReader]: the unreliable datagram channel
//   - [FrameSink]: consumes delivered frames (disk, live viewer)
//   - [StateRepository]: persists sender state
//   - [Metrics]: counters and histograms for discarded and delivered frames
//   - [Logger]: structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them.
package ports
