// Package domain contains the core entities and value objects for framecast.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (sockets, file system, logging) beyond the pure
// wire and integrity packages that define the on-the-wire shape of its values.
//
// # Entities
//
//   - [FrameMessage]: one captured frame plus sequence number and timestamps
//   - [Metadata]: the per-message header sent ahead of the chunks
//   - [Chunk]: one size-bounded fragment of a serialized envelope
//   - [Outcome]: the terminal result of reassembling one sequence number
//   - [State]: persistent sender state for restart safety
package domain
