// Package wire defines the datagram formats of the frame transport.
//
// A frame message is serialized into an envelope, which is then split into
// chunks. Two kinds of datagram travel on the socket:
//
//	metadata: [length uint32 BE][msgpack {total_chunks, total_size, checksum, sequence}]
//	chunk:    [chunk_index uint32 BE][total_chunks uint32 BE][sequence uint64 BE][bytes...]
//
// There is no type byte. [Parse] tells the two apart: a metadata datagram's
// length prefix equals the remaining length and its body opens with the
// msgpack marker of a four entry map. A chunk could only look like that if its
// total_chunks field exceeded 0x84000000, which [MaxTotalChunks] rules out.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package wire
