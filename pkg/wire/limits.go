package wire

const (
	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507

	// LengthPrefixSize is the size of the metadata length prefix.
	LengthPrefixSize = 4

	// ChunkHeaderSize is the size of the fixed chunk header.
	ChunkHeaderSize = 16

	// MaxChunkPayload is the largest chunk body that still fits one datagram.
	MaxChunkPayload = MaxDatagramSize - ChunkHeaderSize

	// MaxTotalChunks bounds the chunk count a message may announce.
	MaxTotalChunks = 1 << 20

	// MaxEnvelopeSize bounds the envelope size a message may announce.
	MaxEnvelopeSize = 64 << 20

	// metadataMarker is the msgpack fixmap header for a four entry map.
	metadataMarker = 0x84
)
