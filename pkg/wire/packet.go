package wire

// Kind identifies what a datagram carries.
type Kind int

const (
	KindInvalid Kind = iota
	KindMetadata
	KindChunk
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindChunk:
		return "chunk"
	default:
		return "invalid"
	}
}

// Packet is a parsed datagram. Only the fields matching Kind are set.
type Packet struct {
	Kind     Kind
	Metadata Metadata
	Chunk    ChunkHeader
	// Data aliases the datagram buffer for chunks.
	Data []byte
}

// Parse classifies and decodes one datagram.
func Parse(b []byte) (Packet, error) {
	if looksLikeMetadata(b) {
		m, err := DecodeMetadata(b)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: KindMetadata, Metadata: m}, nil
	}
	h, data, err := DecodeChunk(b)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Kind: KindChunk, Chunk: h, Data: data}, nil
}

// Classify reports the kind of a datagram without keeping the decoded values.
func Classify(b []byte) Kind {
	p, err := Parse(b)
	if err != nil {
		return KindInvalid
	}
	return p.Kind
}
