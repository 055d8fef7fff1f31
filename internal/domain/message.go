package domain

import (
	"github.com/mob852/framecast/pkg/integrity"
	"github.com/mob852/framecast/pkg/wire"
)

// Metadata is sent once per message ahead of its chunks.
type Metadata struct {
	Sequence    uint64
	TotalChunks uint32
	TotalSize   uint64
	Checksum    integrity.Digest
}

// ToWire converts Metadata for encoding.
func (m Metadata) ToWire() wire.Metadata {
	sum := m.Checksum
	return wire.Metadata{
		TotalChunks: m.TotalChunks,
		TotalSize:   m.TotalSize,
		Checksum:    sum[:],
		Sequence:    m.Sequence,
	}
}

// MetadataFromWire converts decoded metadata. It reports false when the
// checksum has the wrong length.
func MetadataFromWire(w wire.Metadata) (Metadata, bool) {
	d, ok := w.Digest()
	if !ok {
		return Metadata{}, false
	}
	return Metadata{
		Sequence:    w.Sequence,
		TotalChunks: w.TotalChunks,
		TotalSize:   w.TotalSize,
		Checksum:    d,
	}, true
}

// Chunk is one fragment of a serialized envelope.
type Chunk struct {
	Sequence    uint64
	Index       uint32
	TotalChunks uint32
	Data        []byte
}

// Header returns the wire header for c.
func (c Chunk) Header() wire.ChunkHeader {
	return wire.ChunkHeader{Index: c.Index, TotalChunks: c.TotalChunks, Sequence: c.Sequence}
}

// ChunkFromWire builds a Chunk from a decoded header and its data.
func ChunkFromWire(h wire.ChunkHeader, data []byte) Chunk {
	return Chunk{Sequence: h.Sequence, Index: h.Index, TotalChunks: h.TotalChunks, Data: data}
}
