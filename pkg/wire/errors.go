package wire

import "errors"

// Decode errors. Callers match them with errors.Is.
var (
	ErrShortDatagram    = errors.New("wire: datagram too short")
	ErrLengthMismatch   = errors.New("wire: length prefix does not match datagram")
	ErrNotMetadata      = errors.New("wire: datagram is not a metadata packet")
	ErrBadChecksum      = errors.New("wire: checksum has wrong length")
	ErrTooManyChunks    = errors.New("wire: total_chunks exceeds limit")
	ErrEnvelopeTooLarge = errors.New("wire: total_size exceeds limit")
	ErrChunkTooLarge    = errors.New("wire: chunk exceeds datagram payload")
	ErrBadChunkIndex    = errors.New("wire: chunk_index out of range")
	ErrInconsistentSize = errors.New("wire: total_size inconsistent with total_chunks")
)
