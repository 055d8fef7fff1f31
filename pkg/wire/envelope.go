package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// LocalTimeLayout formats the sender's wall clock in an envelope.
const LocalTimeLayout = "2006-01-02 15:04:05.00"

// Envelope is the serialized form of one frame message.
// Encoding is deterministic: fields are written in declaration order.
type Envelope struct {
	Timestamp float64 `msgpack:"timestamp"`
	Frame     []byte  `msgpack:"frame"`
	LocalTime string  `msgpack:"local_time"`
	Sequence  uint64  `msgpack:"sequence"`
}

// EncodeEnvelope serializes e.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses bytes produced by EncodeEnvelope.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	return e, nil
}
