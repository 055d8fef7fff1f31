// Package integrity computes and verifies fixed-size content digests over
// serialized frame envelopes.
//
// The digest guards against accidental corruption on an unreliable datagram
// path (truncated reads, misordered reassembly, bit flips). It is not a MAC
// and offers no protection against a deliberate attacker.
//
//	d := integrity.Checksum(envelope)
//	if !integrity.Verify(reassembled, d) {
//	    // discard the message
//	}
package integrity
