package integrity

import (
	"crypto/md5"
	"encoding/hex"
)

// Size is the length of a Digest in bytes.
const Size = md5.Size

// Digest is an MD5 digest of an envelope.
type Digest [Size]byte

// Checksum returns the digest of b.
func Checksum(b []byte) Digest {
	return Digest(md5.Sum(b))
}

// Verify reports whether b hashes to d.
func Verify(b []byte, d Digest) bool {
	return Checksum(b) == d
}

// String returns the lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is all zero bytes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FromBytes copies a raw digest. ok is false if b has the wrong length.
func FromBytes(b []byte) (d Digest, ok bool) {
	if len(b) != Size {
		return Digest{}, false
	}
	copy(d[:], b)
	return d, true
}
