package integrity

import (
	"bytes"
	"testing"
)

func TestChecksum_Deterministic(t *testing.T) {
	payload := []byte("frame payload")
	a := Checksum(payload)
	b := Checksum(bytes.Clone(payload))
	if a != b {
		t.Fatalf("Checksum not deterministic: %s != %s", a, b)
	}
}

func TestChecksum_KnownVector(t *testing.T) {
	// md5("") is a well-known constant.
	if got := Checksum(nil).String(); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("Checksum(nil) = %s", got)
	}
}

func TestVerify(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 4096)
	d := Checksum(payload)

	if !Verify(payload, d) {
		t.Fatal("Verify() = false for untouched payload")
	}

	for _, pos := range []int{0, 1, 2047, 4095} {
		corrupted := bytes.Clone(payload)
		corrupted[pos] ^= 0x01
		if Verify(corrupted, d) {
			t.Errorf("Verify() = true after flipping byte %d", pos)
		}
	}

	if Verify(payload[:4095], d) {
		t.Error("Verify() = true for truncated payload")
	}
}

func TestFromBytes(t *testing.T) {
	d := Checksum([]byte("x"))

	got, ok := FromBytes(d[:])
	if !ok || got != d {
		t.Fatalf("FromBytes() = %v, %v", got, ok)
	}
	if _, ok := FromBytes(d[:Size-1]); ok {
		t.Error("FromBytes() accepted a short digest")
	}
	if !(Digest{}).IsZero() || d.IsZero() {
		t.Error("IsZero() mismatch")
	}
}
