package common

import (
	"testing"
)

func TestBlake2Hash(t *testing.T) {
	h1 := Blake2Hash([]byte("hello"))
	h2 := Blake2Hash([]byte("hello"))
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
	h3 := Blake2Hash([]byte("hello!"))
	if h1 == h3 {
		t.Fatal("distinct inputs produced identical hashes")
	}
	if IsNilHash(h1) {
		t.Fatal("hash of non-empty input is nil")
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	h := Blake2Hash([]byte("round-trip"))
	back := HexToHash(h.Hex())
	if back != h {
		t.Fatalf("hex round trip mismatch: %s vs %s", back, h)
	}
}

func TestUintBytes(t *testing.T) {
	enc := Uint32ToBytes(0xdeadbeef)
	if len(enc) != 4 || enc[0] != 0xef {
		t.Errorf("uint32 encoding not little-endian: %x", enc)
	}
	if got := BytesToUint32(enc); got != 0xdeadbeef {
		t.Errorf("uint32 round trip: got %x", got)
	}
}
