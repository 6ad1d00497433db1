// Package codec implements the deterministic binary encoding used for
// headers, blocks and witness payloads. Integers are little-endian,
// variable-length collections carry a compact length prefix, struct fields
// encode in declaration order and pointers encode as optional values.
package codec

import (
	"bytes"
	"fmt"
)

// Encode serializes v to its canonical binary form.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses data into v, which must be a non-nil pointer. The input must
// be consumed exactly.
func Decode(data []byte, v interface{}) error {
	r := bytes.NewReader(data)
	if err := decodeValue(r, v); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("codec: %d trailing bytes after decode", r.Len())
	}
	return nil
}

// EncodeCompactLength writes n as a compact unsigned varint, 7 bits per byte.
func EncodeCompactLength(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// DecodeCompactLength reads a compact unsigned varint from r.
func DecodeCompactLength(r *bytes.Reader) (uint64, error) {
	var n uint64
	var shift uint
	for {
		if shift > 63 {
			return 0, fmt.Errorf("codec: compact length overflows uint64")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("codec: truncated compact length: %w", err)
		}
		n |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return n, nil
		}
		shift += 7
	}
}
