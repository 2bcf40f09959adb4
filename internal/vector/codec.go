package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector serializes v as a fixed little-endian float32 sequence
// (§4.8 "vector_blob is an f32[d] serialized with a fixed endianness").
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. It fails on a length that
// is not a multiple of 4 bytes.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
