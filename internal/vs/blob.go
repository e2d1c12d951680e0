package vs

import (
	"encoding/binary"
	"encoding/json"
	"math"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// blobMagic prefixes the little-endian f32 encoding used for every
// vector written after schema v1. Rows written by a pre-release build
// may still carry a bare JSON float array with no prefix; decodeBlob
// falls back to JSON when the magic bytes are absent.
var blobMagic = []byte("CCV1")

// encodeBlob packs a []float32 as: magic (4 bytes) + count (uint32 LE)
// + count * 4-byte LE IEEE-754 floats.
func encodeBlob(v []float32) []byte {
	buf := make([]byte, 4+4+4*len(v))
	copy(buf, blobMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[8+4*i:12+4*i], math.Float32bits(f))
	}
	return buf
}

// decodeBlob reverses encodeBlob, falling back to legacy JSON float
// array decoding when the magic prefix is missing.
func decodeBlob(b []byte) ([]float32, error) {
	if len(b) >= 8 && string(b[:4]) == string(blobMagic) {
		count := binary.LittleEndian.Uint32(b[4:8])
		if len(b) < int(8+4*count) {
			return nil, ccerrors.InternalError("truncated vector blob", nil)
		}
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[8+4*i : 12+4*i]))
		}
		return out, nil
	}

	var legacy []float32
	if err := json.Unmarshal(b, &legacy); err != nil {
		return nil, ccerrors.InternalError("failed to decode legacy JSON vector blob", err)
	}
	return legacy, nil
}
