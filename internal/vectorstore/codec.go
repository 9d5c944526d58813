package vectorstore

import (
	"encoding/binary"
	"math"

	"docrag/internal/errs"
	"docrag/internal/models"
)

// EncodeVector lays v out as contiguous little-endian float32 values with no
// header or length prefix.
func EncodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

// DecodeVector is the inverse of EncodeVector. A blob that is not exactly
// dim*4 bytes long is a corruption error.
func DecodeVector(b []byte, dim int) ([]float32, error) {
	if dim <= 0 || len(b) != dim*4 {
		return nil, errs.Corruptionf("vector.decode", "blob has %d bytes, want %d", len(b), dim*4)
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func checkDims(op string, recs []models.Record, dim int) error {
	for i, r := range recs {
		if len(r.Embedding) != dim {
			return errs.Inputf(op, "record %d (%s#%d) has dimension %d, want %d", i, r.Filename, r.ChunkIndex, len(r.Embedding), dim)
		}
	}
	return nil
}
