package vectorstore

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func TestCodecRoundTrip1024(t *testing.T) {
	v := make([]float32, 1024)
	for i := range v {
		v[i] = float32(math.Sin(float64(i))) * 3.5
	}
	b := EncodeVector(v)
	require.Len(t, b, 4096)
	got, err := DecodeVector(b, 1024)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestCodecLittleEndianNoHeader(t *testing.T) {
	b := EncodeVector([]float32{1})
	// 1.0f == 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, b)
}

func TestDecodeWrongLengthIsCorruption(t *testing.T) {
	for _, n := range []int{0, 3, 4092, 4100} {
		_, err := DecodeVector(make([]byte, n), 1024)
		require.Error(t, err, "len %d", n)
		assert.True(t, errors.Is(err, errs.ErrCorruption))
	}
}
