package embedding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/errs"
	"docrag/internal/models"
)

func TestCheck(t *testing.T) {
	texts := []string{"a", "b"}
	ok := Result{Vectors: [][]float32{{1, 2, 3}, {4, 5, 6}}}
	assert.NoError(t, Check("op", texts, ok, 3))

	short := Result{Vectors: [][]float32{{1, 2, 3}}}
	err := Check("op", texts, short, 3)
	assert.True(t, errors.Is(err, errs.ErrProvider))

	wrongDim := Result{Vectors: [][]float32{{1, 2, 3}, {4, 5}}}
	err = Check("op", texts, wrongDim, 3)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Contains(t, err.Error(), "vector 1")
}

func TestValidInputType(t *testing.T) {
	assert.True(t, ValidInputType(models.InputDocument))
	assert.True(t, ValidInputType(models.InputQuery))
	assert.False(t, ValidInputType("passage"))
}
