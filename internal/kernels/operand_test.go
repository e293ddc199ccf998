package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/tensor"
)

func TestMatrixOperand(t *testing.T) {
	m := MatrixOperand(zeros(t, 2, 3))
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 3, m.Cols)
	assert.Equal(t, 1, m.BatchCount())
	assert.Equal(t, 5, m.Index(0, 1, 2))

	b := MatrixOperand(zeros(t, 4, 2, 3))
	assert.Equal(t, 4, b.BatchCount())
	assert.Equal(t, 6, b.BatchStride)
	assert.Equal(t, 23, b.Index(3, 1, 2))

	tr := m.Transposed()
	assert.Equal(t, 3, tr.Rows)
	assert.Equal(t, 2, tr.Cols)
	assert.Equal(t, m.Index(0, 1, 2), tr.Index(0, 2, 1))

	assert.Panics(t, func() { MatrixOperand(zeros(t, 1, 1, 1, 1)) })
}

func TestOperand_Validate(t *testing.T) {
	w := zeros(t, 2, 3, 2, 2) // [M, C, K, K]

	// Tap 1 of every filter: a strided view that never copies.
	tap := Operand{Tensor: w, Offset: 1, Rows: 2, Cols: 3, RowStride: 12, ColStride: 4}
	require.NoError(t, tap.Validate("tap"))

	tap.Offset = 4
	assert.Error(t, tap.Validate("tap"))

	assert.True(t, Operand{}.IsAbsent())
	assert.Equal(t, "<none>", Operand{}.String())
	assert.Error(t, Operand{}.Validate("bias"))
}

func TestOperand_Float32Unbound(t *testing.T) {
	var scratch tensor.Tensor = unbound{}
	assert.Panics(t, func() { Operand{Tensor: scratch}.Float32() })
}

type unbound struct{}

func (unbound) Info() tensor.Info       { return tensor.Info{} }
func (unbound) Raw() *tensor.RawTensor { return nil }
