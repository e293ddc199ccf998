package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/tensor"
)

func TestPackOperand_StridedTap(t *testing.T) {
	// Weights [M=2, C=2, 2x2]; the view selects tap 3 of every (filter, channel).
	values := make([]float32, 16)
	for i := range values {
		values[i] = float32(i)
	}
	w, err := tensor.FromFloat32(tensor.Shape{2, 2, 2, 2}, tensor.NCHW, values)
	require.NoError(t, err)

	tap := kernels.Operand{Tensor: w, Offset: 3, Rows: 2, Cols: 2, RowStride: 8, ColStride: 4}
	assert.Equal(t, []float32{3, 7, 11, 15}, packOperand(tap))
}

func TestUnpackOperand_Transposed(t *testing.T) {
	out, err := tensor.NewRaw(tensor.NewInfo(tensor.Shape{2, 3}, tensor.Float32, tensor.NCHW), tensor.CPU)
	require.NoError(t, err)

	view := kernels.MatrixOperand(out).Transposed() // 3x2 view
	unpackOperand(view, []float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float32{1, 3, 5, 2, 4, 6}, out.AsFloat32())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, packOperand(view))
}

func TestFloat32Bytes(t *testing.T) {
	v := []float32{1.5, -2}
	b := float32Bytes(v)
	assert.Len(t, b, 8)
	assert.Equal(t, v, bytesFloat32(b))
	assert.Nil(t, float32Bytes(nil))
	assert.Nil(t, bytesFloat32([]byte{1}))
}

func TestGEMMParams(t *testing.T) {
	p := gemmParams{M: 2, K: 3, N: 4, Batches: 5, LHSBatched: true, HasBias: true, Alpha: 1, Beta: 0.5}
	b := p.bytes()
	assert.Len(t, b, gemmParamsSize)
	assert.Equal(t, byte(2), b[0])
	assert.Equal(t, byte(6), b[16], "lhs batch stride is M*K")
	assert.Equal(t, byte(0), b[20], "rhs is broadcast")
	assert.Equal(t, byte(1), b[24])
}
