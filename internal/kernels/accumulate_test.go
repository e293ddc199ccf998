package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

func runAccumulate(t *testing.T, offset perforation.TapOffset) []float32 {
	t.Helper()
	input := newTensor(t, []int{1, 1, 4, 4}, ones(16))
	accum := zeros(t, 1, 1, 4, 4)

	var k AccumulateKernel
	require.NoError(t, k.Configure(newCC(), input, accum, offset, 3))
	require.NoError(t, k.Run())
	return accum.AsFloat32()
}

func TestAccumulate_PositiveOffset(t *testing.T) {
	got := runAccumulate(t, perforation.TapOffset{Row: 1, Col: 1})
	assert.Equal(t, []float32{
		1, 1, 1, 0,
		1, 1, 1, 0,
		1, 1, 1, 0,
		0, 0, 0, 0,
	}, got)
}

func TestAccumulate_NegativeOffset(t *testing.T) {
	got := runAccumulate(t, perforation.TapOffset{Row: -1, Col: 0})
	assert.Equal(t, []float32{
		0, 0, 0, 0,
		1, 1, 1, 1,
		1, 1, 1, 1,
		1, 1, 1, 1,
	}, got)
}

func TestAccumulate_ReadsShiftedValues(t *testing.T) {
	// Two planes so the per-(batch, channel) split is exercised.
	input := newTensor(t, []int{1, 2, 2, 3}, seq(12))
	accum := newTensor(t, []int{1, 2, 2, 3}, ones(12))

	var k AccumulateKernel
	require.NoError(t, k.Configure(newCC(), input, accum, perforation.TapOffset{Row: 0, Col: 1}, 3))
	require.NoError(t, k.Run())
	assert.Equal(t, []float32{
		3, 4, 1,
		6, 7, 1,
		9, 10, 1,
		12, 13, 1,
	}, accum.AsFloat32())
	assert.Equal(t, "add_offset_float_3_2_2_1_0", k.ConfigID())
}

func TestValidateAccumulate(t *testing.T) {
	info := tensor.NewInfo(tensor.Shape{1, 1, 4, 4}, tensor.Float32, tensor.NCHW)

	assert.NoError(t, ValidateAccumulate(info, info, perforation.TapOffset{Row: 2, Col: -2}, 5))
	assert.ErrorIs(t, ValidateAccumulate(info, info, perforation.TapOffset{Row: 2}, 3), perforation.ErrConfiguration)

	other := tensor.NewInfo(tensor.Shape{1, 1, 4, 5}, tensor.Float32, tensor.NCHW)
	assert.ErrorIs(t, ValidateAccumulate(info, other, perforation.TapOffset{}, 3), perforation.ErrShapeMismatch)

	nhwc := tensor.NewInfo(tensor.Shape{1, 4, 4, 1}, tensor.Float32, tensor.NHWC)
	assert.ErrorIs(t, ValidateAccumulate(nhwc, nhwc, perforation.TapOffset{}, 3), perforation.ErrUnsupportedDataLayout)
}
