package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

func TestFilterPerf_Compacts(t *testing.T) {
	// Two filters, one channel, 3x3: filter m has value 10*m + tap.
	w := make([]float32, 18)
	for m := 0; m < 2; m++ {
		for tap := 0; tap < 9; tap++ {
			w[m*9+tap] = float32(10*m + tap)
		}
	}
	weights := newTensor(t, []int{2, 1, 3, 3}, w)
	output := zeros(t, 5, 2)

	var k FilterPerfKernel
	require.NoError(t, k.Configure(newCC(), weights, output, perforation.Filter(0, 2)))
	require.NoError(t, k.Run())

	assert.Equal(t, []float32{
		0, 10,
		2, 12,
		4, 14,
		6, 16,
		8, 18,
	}, output.AsFloat32())
}

func TestFilterPerf_ChannelMajor(t *testing.T) {
	// One filter, two channels, 2x2, no perforation.
	weights := newTensor(t, []int{1, 2, 2, 2}, seq(8))
	output := zeros(t, 8, 1)

	var k FilterPerfKernel
	require.NoError(t, k.Configure(newCC(), weights, output, perforation.None()))
	require.NoError(t, k.Run())
	assert.Equal(t, seq(8), output.AsFloat32())
}

func TestValidateFilterPerf(t *testing.T) {
	weights := tensor.NewInfo(tensor.Shape{4, 2, 3, 3}, tensor.Float32, tensor.NCHW)
	require.NoError(t, ValidateFilterPerf(weights, tensor.Info{}, perforation.Filter(0, 3)))

	wrong := tensor.NewInfo(tensor.Shape{18, 4}, tensor.Float32, tensor.NCHW)
	assert.ErrorIs(t, ValidateFilterPerf(weights, wrong, perforation.Filter(0, 3)), perforation.ErrShapeMismatch)

	ok := tensor.NewInfo(tensor.Shape{12, 4}, tensor.Float32, tensor.NCHW)
	assert.NoError(t, ValidateFilterPerf(weights, ok, perforation.Filter(0, 3)))
}
