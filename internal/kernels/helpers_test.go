package kernels

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/tensor"
)

func newCC() *device.CompileContext {
	return device.NewCompileContext(device.NewCPU())
}

func newTensor(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(shape, tensor.NCHW, values)
	require.NoError(t, err)
	return r
}

func zeros(t *testing.T, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.NewInfo(shape, tensor.Float32, tensor.NCHW), tensor.CPU)
	require.NoError(t, err)
	return r
}

// seq returns 1, 2, ..., n.
func seq(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i + 1)
	}
	return v
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
