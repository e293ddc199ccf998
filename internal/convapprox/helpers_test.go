package convapprox

import (
	"bytes"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

var approx = cmpopts.EquateApprox(0, 1e-4)

func newCC() *device.CompileContext {
	return device.NewCompileContext(device.NewCPU())
}

func randomTensor(t *testing.T, rng *rand.Rand, shape ...int) *tensor.RawTensor {
	t.Helper()
	n := 1
	for _, d := range shape {
		n *= d
	}
	values := make([]float32, n)
	for i := range values {
		values[i] = rng.Float32()*2 - 1
	}
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

func direct(t *testing.T, input, weights *tensor.RawTensor, g perforation.Geometry) *tensor.RawTensor {
	t.Helper()
	out, err := kernels.DirectConv2D(input, weights, g)
	require.NoError(t, err)
	return out
}

// withoutTaps returns a copy of weights with the given taps zeroed in every
// filter and channel.
func withoutTaps(t *testing.T, weights *tensor.RawTensor, skip func(tap int) bool) *tensor.RawTensor {
	t.Helper()
	info := weights.Info()
	area := info.Dim(tensor.Width) * info.Dim(tensor.Height)
	values := append([]float32(nil), weights.AsFloat32()...)
	for i := range values {
		if skip(i % area) {
			values[i] = 0
		}
	}
	r, err := tensor.FromFloat32(info.Shape, tensor.NCHW, values)
	require.NoError(t, err)
	return r
}

func assertClose(t *testing.T, want, got []float32) {
	t.Helper()
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
