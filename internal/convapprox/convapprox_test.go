package convapprox

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

func runConvApprox(t *testing.T, input, weights, bias *tensor.RawTensor, g perforation.Geometry, p perforation.Policy, opts ...Option) (*tensor.RawTensor, *ConvApprox) {
	t.Helper()
	plan, err := perforation.PlanConvolution(input.Info(), weights.Info(), g, p)
	require.NoError(t, err)
	output := zeros(t, plan.OutputShape()...)

	op := New(opts...)
	t.Cleanup(op.Close)
	var b tensor.Tensor
	if bias != nil {
		b = bias
	}
	require.NoError(t, op.Configure(newCC(), input, weights, b, output, g, p))
	require.NoError(t, op.Prepare())
	require.NoError(t, op.Run())
	return output, op
}

func TestConvApprox_NoneMatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		name string
		k    int
		g    perforation.Geometry
	}{
		{"same_k3", 3, perforation.SameGeometry(3)},
		{"same_k5", 5, perforation.SameGeometry(5)},
		{"stride2_valid", 3, perforation.NewGeometry(2, 0)},
		{"dilated", 3, perforation.Geometry{Dilation: perforation.Size2D{W: 2, H: 2}, Pad: perforation.Padding{Left: 2, Right: 2, Top: 2, Bottom: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := randomTensor(t, rng, 2, 3, 7, 6)
			weights := randomTensor(t, rng, 4, 3, tt.k, tt.k)

			got, _ := runConvApprox(t, input, weights, nil, tt.g, perforation.None())
			assertClose(t, direct(t, input, weights, tt.g).AsFloat32(), got.AsFloat32())
		})
	}
}

func TestConvApprox_FilterDropsTaps(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, every := range []int{2, 3, 4} {
		t.Run(fmt.Sprintf("every%d", every), func(t *testing.T) {
			input := randomTensor(t, rng, 1, 2, 6, 6)
			weights := randomTensor(t, rng, 3, 2, 3, 3)
			g := perforation.SameGeometry(3)
			p := perforation.Filter(0, every)

			got, op := runConvApprox(t, input, weights, nil, g, p)
			assert.Len(t, op.Plan().KeptTaps, 9-9/every)

			// Dropping a tap is the same as convolving with that weight at zero.
			want := direct(t, input, withoutTaps(t, weights, p.Skips), g)
			assertClose(t, want.AsFloat32(), got.AsFloat32())
		})
	}
}

func TestConvApprox_RowReconstruction(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for _, every := range []int{2, 3} {
		t.Run(fmt.Sprintf("every%d", every), func(t *testing.T) {
			input := randomTensor(t, rng, 1, 2, 6, 5)
			weights := randomTensor(t, rng, 2, 2, 3, 3)
			g := perforation.SameGeometry(3)

			got, op := runConvApprox(t, input, weights, nil, g, perforation.Row(0, every))
			assert.Equal(t, perforation.EffectiveExtent(6, every), op.Plan().EffH)

			exact := direct(t, input, weights, g).AsFloat32()
			out := got.AsFloat32()
			const H, W = 6, 5
			for plane := 0; plane < 2; plane++ {
				for r := 0; r < H; r++ {
					src := r
					if (r+1)%every == 0 {
						src = r - 1
					}
					base := plane * H * W
					assertClose(t, exact[base+src*W:base+(src+1)*W], out[base+r*W:base+(r+1)*W])
				}
			}
		})
	}
}

func TestConvApprox_Bias(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	input := randomTensor(t, rng, 1, 2, 4, 4)
	weights := randomTensor(t, rng, 3, 2, 3, 3)
	bias, err := tensor.FromFloat32(tensor.Shape{3}, tensor.NCHW, []float32{1, 2, 3})
	require.NoError(t, err)
	g := perforation.SameGeometry(3)

	got, _ := runConvApprox(t, input, weights, bias, g, perforation.None())

	want := direct(t, input, weights, g).AsFloat32()
	for m := 0; m < 3; m++ {
		for i := 0; i < 16; i++ {
			want[m*16+i] += float32(m + 1)
		}
	}
	assertClose(t, want, got.AsFloat32())
}

func TestConvApprox_EndToEndFilterShapes(t *testing.T) {
	input, err := tensor.FromFloat32(tensor.Shape{1, 1, 4, 4}, tensor.NCHW, make([]float32, 16))
	require.NoError(t, err)
	weights := zeros(t, 2, 1, 3, 3)
	g := perforation.SameGeometry(3)

	exact, err := perforation.PlanConvolution(input.Info(), weights.Info(), g, perforation.None())
	require.NoError(t, err)
	assert.Equal(t, 9, exact.PatchShape()[2])

	got, op := runConvApprox(t, input, weights, nil, g, perforation.Filter(0, 2))
	assert.Equal(t, 5, op.patches.Info().Shape[2], "operand width drops from 9 to 5")
	assert.Equal(t, tensor.Shape{5, 2}, op.filter.Info().Shape)
	assert.Equal(t, exact.OutputShape(), got.Shape())
}

func TestConvApprox_Errors(t *testing.T) {
	input := zeros(t, 1, 2, 5, 5)
	weights := zeros(t, 3, 2, 3, 3)
	output := zeros(t, 1, 3, 5, 5)
	g := perforation.SameGeometry(3)

	t.Run("nhwc", func(t *testing.T) {
		nhwc := tensor.NewInfo(tensor.Shape{1, 5, 5, 2}, tensor.Float32, tensor.NHWC)
		err := ValidateConvApprox(nhwc, weights.Info(), tensor.Info{}, tensor.Info{}, g, perforation.None())
		assert.ErrorIs(t, err, perforation.ErrUnsupportedDataLayout)
	})
	t.Run("column", func(t *testing.T) {
		_, err := perforation.NewPolicy(perforation.ModeColumn, 0, 2)
		assert.ErrorIs(t, err, perforation.ErrConfiguration)
	})
	t.Run("nonzero start", func(t *testing.T) {
		err := ValidateConvApprox(input.Info(), weights.Info(), tensor.Info{}, output.Info(), g, perforation.Row(1, 2))
		assert.ErrorIs(t, err, perforation.ErrConfiguration)
	})
	t.Run("output shape", func(t *testing.T) {
		logger, buf := bufferLogger()
		op := New(WithLogger(logger))
		defer op.Close()

		err := op.Configure(newCC(), input, weights, nil, zeros(t, 1, 3, 4, 4), g, perforation.None())
		assert.ErrorIs(t, err, perforation.ErrShapeMismatch)
		assert.Contains(t, buf.String(), "expected [1 3 5 5]")
		assert.Contains(t, buf.String(), "[1 3 4 4]")
	})
	t.Run("bias size", func(t *testing.T) {
		bias := tensor.NewInfo(tensor.Shape{2}, tensor.Float32, tensor.NCHW)
		err := ValidateConvApprox(input.Info(), weights.Info(), bias, output.Info(), g, perforation.None())
		assert.ErrorIs(t, err, perforation.ErrShapeMismatch)
	})
	t.Run("run before configure", func(t *testing.T) {
		op := New()
		defer op.Close()
		assert.ErrorIs(t, op.Run(), perforation.ErrProgramming)
		assert.ErrorIs(t, op.Prepare(), perforation.ErrProgramming)
	})
	t.Run("nil compile context", func(t *testing.T) {
		op := New()
		defer op.Close()
		assert.ErrorIs(t, op.Configure(nil, input, weights, nil, output, g, perforation.None()), perforation.ErrProgramming)
	})
}

type failingGEMM struct{ err error }

func (f failingGEMM) GEMM(_, _, _, _ kernels.Operand, _, _ float32) error { return f.err }

func TestConvApprox_KernelFailure(t *testing.T) {
	boom := errors.New("device lost")
	input := zeros(t, 1, 1, 4, 4)
	weights := zeros(t, 1, 1, 3, 3)
	output := zeros(t, 1, 1, 4, 4)

	op := New(WithGEMM(failingGEMM{err: boom}))
	defer op.Close()
	require.NoError(t, op.Configure(newCC(), input, weights, nil, output, perforation.SameGeometry(3), perforation.None()))

	err := op.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "gemm")
}

func TestConvApprox_DiagnosticsAndSharedQueue(t *testing.T) {
	logger, buf := bufferLogger()
	queue := device.NewInOrderQueue(8)
	defer queue.Close()
	rng := rand.New(rand.NewPCG(9, 10))
	input := randomTensor(t, rng, 1, 1, 4, 4)
	weights := randomTensor(t, rng, 1, 1, 3, 3)

	got, op := runConvApprox(t, input, weights, nil, perforation.SameGeometry(3), perforation.Filter(0, 3),
		WithLogger(logger), WithQueue(queue), WithDiagnostics(true), WithAllocator(device.NewBufferPool()))
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, got.Shape())

	logs := buf.String()
	assert.Contains(t, logs, "stage output")
	assert.Contains(t, logs, "stage=im2col_perf_nchw")
	assert.Contains(t, logs, op.ID().String())

	executed, _ := queue.Stats()
	assert.Equal(t, uint64(5), executed)
}

func TestConvApprox_RunRepeatedly(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	input := randomTensor(t, rng, 1, 2, 5, 5)
	weights := randomTensor(t, rng, 2, 2, 3, 3)
	g := perforation.SameGeometry(3)
	output := zeros(t, 1, 2, 5, 5)

	pool := device.NewBufferPool()
	op := New(WithAllocator(pool))
	defer op.Close()
	require.NoError(t, op.Configure(newCC(), input, weights, nil, output, g, perforation.None()))
	for i := 0; i < 3; i++ {
		require.NoError(t, op.Run())
	}
	assertClose(t, direct(t, input, weights, g).AsFloat32(), output.AsFloat32())

	_, released, hits, _, _ := pool.Stats()
	assert.Equal(t, uint64(12), released, "four scratch tensors per run")
	assert.Positive(t, hits, "later runs reuse pooled storage")
}

func TestConvApprox_CloseIsTerminal(t *testing.T) {
	input := zeros(t, 1, 1, 4, 4)
	weights := zeros(t, 1, 1, 3, 3)
	g, p := perforation.SameGeometry(3), perforation.Filter(0, 2)
	output, op := runConvApprox(t, input, weights, nil, g, p)

	op.Close()
	err := op.Configure(newCC(), input, weights, nil, output, g, p)
	assert.ErrorIs(t, err, perforation.ErrProgramming)
	assert.ErrorIs(t, op.Prepare(), perforation.ErrProgramming)
	assert.ErrorIs(t, op.Run(), perforation.ErrProgramming)
}
