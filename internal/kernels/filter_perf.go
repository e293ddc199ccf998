package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// FilterPerfInfo returns the kept taps and compacted filter descriptor for weights [M, C, KH, KW].
func FilterPerfInfo(weights tensor.Info, p perforation.Policy) ([]int, tensor.Info, error) {
	if err := perforation.CheckLayout("weights", weights); err != nil {
		return nil, tensor.Info{}, err
	}
	if weights.DType != tensor.Float32 {
		return nil, tensor.Info{}, perforation.Configurationf("weights: data type %s is not supported", weights.DType)
	}
	if err := p.Validate(); err != nil {
		return nil, tensor.Info{}, err
	}
	kw, kh := weights.Dim(tensor.Width), weights.Dim(tensor.Height)
	kept := perforation.KeptTaps(kw*kh, p)
	if len(kept) == 0 {
		return nil, tensor.Info{}, perforation.Configurationf("policy %s keeps no taps of a %dx%d kernel", p, kw, kh)
	}
	m, c := weights.Dim(tensor.Batches), weights.Dim(tensor.Channel)
	return kept, tensor.NewInfo(tensor.Shape{c * len(kept), m}, weights.DType, tensor.NCHW), nil
}

// ValidateFilterPerf checks that output can hold the compacted weights. It has no side effects.
func ValidateFilterPerf(weights, output tensor.Info, p perforation.Policy) error {
	_, expected, err := FilterPerfInfo(weights, p)
	if err != nil {
		return err
	}
	return checkOutput(device.KernelFilterPerf, output, expected)
}

// FilterPerfKernel reshapes weights [M, C, KH, KW] into the GEMM rhs [C*kept, M].
// Row c*kept+j holds tap kept[j] of channel c, matching Im2ColPerfKernel's
// column order. Dropped taps are removed, not zeroed.
type FilterPerfKernel struct {
	program  *device.Program
	weights  tensor.Tensor
	output   tensor.Tensor
	kept     []int
	configID string
}

// Configure binds weights and output.
func (k *FilterPerfKernel) Configure(cc *device.CompileContext, weights, output tensor.Tensor, p perforation.Policy) error {
	kept, expected, err := FilterPerfInfo(weights.Info(), p)
	if err != nil {
		return err
	}
	autoInit(output, expected)
	if err := checkOutput(device.KernelFilterPerf, output.Info(), expected); err != nil {
		return err
	}

	program, err := cc.CreateKernel(device.KernelFilterPerf, device.BuildOptions{
		"DATA_TYPE=" + weights.Info().DType.KernelType(),
		fmt.Sprintf("PERF_EVERY=%d", p.Every()),
	})
	if err != nil {
		return err
	}

	w := weights.Info()
	*k = FilterPerfKernel{
		program: program,
		weights: weights,
		output:  output,
		kept:    kept,
		configID: fmt.Sprintf("filter_perf_%s_%d_%d_%d_%d",
			w.DType.KernelType(), w.Dim(tensor.Batches), w.Dim(tensor.Channel), w.Dim(tensor.Width)*w.Dim(tensor.Height), len(kept)),
	}
	return nil
}

// Name implements device.Kernel.
func (k *FilterPerfKernel) Name() string { return device.KernelFilterPerf }

// ConfigID identifies the configured problem for tuning caches.
func (k *FilterPerfKernel) ConfigID() string { return k.configID }

// KeptTaps returns the tap indices in operand order.
func (k *FilterPerfKernel) KeptTaps() []int { return k.kept }

// Run implements device.Kernel.
func (k *FilterPerfKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	info := k.weights.Info()
	M, C := info.Dim(tensor.Batches), info.Dim(tensor.Channel)
	area := info.Dim(tensor.Width) * info.Dim(tensor.Height)

	src := k.weights.Raw().AsFloat32()
	dst := k.output.Raw().AsFloat32()
	kept := len(k.kept)
	for c := 0; c < C; c++ {
		for j, tap := range k.kept {
			row := (c*kept + j) * M
			for m := 0; m < M; m++ {
				dst[row+m] = src[(m*C+c)*area+tap]
			}
		}
	}
	return nil
}
