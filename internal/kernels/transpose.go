package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// TransposeInfo returns the descriptor of input [N, A, B] with its inner axes swapped.
func TransposeInfo(input tensor.Info) (tensor.Info, error) {
	if len(input.Shape) != 3 {
		return tensor.Info{}, perforation.ShapeMismatchf("transpose: expected 3D input, got %v", []int(input.Shape))
	}
	s := input.Shape
	return input.WithShape(tensor.Shape{s[0], s[2], s[1]}), nil
}

// TransposeKernel turns [N, A, B] into [N, B, A].
type TransposeKernel struct {
	program  *device.Program
	input    tensor.Tensor
	output   tensor.Tensor
	configID string
}

// Configure binds input and output. An empty output descriptor is initialised.
func (k *TransposeKernel) Configure(cc *device.CompileContext, input, output tensor.Tensor) error {
	expected, err := TransposeInfo(input.Info())
	if err != nil {
		return err
	}
	autoInit(output, expected)
	if err := checkOutput(device.KernelTranspose, output.Info(), expected); err != nil {
		return err
	}
	program, err := cc.CreateKernel(device.KernelTranspose, device.BuildOptions{
		"DATA_TYPE=" + expected.DType.KernelType(),
	})
	if err != nil {
		return err
	}
	s := input.Info().Shape
	*k = TransposeKernel{
		program:  program,
		input:    input,
		output:   output,
		configID: fmt.Sprintf("transpose_3d_%s_%d_%d_%d", expected.DType.KernelType(), s[0], s[1], s[2]),
	}
	return nil
}

// Name implements device.Kernel.
func (k *TransposeKernel) Name() string { return device.KernelTranspose }

// ConfigID identifies the configured problem for tuning caches.
func (k *TransposeKernel) ConfigID() string { return k.configID }

// Run implements device.Kernel.
func (k *TransposeKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	s := k.input.Info().Shape
	N, A, B := s[0], s[1], s[2]
	src := k.input.Raw().AsFloat32()
	dst := k.output.Raw().AsFloat32()
	for n := 0; n < N; n++ {
		base := n * A * B
		for a := 0; a < A; a++ {
			for b := 0; b < B; b++ {
				dst[base+b*A+a] = src[base+a*B+b]
			}
		}
	}
	return nil
}
