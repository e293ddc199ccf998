package kernels

import (
	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// ValidateReshape checks that input and output describe the same number of elements.
func ValidateReshape(input, output tensor.Info) error {
	if input.DType != output.DType {
		return perforation.Configurationf("reshape: input %s, output %s", input.DType, output.DType)
	}
	if input.NumElements() != output.NumElements() {
		return perforation.ShapeMismatchf("reshape: %v and %v differ in size", []int(input.Shape), []int(output.Shape))
	}
	return nil
}

// ReshapeKernel copies input into an output of a different shape but equal size.
type ReshapeKernel struct {
	program *device.Program
	input   tensor.Tensor
	output  tensor.Tensor
}

// Configure binds input and output.
func (k *ReshapeKernel) Configure(cc *device.CompileContext, input, output tensor.Tensor) error {
	if err := ValidateReshape(input.Info(), output.Info()); err != nil {
		return err
	}
	program, err := cc.CreateKernel(device.KernelReshape, device.BuildOptions{
		"DATA_TYPE=" + input.Info().DType.KernelType(),
	})
	if err != nil {
		return err
	}
	*k = ReshapeKernel{program: program, input: input, output: output}
	return nil
}

// Name implements device.Kernel.
func (k *ReshapeKernel) Name() string { return device.KernelReshape }

// Run implements device.Kernel.
func (k *ReshapeKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	copy(k.output.Raw().Data(), k.input.Raw().Data())
	return nil
}
