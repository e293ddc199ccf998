package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// FillKernel sets every element of a tensor to a constant.
type FillKernel struct {
	program *device.Program
	target  tensor.Tensor
	value   float32
}

// Configure binds the tensor to fill.
func (k *FillKernel) Configure(cc *device.CompileContext, target tensor.Tensor, value float32) error {
	info := target.Info()
	if info.IsEmpty() {
		return perforation.Programmingf("fill: target has no descriptor")
	}
	if info.DType != tensor.Float32 {
		return perforation.Configurationf("fill: data type %s is not supported", info.DType)
	}
	program, err := cc.CreateKernel(device.KernelFill, device.BuildOptions{
		"DATA_TYPE=" + info.DType.KernelType(),
		fmt.Sprintf("VALUE=%g", value),
	})
	if err != nil {
		return err
	}
	*k = FillKernel{program: program, target: target, value: value}
	return nil
}

// Name implements device.Kernel.
func (k *FillKernel) Name() string { return device.KernelFill }

// Run implements device.Kernel.
func (k *FillKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	k.target.Raw().Fill(k.value)
	return nil
}
