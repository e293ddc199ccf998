package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/parallel"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// ValidateAccumulate checks an accumulation of input into accum with offset,
// for a tap of a k×k kernel. It has no side effects.
func ValidateAccumulate(input, accum tensor.Info, offset perforation.TapOffset, k int) error {
	if err := perforation.CheckLayout("accumulate input", input); err != nil {
		return err
	}
	if err := perforation.CheckLayout("accumulate output", accum); err != nil {
		return err
	}
	if input.DType != tensor.Float32 || accum.DType != tensor.Float32 {
		return perforation.Configurationf("accumulate: only float32 is supported")
	}
	if !input.Shape.Equal(accum.Shape) {
		return perforation.ShapeMismatchf("accumulate: input %v, output %v", []int(input.Shape), []int(accum.Shape))
	}
	r := k / 2
	if offset.Row < -r || offset.Row > r || offset.Col < -r || offset.Col > r {
		return perforation.Configurationf("accumulate: offset %s outside a %dx%d kernel", offset, k, k)
	}
	return nil
}

// AccumulateKernel adds a shifted copy of input into accum:
// accum(x, y) += input(x+offset.Col, y+offset.Row) for every in-bounds read.
// Out-of-bounds reads contribute nothing.
type AccumulateKernel struct {
	program  *device.Program
	input    tensor.Tensor
	accum    tensor.Tensor
	offset   perforation.TapOffset
	parallel parallel.Config
	configID string
}

// Configure binds input and accum, both [N, C, H, W].
func (k *AccumulateKernel) Configure(cc *device.CompileContext, input, accum tensor.Tensor, offset perforation.TapOffset, kernelSize int) error {
	if err := ValidateAccumulate(input.Info(), accum.Info(), offset, kernelSize); err != nil {
		return err
	}

	info := input.Info()
	program, err := cc.CreateKernel(device.KernelAccumulate, device.BuildOptions{
		"DATA_TYPE=" + info.DType.KernelType(),
	})
	if err != nil {
		return err
	}

	*k = AccumulateKernel{
		program:  program,
		input:    input,
		accum:    accum,
		offset:   offset,
		parallel: parallel.DefaultConfig(),
		configID: fmt.Sprintf("add_offset_%s_%d_%d_%d_%d_%d", info.DType.KernelType(),
			info.Dim(tensor.Width), info.Dim(tensor.Height), info.Dim(tensor.Channel), offset.Col, offset.Row),
	}
	return nil
}

// Name implements device.Kernel.
func (k *AccumulateKernel) Name() string { return device.KernelAccumulate }

// ConfigID identifies the configured problem for tuning caches.
func (k *AccumulateKernel) ConfigID() string { return k.configID }

// Offset returns the configured tap offset.
func (k *AccumulateKernel) Offset() perforation.TapOffset { return k.offset }

// Run implements device.Kernel.
func (k *AccumulateKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	info := k.input.Info()
	N, C := info.Dim(tensor.Batches), info.Dim(tensor.Channel)
	H, W := info.Dim(tensor.Height), info.Dim(tensor.Width)
	src := k.input.Raw().AsFloat32()
	dst := k.accum.Raw().AsFloat32()
	ox, oy := k.offset.Col, k.offset.Row

	// Clip the destination window so every read is in bounds.
	y0, y1 := max(0, -oy), min(H, H-oy)
	x0, x1 := max(0, -ox), min(W, W-ox)
	if y0 >= y1 || x0 >= x1 {
		return nil
	}

	parallel.ForBatch(N, C, func(n, c int) {
		plane := (n*C + c) * H * W
		for y := y0; y < y1; y++ {
			d := dst[plane+y*W : plane+(y+1)*W]
			s := src[plane+(y+oy)*W : plane+(y+oy+1)*W]
			for x := x0; x < x1; x++ {
				d[x] += s[x+ox]
			}
		}
	}, k.parallel)
	return nil
}
