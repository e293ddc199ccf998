package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/parallel"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// initializer is implemented by outputs whose descriptor can be filled in at
// configure time, such as device.Scratch.
type initializer interface {
	InitInfo(info tensor.Info) bool
}

// autoInit gives an empty output descriptor the expected shape when the output allows it.
func autoInit(output tensor.Tensor, expected tensor.Info) {
	if init, ok := output.(initializer); ok {
		init.InitInfo(expected)
	}
}

// checkOutput compares an output descriptor against the computed one.
// An empty descriptor passes: it will be auto-initialised.
func checkOutput(kernel string, output, expected tensor.Info) error {
	if output.IsEmpty() {
		return nil
	}
	if !output.Shape.Equal(expected.Shape) {
		return perforation.ShapeMismatchf("%s: output shape %v, expected %v", kernel, []int(output.Shape), []int(expected.Shape))
	}
	if output.DType != expected.DType {
		return perforation.Configurationf("%s: output data type %s, expected %s", kernel, output.DType, expected.DType)
	}
	return nil
}

// Im2ColPerfInfo resolves the patch operand of a perforated im2col.
func Im2ColPerfInfo(input tensor.Info, kernel perforation.Size2D, g perforation.Geometry, p perforation.Policy) (perforation.Plan, tensor.Info, error) {
	plan, err := perforation.PlanPatches(input, kernel, g, p)
	if err != nil {
		return perforation.Plan{}, tensor.Info{}, err
	}
	return plan, tensor.NewInfo(plan.PatchShape(), input.DType, tensor.NCHW), nil
}

// ValidateIm2ColPerf checks that output can hold the perforated patches of input.
// It has no side effects.
func ValidateIm2ColPerf(input, output tensor.Info, kernel perforation.Size2D, g perforation.Geometry, p perforation.Policy) error {
	_, expected, err := Im2ColPerfInfo(input, kernel, g, p)
	if err != nil {
		return err
	}
	return checkOutput(device.KernelIm2ColPerf, output, expected)
}

// Im2ColPerfKernel gathers one patch row per computed output position.
//
// Row perforation walks the computed rows only, mapping computed row i to
// output row perforation.KeptRow(i, every). Filter perforation gathers only the
// kept taps of every channel, channel-major. Skipped samples are never touched.
type Im2ColPerfKernel struct {
	program  *device.Program
	plan     perforation.Plan
	input    tensor.Tensor
	output   tensor.Tensor
	parallel parallel.Config
	configID string
}

// Configure binds input ([N, C, H, W], NCHW) and output ([N, positions, C*kept]).
func (k *Im2ColPerfKernel) Configure(cc *device.CompileContext, input, output tensor.Tensor, kernel perforation.Size2D, g perforation.Geometry, p perforation.Policy) error {
	plan, expected, err := Im2ColPerfInfo(input.Info(), kernel, g, p)
	if err != nil {
		return err
	}
	autoInit(output, expected)
	if err := checkOutput(device.KernelIm2ColPerf, output.Info(), expected); err != nil {
		return err
	}

	program, err := cc.CreateKernel(device.KernelIm2ColPerf, device.BuildOptions{
		"DATA_TYPE=" + input.Info().DType.KernelType(),
		fmt.Sprintf("KERNEL_WIDTH=%d", kernel.W),
		fmt.Sprintf("KERNEL_HEIGHT=%d", kernel.H),
		fmt.Sprintf("PERF_MODE=%s", p.Mode()),
		fmt.Sprintf("PERF_EVERY=%d", p.Every()),
	})
	if err != nil {
		return err
	}

	*k = Im2ColPerfKernel{
		program:  program,
		plan:     plan,
		input:    input,
		output:   output,
		parallel: parallel.DefaultConfig(),
		configID: fmt.Sprintf("im2col_perf_%s_%dx%d_%dx%d_%s%d",
			plan.DType.KernelType(), plan.InW, plan.InH, kernel.W, kernel.H, p.Mode(), p.Every()),
	}
	return nil
}

// Name implements device.Kernel.
func (k *Im2ColPerfKernel) Name() string { return device.KernelIm2ColPerf }

// ConfigID identifies the configured problem for tuning caches.
func (k *Im2ColPerfKernel) ConfigID() string { return k.configID }

// Plan returns the resolved shapes.
func (k *Im2ColPerfKernel) Plan() perforation.Plan { return k.plan }

// Run implements device.Kernel.
func (k *Im2ColPerfKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	im2colPerfFloat32(k.output.Raw().AsFloat32(), k.input.Raw().AsFloat32(), k.plan, k.parallel)
	return nil
}

// im2colPerfFloat32 fills dst [N, EffH*EffW, C*kept] from src [N, C, H, W].
func im2colPerfFloat32(dst, src []float32, plan perforation.Plan, cfg parallel.Config) {
	g := plan.Geometry
	C, H, W := plan.Channels, plan.InH, plan.InW
	KW := plan.Kernel.W
	kept := plan.KeptTaps
	rowWidth := plan.KernelElems()
	every := 0
	if plan.Policy.Mode() == perforation.ModeRow {
		every = plan.Policy.Every()
	}

	// One work item per (batch, computed row).
	parallel.For(plan.Batches*plan.EffH, func(item int) {
		n, i := item/plan.EffH, item%plan.EffH
		outH := perforation.KeptRow(i, every)
		hStart := outH*g.Stride.H - g.Pad.Top

		for outW := 0; outW < plan.EffW; outW++ {
			wStart := outW*g.Stride.W - g.Pad.Left
			pos := i*plan.EffW + outW
			bufIdx := (n*plan.Positions() + pos) * rowWidth

			for c := 0; c < C; c++ {
				plane := (n*C + c) * H * W
				for _, tap := range kept {
					h := hStart + (tap/KW)*g.Dilation.H
					w := wStart + (tap%KW)*g.Dilation.W
					if h >= 0 && h < H && w >= 0 && w < W {
						dst[bufIdx] = src[plane+h*W+w]
					} else {
						dst[bufIdx] = 0
					}
					bufIdx++
				}
			}
		}
	}, cfg)
}
