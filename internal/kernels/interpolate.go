package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// ValidateInterpolate checks that input holds the computed rows of output
// under policy p. input is [N, M, EffH*W] or [N, M, EffH, W]; output is
// [N, M, H, W]. It has no side effects.
func ValidateInterpolate(input, output tensor.Info, p perforation.Policy) error {
	if p.Mode() != perforation.ModeRow {
		return perforation.Configurationf("interpolate: only row perforation is reconstructed, got %s", p)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := perforation.CheckLayout("interpolate output", output); err != nil {
		return err
	}
	if input.DType != output.DType {
		return perforation.Configurationf("interpolate: input %s, output %s", input.DType, output.DType)
	}
	N, M := output.Dim(tensor.Batches), output.Dim(tensor.Channel)
	H, W := output.Dim(tensor.Height), output.Dim(tensor.Width)
	effH := perforation.EffectiveExtent(H, p.Every())
	if want := N * M * effH * W; input.NumElements() != want || len(input.Shape) < 2 ||
		input.Shape[0] != N || input.Shape[1] != M {
		return perforation.ShapeMismatchf("interpolate: input %v cannot hold [%d %d %d %d]",
			[]int(input.Shape), N, M, effH, W)
	}
	return nil
}

// InterpolateKernel rebuilds a full-height output from row-perforated results.
// Output row r copies computed row perforation.SourceRow(r, every): the row
// itself when it was computed, otherwise the nearest computed row above it.
type InterpolateKernel struct {
	program  *device.Program
	input    tensor.Tensor
	output   tensor.Tensor
	every    int
	configID string
}

// Configure binds the computed rows and the full-resolution output.
func (k *InterpolateKernel) Configure(cc *device.CompileContext, input, output tensor.Tensor, p perforation.Policy) error {
	if err := ValidateInterpolate(input.Info(), output.Info(), p); err != nil {
		return err
	}
	out := output.Info()
	program, err := cc.CreateKernel(device.KernelInterpolate, device.BuildOptions{
		"DATA_TYPE=" + out.DType.KernelType(),
		fmt.Sprintf("PERF_EVERY=%d", p.Every()),
	})
	if err != nil {
		return err
	}
	*k = InterpolateKernel{
		program: program,
		input:   input,
		output:  output,
		every:   p.Every(),
		configID: fmt.Sprintf("interpolate_row_%s_%d_%d_%d", out.DType.KernelType(),
			out.Dim(tensor.Width), out.Dim(tensor.Height), p.Every()),
	}
	return nil
}

// Name implements device.Kernel.
func (k *InterpolateKernel) Name() string { return device.KernelInterpolate }

// ConfigID identifies the configured problem for tuning caches.
func (k *InterpolateKernel) ConfigID() string { return k.configID }

// Run implements device.Kernel.
func (k *InterpolateKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("%s: run before configure", k.Name())
	}
	out := k.output.Info()
	N, M := out.Dim(tensor.Batches), out.Dim(tensor.Channel)
	H, W := out.Dim(tensor.Height), out.Dim(tensor.Width)
	effH := perforation.EffectiveExtent(H, k.every)

	src := k.input.Raw().AsFloat32()
	dst := k.output.Raw().AsFloat32()
	for plane := 0; plane < N*M; plane++ {
		for r := 0; r < H; r++ {
			s := (plane*effH + perforation.SourceRow(r, k.every)) * W
			d := (plane*H + r) * W
			copy(dst[d:d+W], src[s:s+W])
		}
	}
	return nil
}
