package convapprox

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// ValidateConvApprox checks a perforated convolution without configuring
// anything. output may be empty; bias may be empty (no bias) or hold one value
// per filter.
func ValidateConvApprox(input, weights, bias, output tensor.Info, g perforation.Geometry, p perforation.Policy) error {
	_, err := resolve(input, weights, bias, output, g, p)
	return err
}

func resolve(input, weights, bias, output tensor.Info, g perforation.Geometry, p perforation.Policy) (perforation.Plan, error) {
	plan, err := perforation.PlanConvolution(input, weights, g, p)
	if err != nil {
		return perforation.Plan{}, err
	}
	if err := kernels.ValidateIm2ColPerf(input, tensor.Info{}, plan.Kernel, g, p); err != nil {
		return perforation.Plan{}, err
	}
	if err := kernels.ValidateFilterPerf(weights, tensor.Info{}, p); err != nil {
		return perforation.Plan{}, err
	}
	if !bias.IsEmpty() && (bias.DType != tensor.Float32 || bias.NumElements() != plan.Filters) {
		return perforation.Plan{}, perforation.ShapeMismatchf("bias %v must hold %d float32 values", []int(bias.Shape), plan.Filters)
	}

	expected := tensor.NewInfo(plan.OutputShape(), plan.DType, tensor.NCHW)
	if !output.IsEmpty() {
		if err := perforation.CheckLayout("output", output); err != nil {
			return perforation.Plan{}, err
		}
		if !output.Shape.Equal(expected.Shape) {
			return perforation.Plan{}, perforation.ShapeMismatchf("output shape %v, expected %v", []int(output.Shape), []int(expected.Shape))
		}
	}
	if p.Mode() == perforation.ModeRow {
		transposed := tensor.NewInfo(plan.TransposedShape(), plan.DType, tensor.NCHW)
		if err := kernels.ValidateInterpolate(transposed, expected, p); err != nil {
			return perforation.Plan{}, err
		}
	}
	return plan, nil
}

// ConvApprox computes a convolution from perforated patches:
// extract patches → compact filters → GEMM → transpose → reshape (None,
// Filter) or row reconstruction (Row). The output is written in place.
type ConvApprox struct {
	dispatcher
	id uuid.UUID

	plan   perforation.Plan
	output tensor.Tensor

	group      *device.MemoryGroup
	patches    *device.Scratch
	filter     *device.Scratch
	gemmOut    *device.Scratch
	transposed *device.Scratch

	im2col      kernels.Im2ColPerfKernel
	filterPerf  kernels.FilterPerfKernel
	gemm        kernels.GEMMKernel
	transpose   kernels.TransposeKernel
	reshape     kernels.ReshapeKernel
	interpolate kernels.InterpolateKernel

	configured bool
}

// New creates an unconfigured ConvApprox.
func New(opts ...Option) *ConvApprox {
	id := uuid.New()
	return &ConvApprox{
		dispatcher: newDispatcher(opts, "op", "conv_approx", "id", id.String()),
		id:         id,
	}
}

// ID identifies this instance in log records.
func (c *ConvApprox) ID() uuid.UUID { return c.id }

// Plan returns the resolved shapes. Valid after Configure.
func (c *ConvApprox) Plan() perforation.Plan { return c.plan }

// Configure validates the convolution, declares scratch tensors and binds kernels.
// bias may be nil. An output with an empty descriptor is initialised when it supports it.
func (c *ConvApprox) Configure(cc *device.CompileContext, input, weights, bias, output tensor.Tensor, g perforation.Geometry, p perforation.Policy) error {
	if cc == nil {
		return perforation.Programmingf("conv approx: nil compile context")
	}
	if c.closed {
		return perforation.Programmingf("conv approx: configure after close")
	}
	var biasInfo tensor.Info
	if bias != nil {
		biasInfo = bias.Info()
	}
	plan, err := resolve(input.Info(), weights.Info(), biasInfo, output.Info(), g, p)
	if err != nil {
		c.logger.Error("configure failed",
			"input", input.Info().String(), "weights", weights.Info().String(),
			"output", output.Info().String(), "policy", p.String(), "err", err)
		return err
	}
	if init, ok := output.(interface{ InitInfo(tensor.Info) bool }); ok {
		init.InitInfo(tensor.NewInfo(plan.OutputShape(), plan.DType, tensor.NCHW))
	}
	if output.Info().IsEmpty() {
		return perforation.ShapeMismatchf("output has no descriptor, expected %v", []int(plan.OutputShape()))
	}

	c.configured = false
	c.plan = plan
	c.output = output
	c.patches = device.NewScratch("patches")
	c.filter = device.NewScratch("filter")
	c.gemmOut = device.NewScratch("gemm_out")
	c.transposed = device.NewScratch("transposed")

	if err := c.im2col.Configure(cc, input, c.patches, plan.Kernel, g, p); err != nil {
		return c.logMismatch("im2col", err)
	}
	if err := c.filterPerf.Configure(cc, weights, c.filter, p); err != nil {
		return c.logMismatch("filter", err)
	}

	c.gemmOut.SetInfo(tensor.NewInfo(plan.GEMMShape(), plan.DType, tensor.NCHW))
	var biasOp kernels.Operand
	if bias != nil && !biasInfo.IsEmpty() {
		biasOp = kernels.Operand{Tensor: bias, Rows: 1, Cols: plan.Filters, RowStride: plan.Filters, ColStride: 1}
	}
	if err := c.gemm.Configure(cc, c.opts.GEMM,
		kernels.MatrixOperand(c.patches), kernels.MatrixOperand(c.filter), biasOp,
		kernels.MatrixOperand(c.gemmOut), 1, 0); err != nil {
		return c.logMismatch("gemm", err)
	}
	if err := c.transpose.Configure(cc, c.gemmOut, c.transposed); err != nil {
		return c.logMismatch("transpose", err)
	}

	if p.Mode() == perforation.ModeRow {
		err = c.interpolate.Configure(cc, c.transposed, output, p)
	} else {
		err = c.reshape.Configure(cc, c.transposed, output)
	}
	if err != nil {
		return c.logMismatch("reconstruct", err)
	}

	c.group = device.NewMemoryGroup(c.opts.Allocator)
	c.group.Manage(c.patches, c.filter, c.gemmOut, c.transposed)
	c.configured = true

	c.logger.Debug("configured",
		"plan", plan.String(),
		"geometry", plan.Geometry.String(),
		"patches", c.patches.Info().String(),
		"filter", c.filter.Info().String(),
		"im2col_config", c.im2col.ConfigID(),
		"gemm_config", c.gemm.ConfigID())
	return nil
}

func (c *ConvApprox) logMismatch(stage string, err error) error {
	if errors.Is(err, perforation.ErrShapeMismatch) {
		c.logger.Error("shape mismatch", "stage", stage, "err", err)
	}
	return err
}

// Prepare is a no-op: this strategy has no state to initialise.
func (c *ConvApprox) Prepare() error {
	if c.closed {
		return perforation.Programmingf("conv approx: prepare after close")
	}
	if !c.configured {
		return perforation.Programmingf("conv approx: prepare before configure")
	}
	return nil
}

// Run executes the configured convolution and blocks until output holds the result.
func (c *ConvApprox) Run() error {
	if c.closed {
		return perforation.Programmingf("conv approx: run after close")
	}
	if !c.configured {
		return perforation.Programmingf("conv approx: run before configure")
	}

	release, err := c.group.Acquire()
	if err != nil {
		return errors.Wrap(err, "conv approx: acquire scratch")
	}
	defer release()

	stages := []struct {
		kernel device.Kernel
		result *device.Scratch
	}{
		{&c.im2col, c.patches},
		{&c.filterPerf, c.filter},
		{&c.gemm, c.gemmOut},
		{&c.transpose, c.transposed},
	}
	for _, st := range stages {
		c.queue.Enqueue(st.kernel)
		if err := c.dump(st.kernel.Name(), st.result); err != nil {
			return errors.Wrap(err, "conv approx")
		}
	}
	if c.plan.Policy.Mode() == perforation.ModeRow {
		c.queue.Enqueue(&c.interpolate)
	} else {
		c.queue.Enqueue(&c.reshape)
	}

	if err := c.queue.Sync(); err != nil {
		return errors.Wrap(err, "conv approx")
	}
	return nil
}

// Close releases the private queue, if any. The instance cannot be used afterwards.
func (c *ConvApprox) Close() {
	c.close()
	c.configured = false
}
