package perforation

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/tensor"
)

// Plan is the resolved configuration of one perforated convolution. It is the
// single source of truth for every derived dimension, so the patch extractor,
// the filter compactor and the reconstruction step cannot disagree.
type Plan struct {
	Policy   Policy
	Geometry Geometry
	DType    tensor.DataType

	Batches  int
	Channels int
	Filters  int // 0 when planned from the input alone

	InW, InH   int
	Kernel     Size2D
	OutW, OutH int // unperforated convolved extent
	EffW, EffH int // extent actually computed

	KeptTaps []int // row-major kernel taps that are sampled
}

// Positions returns the number of output positions actually computed.
func (p Plan) Positions() int {
	return p.EffW * p.EffH
}

// KernelElems returns the GEMM reduction length: kept taps times channels.
func (p Plan) KernelElems() int {
	return len(p.KeptTaps) * p.Channels
}

// PatchShape is the patch operand: one row per computed output position.
func (p Plan) PatchShape() tensor.Shape {
	return tensor.Shape{p.Batches, p.Positions(), p.KernelElems()}
}

// FilterShape is the compacted weight operand.
func (p Plan) FilterShape() tensor.Shape {
	return tensor.Shape{p.KernelElems(), p.Filters}
}

// GEMMShape is the GEMM result: positions × filters per batch.
func (p Plan) GEMMShape() tensor.Shape {
	return tensor.Shape{p.Batches, p.Positions(), p.Filters}
}

// TransposedShape is the GEMM result with the two inner axes swapped.
func (p Plan) TransposedShape() tensor.Shape {
	return tensor.Shape{p.Batches, p.Filters, p.Positions()}
}

// OutputShape is the full-resolution NCHW output.
func (p Plan) OutputShape() tensor.Shape {
	return tensor.Shape{p.Batches, p.Filters, p.OutH, p.OutW}
}

// String formats the plan for logs.
func (p Plan) String() string {
	return fmt.Sprintf("policy=%s in=%dx%dx%dx%d kernel=%dx%d out=%dx%d eff=%dx%d taps=%d filters=%d",
		p.Policy, p.Batches, p.Channels, p.InH, p.InW, p.Kernel.W, p.Kernel.H,
		p.OutH, p.OutW, p.EffH, p.EffW, len(p.KeptTaps), p.Filters)
}

// Extents returns the computed output extent for a mode. Column perforation is
// planned here even though no kernel implements it.
func Extents(mode Mode, outW, outH, every int) (w, h int) {
	switch mode {
	case ModeRow:
		return outW, EffectiveExtent(outH, every)
	case ModeColumn:
		return EffectiveExtent(outW, every), outH
	default:
		return outW, outH
	}
}

// CheckLayout fails with ErrUnsupportedDataLayout unless info is a 4D NCHW descriptor.
func CheckLayout(name string, info tensor.Info) error {
	if info.Layout != tensor.NCHW {
		return UnsupportedLayoutf("%s: layout %s, only NCHW is supported", name, info.Layout)
	}
	if len(info.Shape) != 4 {
		return ShapeMismatchf("%s: expected 4D shape, got %v", name, []int(info.Shape))
	}
	return nil
}

// PlanPatches resolves the patch extraction of input with a kernel of the given size.
func PlanPatches(input tensor.Info, kernel Size2D, g Geometry, p Policy) (Plan, error) {
	if err := CheckLayout("input", input); err != nil {
		return Plan{}, err
	}
	if input.DType != tensor.Float32 {
		return Plan{}, Configurationf("input: data type %s is not supported", input.DType)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}

	inW, inH := input.Dim(tensor.Width), input.Dim(tensor.Height)
	if err := g.Validate(inW, inH, kernel); err != nil {
		return Plan{}, err
	}

	g = g.Normalized()
	outW, outH := g.ScaledDimensions(inW, inH, kernel)
	effW, effH := Extents(p.Mode(), outW, outH, p.Every())

	plan := Plan{
		Policy:   p,
		Geometry: g,
		DType:    input.DType,
		Batches:  input.Dim(tensor.Batches),
		Channels: input.Dim(tensor.Channel),
		InW:      inW,
		InH:      inH,
		Kernel:   kernel,
		OutW:     outW,
		OutH:     outH,
		EffW:     effW,
		EffH:     effH,
		KeptTaps: KeptTaps(kernel.Area(), p),
	}
	if plan.Positions() == 0 || len(plan.KeptTaps) == 0 {
		return Plan{}, Configurationf("perforation leaves nothing to compute: %s", plan)
	}
	return plan, nil
}

// PlanConvolution resolves a full perforated convolution of input by weights
// ([filters, channels, kh, kw], NCHW).
func PlanConvolution(input, weights tensor.Info, g Geometry, p Policy) (Plan, error) {
	if err := CheckLayout("weights", weights); err != nil {
		return Plan{}, err
	}
	kernel := Size2D{W: weights.Dim(tensor.Width), H: weights.Dim(tensor.Height)}
	plan, err := PlanPatches(input, kernel, g, p)
	if err != nil {
		return Plan{}, err
	}
	if weights.DType != input.DType {
		return Plan{}, Configurationf("weights: data type %s differs from input %s", weights.DType, input.DType)
	}
	if c := weights.Dim(tensor.Channel); c != plan.Channels {
		return Plan{}, ShapeMismatchf("weights: %d channels, input has %d", c, plan.Channels)
	}
	plan.Filters = weights.Dim(tensor.Batches)
	return plan, nil
}
