package convapprox

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// State is the lifecycle position of an AccumulatingGEMM.
type State int

// Lifecycle states, in order.
const (
	StateUnconfigured State = iota
	StateConfigured
	StatePrepared
	StateReady
	// StateClosed is terminal: Close released everything and nothing can run again.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StatePrepared:
		return "prepared"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ValidateAccumulating checks a tap-decomposed convolution without configuring
// anything. The kernel must be square and odd and g must be the "same"
// geometry for it; output may be empty.
func ValidateAccumulating(input, weights, output tensor.Info, g perforation.Geometry) error {
	plan, err := perforation.PlanConvolution(input, weights, g, perforation.None())
	if err != nil {
		return err
	}
	k := plan.Kernel.W
	if plan.Kernel.H != k || k%2 == 0 {
		return perforation.Configurationf("tap decomposition needs a square odd kernel, got %dx%d", plan.Kernel.W, plan.Kernel.H)
	}
	if !g.IsSame(k) {
		return perforation.Configurationf("tap decomposition needs stride 1, dilation 1 and padding %d, got %s", k/2, g)
	}
	if !output.IsEmpty() {
		if err := perforation.CheckLayout("output", output); err != nil {
			return err
		}
		if !output.Shape.Equal(plan.OutputShape()) {
			return perforation.ShapeMismatchf("output shape %v, expected %v", []int(output.Shape), []int(plan.OutputShape()))
		}
	}
	return nil
}

// tapStage is the work of one kernel tap.
type tapStage struct {
	index      int
	offset     perforation.TapOffset
	gemm       kernels.GEMMKernel
	accumulate *kernels.AccumulateKernel // nil for the central tap
}

// AccumulatingGEMM computes a "same" convolution as one GEMM per kernel tap.
// The central tap writes the output directly; every other tap writes a shared
// scratch tensor which is added into the output at the tap's offset.
//
// Scratch is acquired by Configure and held until Close.
type AccumulatingGEMM struct {
	dispatcher
	id uuid.UUID

	state   State
	kernel  int
	central *tapStage
	others  []*tapStage

	output  tensor.Tensor
	aux     *device.Scratch
	group   *device.MemoryGroup
	release func()

	zeroAux    kernels.FillKernel
	zeroOutput kernels.FillKernel
}

// NewAccumulating creates an unconfigured AccumulatingGEMM.
func NewAccumulating(opts ...Option) *AccumulatingGEMM {
	id := uuid.New()
	return &AccumulatingGEMM{
		dispatcher: newDispatcher(opts, "op", "accumulating_gemm", "id", id.String()),
		id:         id,
	}
}

// ID identifies this instance in log records.
func (a *AccumulatingGEMM) ID() uuid.UUID { return a.id }

// State returns the lifecycle state.
func (a *AccumulatingGEMM) State() State { return a.state }

// Configure binds input [N, C, H, W], weights [M, C, K, K] and output [N, M, H, W].
func (a *AccumulatingGEMM) Configure(cc *device.CompileContext, input, weights, output tensor.Tensor, g perforation.Geometry) error {
	if cc == nil {
		return perforation.Programmingf("accumulating gemm: nil compile context")
	}
	if a.state == StateClosed {
		return perforation.Programmingf("accumulating gemm: configure after close")
	}
	if a.state != StateUnconfigured {
		return perforation.Programmingf("accumulating gemm: already %s", a.state)
	}
	if err := ValidateAccumulating(input.Info(), weights.Info(), output.Info(), g); err != nil {
		a.logger.Error("configure failed",
			"input", input.Info().String(), "weights", weights.Info().String(),
			"output", output.Info().String(), "geometry", g.String(), "err", err)
		return err
	}

	in, w := input.Info(), weights.Info()
	N, C := in.Dim(tensor.Batches), in.Dim(tensor.Channel)
	H, W := in.Dim(tensor.Height), in.Dim(tensor.Width)
	M, K := w.Dim(tensor.Batches), w.Dim(tensor.Width)
	outInfo := tensor.NewInfo(tensor.Shape{N, M, H, W}, in.DType, tensor.NCHW)
	if init, ok := output.(interface{ InitInfo(tensor.Info) bool }); ok {
		init.InitInfo(outInfo)
	}

	a.kernel = K
	a.output = output
	a.aux = device.NewScratch("accumulation")
	a.aux.SetInfo(outInfo)

	if err := a.zeroAux.Configure(cc, a.aux, 0); err != nil {
		return err
	}
	if err := a.zeroOutput.Configure(cc, output, 0); err != nil {
		return err
	}

	// input seen as N batches of [C, H*W].
	rhs := kernels.Operand{
		Tensor: input, Rows: C, Cols: H * W, RowStride: H * W, ColStride: 1,
		Batches: N, BatchStride: C * H * W,
	}
	area := K * K
	centralIndex := perforation.CentralIndex(K)
	a.others = a.others[:0]
	for i := 0; i < area; i++ {
		// Tap i of every filter and channel: weights[m][c][i].
		lhs := kernels.Operand{
			Tensor: weights, Offset: i, Rows: M, Cols: C,
			RowStride: C * area, ColStride: area, Batches: 1,
		}
		st := &tapStage{index: i, offset: perforation.OffsetOf(K, i)}
		target := output
		if i != centralIndex {
			target = a.aux
		}
		out := kernels.Operand{
			Tensor: target, Rows: M, Cols: H * W, RowStride: H * W, ColStride: 1,
			Batches: N, BatchStride: M * H * W,
		}
		if err := st.gemm.Configure(cc, a.opts.GEMM, lhs, rhs, kernels.Operand{}, out, 1, 0); err != nil {
			return err
		}
		if i == centralIndex {
			a.central = st
			continue
		}
		st.accumulate = &kernels.AccumulateKernel{}
		if err := st.accumulate.Configure(cc, a.aux, output, st.offset, K); err != nil {
			return err
		}
		a.others = append(a.others, st)
	}

	a.group = device.NewMemoryGroup(a.opts.Allocator)
	a.group.Manage(a.aux)
	release, err := a.group.Acquire()
	if err != nil {
		return errors.Wrap(err, "accumulating gemm: acquire scratch")
	}
	a.release = release
	a.state = StateConfigured

	a.logger.Debug("configured",
		"input", in.String(), "weights", w.String(), "taps", area,
		"central", centralIndex, "gemm_config", a.central.gemm.ConfigID())
	return nil
}

// Prepare zero-fills the accumulation buffer. Run calls it when needed.
func (a *AccumulatingGEMM) Prepare() error {
	switch a.state {
	case StateUnconfigured:
		return perforation.Programmingf("accumulating gemm: prepare before configure")
	case StateClosed:
		return perforation.Programmingf("accumulating gemm: prepare after close")
	case StatePrepared, StateReady:
		return nil
	}
	a.queue.Enqueue(&a.zeroAux)
	a.state = StatePrepared
	if err := a.queue.Sync(); err != nil {
		return errors.Wrap(err, "accumulating gemm: prepare")
	}
	a.state = StateReady
	return nil
}

// Run always fails: the tap skip period has to be given explicitly, use RunWithSkip.
func (a *AccumulatingGEMM) Run() error {
	return perforation.Programmingf("accumulating gemm: Run needs a skip period, call RunWithSkip")
}

// RunWithSkip convolves, skipping tap i when skipEvery != 0 and (i+1)%skipEvery == 0.
// skipEvery == 0 runs every tap.
func (a *AccumulatingGEMM) RunWithSkip(skipEvery int) error {
	switch a.state {
	case StateUnconfigured:
		return perforation.Programmingf("accumulating gemm: run before configure")
	case StateClosed:
		return perforation.Programmingf("accumulating gemm: run after close")
	}
	if skipEvery < 0 {
		return perforation.Configurationf("accumulating gemm: negative skip period %d", skipEvery)
	}
	if a.state != StateReady {
		if err := a.Prepare(); err != nil {
			return err
		}
	}

	skipped := func(i int) bool {
		return skipEvery != 0 && (i+1)%skipEvery == 0
	}

	// The central GEMM overwrites the output (beta 0), so it goes first.
	if skipped(a.central.index) {
		a.queue.Enqueue(&a.zeroOutput)
	} else {
		a.queue.Enqueue(&a.central.gemm)
	}
	ran := 0
	for _, st := range a.others {
		if skipped(st.index) {
			continue
		}
		a.queue.Enqueue(&st.gemm)
		if err := a.dump(fmt.Sprintf("tap %d gemm", st.index), a.aux); err != nil {
			return errors.Wrap(err, "accumulating gemm")
		}
		a.queue.Enqueue(st.accumulate)
		ran++
	}

	if err := a.queue.Sync(); err != nil {
		return errors.Wrap(err, "accumulating gemm")
	}
	a.logger.Debug("run", "skip_every", skipEvery, "offset_taps", ran, "central_skipped", skipped(a.central.index))
	return nil
}

// Close releases scratch storage and the private queue. The instance cannot be
// configured again afterwards. Safe to call twice.
func (a *AccumulatingGEMM) Close() {
	if a.release != nil {
		a.release()
		a.release = nil
	}
	a.close()
	a.state = StateClosed
}
