package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/parallel"
	"github.com/born-ml/convapprox/internal/perforation"
)

// GEMM computes out = alpha * lhs × rhs + beta * out (+ bias) per batch.
//
// lhs is [M, K], rhs is [K, N], out is [M, N]. Each operand has either one
// batch or as many as out; a single batch is broadcast. bias, when present, is
// a [1, N] row added to every output row.
type GEMM interface {
	GEMM(lhs, rhs, bias, out Operand, alpha, beta float32) error
}

// CheckGEMMShapes validates operand dimensions for a GEMM call.
func CheckGEMMShapes(lhs, rhs, bias, out Operand) error {
	for _, op := range []struct {
		name string
		o    Operand
	}{{"lhs", lhs}, {"rhs", rhs}, {"out", out}} {
		if err := op.o.Validate(op.name); err != nil {
			return perforation.ShapeMismatchf("gemm: %v", err)
		}
	}
	if lhs.Cols != rhs.Rows {
		return perforation.ShapeMismatchf("gemm: lhs %dx%d cannot multiply rhs %dx%d", lhs.Rows, lhs.Cols, rhs.Rows, rhs.Cols)
	}
	if out.Rows != lhs.Rows || out.Cols != rhs.Cols {
		return perforation.ShapeMismatchf("gemm: out is %dx%d, expected %dx%d", out.Rows, out.Cols, lhs.Rows, rhs.Cols)
	}
	batches := out.BatchCount()
	for _, b := range []int{lhs.BatchCount(), rhs.BatchCount()} {
		if b != 1 && b != batches {
			return perforation.ShapeMismatchf("gemm: operand has %d batches, out has %d", b, batches)
		}
	}
	if !bias.IsAbsent() {
		if err := bias.Validate("bias"); err != nil {
			return perforation.ShapeMismatchf("gemm: %v", err)
		}
		if bias.Rows != 1 || bias.Cols != out.Cols {
			return perforation.ShapeMismatchf("gemm: bias is %dx%d, expected 1x%d", bias.Rows, bias.Cols, out.Cols)
		}
	}
	return nil
}

// CPUGEMM is the host GEMM. Output rows are split into blocks sized for the
// device's vector width and spread across goroutines.
type CPUGEMM struct {
	BlockRows int
	Parallel  parallel.Config
}

// NewCPUGEMM creates a host GEMM tuned for dev.
func NewCPUGEMM(dev *device.CPU) *CPUGEMM {
	return &CPUGEMM{
		BlockRows: dev.GEMMBlockRows(),
		Parallel:  parallel.DefaultConfig(),
	}
}

// GEMM implements GEMM.
func (g *CPUGEMM) GEMM(lhs, rhs, bias, out Operand, alpha, beta float32) error {
	if err := CheckGEMMShapes(lhs, rhs, bias, out); err != nil {
		return err
	}

	a, b, c := lhs.Float32(), rhs.Float32(), out.Float32()
	var bs []float32
	if !bias.IsAbsent() {
		bs = bias.Float32()
	}

	blockRows := max(g.BlockRows, 1)
	blocksPerBatch := (out.Rows + blockRows - 1) / blockRows
	cfg := g.Parallel
	cfg.MinChunkSize = 1

	return parallel.ForRange(out.BatchCount()*blocksPerBatch, func(start, end int) error {
		for blk := start; blk < end; blk++ {
			batch := blk / blocksPerBatch
			r0 := (blk % blocksPerBatch) * blockRows
			r1 := min(r0+blockRows, out.Rows)
			lb := min(batch, lhs.BatchCount()-1)
			rb := min(batch, rhs.BatchCount()-1)
			for i := r0; i < r1; i++ {
				for j := 0; j < out.Cols; j++ {
					sum := float32(0)
					for k := 0; k < lhs.Cols; k++ {
						sum += a[lhs.Index(lb, i, k)] * b[rhs.Index(rb, k, j)]
					}
					idx := out.Index(batch, i, j)
					v := alpha * sum
					if beta != 0 {
						v += beta * c[idx]
					}
					if bs != nil {
						v += bs[bias.Index(0, 0, j)]
					}
					c[idx] = v
				}
			}
		}
		return nil
	}, cfg)
}

// GEMMKernel binds one GEMM call so it can be enqueued.
type GEMMKernel struct {
	program  *device.Program
	gemm     GEMM
	lhs      Operand
	rhs      Operand
	bias     Operand
	out      Operand
	alpha    float32
	beta     float32
	configID string
}

// Configure binds the operands. Shapes are checked now; storage is read at Run.
func (k *GEMMKernel) Configure(cc *device.CompileContext, gemm GEMM, lhs, rhs, bias, out Operand, alpha, beta float32) error {
	if gemm == nil {
		return perforation.Programmingf("gemm kernel: no GEMM implementation")
	}
	if err := CheckGEMMShapes(lhs, rhs, bias, out); err != nil {
		return err
	}
	program, err := cc.CreateKernel(device.KernelGEMM, device.BuildOptions{"DATA_TYPE=float"})
	if err != nil {
		return err
	}
	*k = GEMMKernel{
		program: program,
		gemm:    gemm,
		lhs:     lhs, rhs: rhs, bias: bias, out: out,
		alpha: alpha, beta: beta,
		configID: fmt.Sprintf("gemm_float_%d_%d_%d_%d", out.BatchCount(), lhs.Rows, lhs.Cols, rhs.Cols),
	}
	return nil
}

// Name implements device.Kernel.
func (k *GEMMKernel) Name() string { return device.KernelGEMM }

// ConfigID identifies the configured problem size.
func (k *GEMMKernel) ConfigID() string { return k.configID }

// Run implements device.Kernel.
func (k *GEMMKernel) Run() error {
	if k.program == nil {
		return perforation.Programmingf("gemm kernel: run before configure")
	}
	return k.gemm.GEMM(k.lhs, k.rhs, k.bias, k.out, k.alpha, k.beta)
}
