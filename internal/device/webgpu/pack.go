package webgpu

import (
	"unsafe"

	"github.com/born-ml/convapprox/internal/kernels"
)

// packOperand copies a strided operand view into a dense row-major
// [batches, rows, cols] buffer, the layout the GEMM shader reads.
func packOperand(o kernels.Operand) []float32 {
	src := o.Float32()
	batches := o.BatchCount()
	dst := make([]float32, 0, batches*o.Rows*o.Cols)
	for b := 0; b < batches; b++ {
		for r := 0; r < o.Rows; r++ {
			for c := 0; c < o.Cols; c++ {
				dst = append(dst, src[o.Index(b, r, c)])
			}
		}
	}
	return dst
}

// unpackOperand scatters a dense [batches, rows, cols] buffer back into a strided view.
func unpackOperand(o kernels.Operand, dense []float32) {
	dst := o.Float32()
	i := 0
	for b := 0; b < o.BatchCount(); b++ {
		for r := 0; r < o.Rows; r++ {
			for c := 0; c < o.Cols; c++ {
				dst[o.Index(b, r, c)] = dense[i]
				i++
			}
		}
	}
}

func float32Bytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion, length derived from v
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func bytesFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion, length derived from b
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
