// Package kernels implements the device kernels a perforated convolution is
// decomposed into: perforated patch extraction, filter compaction, GEMM,
// transpose, reshape, offset accumulation, row reconstruction and fill.
//
// Every kernel follows the same lifecycle: a side-effect-free Validate
// function, Configure against a device.CompileContext, then any number of Run
// calls, usually dispatched through a device.Queue.
package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/tensor"
)

// Operand is a strided matrix view over a tensor, optionally batched.
// It never copies: element (b, r, c) lives at
// Offset + b*BatchStride + r*RowStride + c*ColStride.
//
// The zero Operand is "absent" and is used for an optional bias.
type Operand struct {
	Tensor tensor.Tensor

	Offset    int
	Rows      int
	Cols      int
	RowStride int
	ColStride int

	Batches     int // 0 is treated as 1
	BatchStride int // 0 broadcasts one matrix over every batch
}

// MatrixOperand views a 2D tensor as [rows, cols] or a 3D tensor as
// [batches, rows, cols], both row-major.
func MatrixOperand(t tensor.Tensor) Operand {
	shape := t.Info().Shape
	switch len(shape) {
	case 2:
		return Operand{
			Tensor: t, Rows: shape[0], Cols: shape[1],
			RowStride: shape[1], ColStride: 1, Batches: 1,
		}
	case 3:
		return Operand{
			Tensor: t, Rows: shape[1], Cols: shape[2],
			RowStride: shape[2], ColStride: 1,
			Batches: shape[0], BatchStride: shape[1] * shape[2],
		}
	default:
		panic(fmt.Sprintf("kernels: MatrixOperand needs a 2D or 3D tensor, got %v", []int(shape)))
	}
}

// IsAbsent reports whether the operand is the zero value.
func (o Operand) IsAbsent() bool {
	return o.Tensor == nil
}

// BatchCount returns the number of batches, at least 1.
func (o Operand) BatchCount() int {
	return max(o.Batches, 1)
}

// Index returns the flat element index of (b, r, c).
func (o Operand) Index(b, r, c int) int {
	return o.Offset + b*o.BatchStride + r*o.RowStride + c*o.ColStride
}

// Transposed returns the view with rows and columns swapped.
func (o Operand) Transposed() Operand {
	o.Rows, o.Cols = o.Cols, o.Rows
	o.RowStride, o.ColStride = o.ColStride, o.RowStride
	return o
}

// Float32 returns the storage the view indexes into. The tensor must be bound.
func (o Operand) Float32() []float32 {
	raw := o.Tensor.Raw()
	if raw == nil {
		panic("kernels: operand tensor has no storage bound")
	}
	return raw.AsFloat32()
}

// Validate checks that every element the view can address lies inside the
// tensor's descriptor.
func (o Operand) Validate(name string) error {
	if o.Tensor == nil {
		return fmt.Errorf("%s: no tensor", name)
	}
	if o.Rows < 1 || o.Cols < 1 {
		return fmt.Errorf("%s: empty view %dx%d", name, o.Rows, o.Cols)
	}
	if o.Offset < 0 || o.RowStride < 0 || o.ColStride < 0 || o.BatchStride < 0 {
		return fmt.Errorf("%s: negative offset or stride", name)
	}
	last := o.Index(o.BatchCount()-1, o.Rows-1, o.Cols-1)
	if n := o.Tensor.Info().NumElements(); last >= n {
		return fmt.Errorf("%s: view reaches element %d of %d", name, last, n)
	}
	return nil
}

// String formats the view for logs.
func (o Operand) String() string {
	if o.IsAbsent() {
		return "<none>"
	}
	return fmt.Sprintf("%dx%dx%d@%d strides=(%d,%d,%d)",
		o.BatchCount(), o.Rows, o.Cols, o.Offset, o.BatchStride, o.RowStride, o.ColStride)
}
