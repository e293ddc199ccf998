//go:build !windows

package webgpu

import (
	"github.com/born-ml/convapprox/internal/kernels"
)

// Backend is unavailable on this platform.
type Backend struct{}

// New always fails with ErrUnavailable on this platform.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU (unavailable)"
}

// GEMM implements kernels.GEMM and always fails.
func (b *Backend) GEMM(_, _, _, _ kernels.Operand, _, _ float32) error {
	return ErrUnavailable
}

// Release is a no-op.
func (b *Backend) Release() {}
