// Package device provides the execution resources a perforated convolution
// consumes: a device description, an explicit kernel compile context, an
// in-order command queue, and scratch allocation scoped by memory groups.
package device

import (
	"fmt"
	"strings"

	"golang.org/x/sys/cpu"
)

// Kernel names understood by compile contexts.
const (
	KernelIm2ColPerf  = "im2col_perf_nchw"
	KernelFilterPerf  = "filter_perf"
	KernelGEMM        = "gemm"
	KernelTranspose   = "transpose_3d"
	KernelReshape     = "reshape"
	KernelAccumulate  = "add_offset"
	KernelInterpolate = "interpolate_row"
	KernelFill        = "fill"
)

// Device describes a compute target that kernels are compiled for.
type Device interface {
	Name() string
	// Supports reports whether the device can build the named kernel.
	Supports(kernel string) bool
}

// Features lists the SIMD extensions detected on the host.
type Features struct {
	AVX2    bool
	AVX512F bool
	FMA     bool
	ASIMD   bool
	SVE     bool
}

// String lists the detected features.
func (f Features) String() string {
	var names []string
	if f.AVX2 {
		names = append(names, "avx2")
	}
	if f.AVX512F {
		names = append(names, "avx512f")
	}
	if f.FMA {
		names = append(names, "fma")
	}
	if f.ASIMD {
		names = append(names, "asimd")
	}
	if f.SVE {
		names = append(names, "sve")
	}
	if len(names) == 0 {
		return "scalar"
	}
	return strings.Join(names, ",")
}

// CPU is the host device. All kernels run as Go code.
type CPU struct {
	features Features
}

// NewCPU detects host features.
func NewCPU() *CPU {
	return &CPU{
		features: Features{
			AVX2:    cpu.X86.HasAVX2,
			AVX512F: cpu.X86.HasAVX512F,
			FMA:     cpu.X86.HasFMA,
			ASIMD:   cpu.ARM64.HasASIMD,
			SVE:     cpu.ARM64.HasSVE,
		},
	}
}

// Name returns the device name with its features.
func (c *CPU) Name() string {
	return fmt.Sprintf("CPU (%s)", c.features)
}

// Features returns the detected SIMD features.
func (c *CPU) Features() Features {
	return c.features
}

// Supports reports true for every kernel in this package's catalogue.
func (c *CPU) Supports(kernel string) bool {
	switch kernel {
	case KernelIm2ColPerf, KernelFilterPerf, KernelGEMM, KernelTranspose,
		KernelReshape, KernelAccumulate, KernelInterpolate, KernelFill:
		return true
	default:
		return false
	}
}

// GEMMBlockRows returns how many output rows one GEMM work item covers.
// Wider vector units get larger blocks.
func (c *CPU) GEMMBlockRows() int {
	switch {
	case c.features.AVX512F:
		return 64
	case c.features.AVX2, c.features.ASIMD:
		return 32
	default:
		return 16
	}
}
