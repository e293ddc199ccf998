// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package approx provides the public API for perforated convolutions.
//
// Two orchestrators are available:
//   - ConvApprox: perforated patch extraction + one GEMM + reconstruction
//   - AccumulatingGEMM: one GEMM per kernel tap with run-time tap skipping
//
// Example:
//
//	cc := approx.NewCompileContext(approx.NewCPU())
//	op := approx.New()
//	defer op.Close()
//	err := op.Configure(cc, input, weights, nil, output, approx.SameGeometry(3), approx.Filter(0, 2))
//	err = op.Run()
package approx

import (
	"github.com/born-ml/convapprox/internal/convapprox"
	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// Orchestrators.
type (
	ConvApprox       = convapprox.ConvApprox
	AccumulatingGEMM = convapprox.AccumulatingGEMM
	Options          = convapprox.Options
	Option           = convapprox.Option
	State            = convapprox.State
)

// Lifecycle states of an AccumulatingGEMM.
const (
	StateUnconfigured = convapprox.StateUnconfigured
	StateConfigured   = convapprox.StateConfigured
	StatePrepared     = convapprox.StatePrepared
	StateReady        = convapprox.StateReady
	StateClosed       = convapprox.StateClosed
)

// Perforation policy and geometry.
type (
	Policy    = perforation.Policy
	Mode      = perforation.Mode
	Geometry  = perforation.Geometry
	Size2D    = perforation.Size2D
	Padding   = perforation.Padding
	Plan      = perforation.Plan
	TapOffset = perforation.TapOffset
)

// Perforation modes.
const (
	ModeNone   = perforation.ModeNone
	ModeRow    = perforation.ModeRow
	ModeColumn = perforation.ModeColumn
	ModeFilter = perforation.ModeFilter
)

// Tensor descriptors and storage.
type (
	Tensor     = tensor.Tensor
	RawTensor  = tensor.RawTensor
	Info       = tensor.Info
	Shape      = tensor.Shape
	DataType   = tensor.DataType
	DataLayout = tensor.DataLayout
)

// Data types and layouts.
const (
	Float32 = tensor.Float32
	NCHW    = tensor.NCHW
	NHWC    = tensor.NHWC
)

// Device resources.
type (
	CompileContext = device.CompileContext
	Queue          = device.Queue
	Allocator      = device.Allocator
	GEMM           = kernels.GEMM
	Operand        = kernels.Operand
)

// Errors, matched with errors.Is.
var (
	ErrConfiguration         = perforation.ErrConfiguration
	ErrShapeMismatch         = perforation.ErrShapeMismatch
	ErrUnsupportedDataLayout = perforation.ErrUnsupportedDataLayout
	ErrProgramming           = perforation.ErrProgramming
)

// Constructors.
var (
	New                  = convapprox.New
	NewAccumulating      = convapprox.NewAccumulating
	ValidateConvApprox   = convapprox.ValidateConvApprox
	ValidateAccumulating = convapprox.ValidateAccumulating

	WithLogger      = convapprox.WithLogger
	WithQueue       = convapprox.WithQueue
	WithAllocator   = convapprox.WithAllocator
	WithGEMM        = convapprox.WithGEMM
	WithDiagnostics = convapprox.WithDiagnostics
	WithQueueDepth  = convapprox.WithQueueDepth

	None      = perforation.None
	Row       = perforation.Row
	Filter    = perforation.Filter
	NewPolicy = perforation.NewPolicy
	FromKnobs = perforation.FromKnobs

	NewGeometry  = perforation.NewGeometry
	SameGeometry = perforation.SameGeometry

	NewCPU            = device.NewCPU
	NewCompileContext = device.NewCompileContext
	NewInOrderQueue   = device.NewInOrderQueue
	NewBufferPool     = device.NewBufferPool
	NewCPUGEMM        = kernels.NewCPUGEMM
	DirectConv2D      = kernels.DirectConv2D
	NewInfo           = tensor.NewInfo
	NewRaw            = tensor.NewRaw
	FromFloat32       = tensor.FromFloat32
)
