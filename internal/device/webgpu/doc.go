// Package webgpu implements the GEMM collaborator on a WebGPU device.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The device backend is only built on Windows, where the native library is
// shipped; elsewhere New reports ErrUnavailable and callers fall back to the
// host GEMM.
package webgpu

import "errors"

// ErrUnavailable is returned when no WebGPU device can be opened.
var ErrUnavailable = errors.New("webgpu: not available")
