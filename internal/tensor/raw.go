package tensor

import (
	"fmt"
	"strings"
	"unsafe"
)

// Device represents where a tensor's storage lives.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Tensor is anything a kernel can be bound to at configure time.
// Raw may return nil for scratch tensors whose storage has not been acquired yet.
type Tensor interface {
	Info() Info
	Raw() *RawTensor
}

// RawTensor is a descriptor plus host-visible storage.
type RawTensor struct {
	data   []byte
	info   Info
	stride []int
	device Device
}

// NewRaw creates a new zero-filled RawTensor for the descriptor.
func NewRaw(info Info, device Device) (*RawTensor, error) {
	if err := info.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:   make([]byte, info.ByteSize()),
		info:   info.WithShape(info.Shape),
		stride: info.Shape.ComputeStrides(),
		device: device,
	}, nil
}

// NewRawFromBytes wraps existing storage. The buffer must hold at least
// info.ByteSize() bytes; it is not copied.
func NewRawFromBytes(info Info, data []byte, device Device) (*RawTensor, error) {
	if err := info.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) < info.ByteSize() {
		return nil, fmt.Errorf("buffer too small: %d bytes for %s", len(data), info)
	}
	return &RawTensor{
		data:   data[:info.ByteSize()],
		info:   info.WithShape(info.Shape),
		stride: info.Shape.ComputeStrides(),
		device: device,
	}, nil
}

// FromFloat32 creates a float32 tensor holding a copy of values.
func FromFloat32(shape Shape, layout DataLayout, values []float32) (*RawTensor, error) {
	if shape.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, shape.NumElements(), len(values))
	}
	r, err := NewRaw(NewInfo(shape, Float32, layout), CPU)
	if err != nil {
		return nil, err
	}
	copy(r.AsFloat32(), values)
	return r, nil
}

// Info returns the tensor's descriptor.
func (r *RawTensor) Info() Info {
	return r.info
}

// Raw returns the tensor itself, satisfying Tensor.
func (r *RawTensor) Raw() *RawTensor {
	return r
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.info.Shape
}

// Strides returns the tensor's row-major element strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.info.DType
}

// Layout returns the tensor's data layout.
func (r *RawTensor) Layout() DataLayout {
	return r.info.Layout
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.info.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.info.DType != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.info.DType))
	}
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Fill sets every float32 element to v.
func (r *RawTensor) Fill(v float32) {
	data := r.AsFloat32()
	for i := range data {
		data[i] = v
	}
}

// Format renders at most limit elements, for diagnostics.
func (r *RawTensor) Format(limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [", r.info)
	if r.info.DType != Float32 {
		fmt.Fprintf(&sb, "%d bytes]", len(r.data))
		return sb.String()
	}
	data := r.AsFloat32()
	for i, v := range data {
		if i == limit {
			fmt.Fprintf(&sb, " ... (%d more)", len(data)-limit)
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteByte(']')
	return sb.String()
}
