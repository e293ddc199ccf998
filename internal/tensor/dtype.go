// Package tensor provides the tensor descriptors and host storage shared by the
// perforated convolution kernels.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Uint8
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Uint8:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	default:
		return "unknown"
	}
}

// KernelType returns the element type name used in kernel build options.
func (dt DataType) KernelType() string {
	switch dt {
	case Float32:
		return "float"
	case Float64:
		return "double"
	case Int32:
		return "int"
	case Uint8:
		return "uchar"
	default:
		return "unknown"
	}
}
