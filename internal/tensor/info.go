package tensor

import "fmt"

// Info describes a tensor without owning its storage.
// The zero value is an uninitialised descriptor (see IsEmpty).
type Info struct {
	Shape  Shape
	DType  DataType
	Layout DataLayout
}

// NewInfo creates a descriptor.
func NewInfo(shape Shape, dtype DataType, layout DataLayout) Info {
	return Info{Shape: shape.Clone(), DType: dtype, Layout: layout}
}

// IsEmpty reports whether the descriptor has not been given a shape yet.
func (i Info) IsEmpty() bool {
	return len(i.Shape) == 0
}

// NumElements returns the number of elements described.
func (i Info) NumElements() int {
	return i.Shape.NumElements()
}

// ByteSize returns the storage size in bytes.
func (i Info) ByteSize() int {
	return i.NumElements() * i.DType.Size()
}

// Dim returns the extent of a logical dimension of a 4D descriptor.
func (i Info) Dim(d Dimension) int {
	if len(i.Shape) != 4 {
		panic(fmt.Sprintf("tensor: Dim(%d) on %dD shape %v", d, len(i.Shape), i.Shape))
	}
	return i.Shape[i.Layout.Index(d)]
}

// WithShape returns a copy of the descriptor with a different shape.
func (i Info) WithShape(shape Shape) Info {
	return Info{Shape: shape.Clone(), DType: i.DType, Layout: i.Layout}
}

// String formats the descriptor for logs and error messages.
func (i Info) String() string {
	return fmt.Sprintf("%v %s %s", []int(i.Shape), i.DType, i.Layout)
}

// AutoInitIfEmpty copies src into dst when dst has no shape yet.
// Returns true if dst was initialised.
func AutoInitIfEmpty(dst *Info, src Info) bool {
	if !dst.IsEmpty() {
		return false
	}
	*dst = src.WithShape(src.Shape)
	return true
}
