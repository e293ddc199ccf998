package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_Dim(t *testing.T) {
	nchw := NewInfo(Shape{2, 3, 5, 7}, Float32, NCHW)
	assert.Equal(t, 2, nchw.Dim(Batches))
	assert.Equal(t, 3, nchw.Dim(Channel))
	assert.Equal(t, 5, nchw.Dim(Height))
	assert.Equal(t, 7, nchw.Dim(Width))

	nhwc := NewInfo(Shape{2, 5, 7, 3}, Float32, NHWC)
	assert.Equal(t, 3, nhwc.Dim(Channel))
	assert.Equal(t, 5, nhwc.Dim(Height))
	assert.Equal(t, 7, nhwc.Dim(Width))

	assert.Panics(t, func() { NewInfo(Shape{2, 3}, Float32, NCHW).Dim(Width) })
}

func TestInfo_Sizes(t *testing.T) {
	info := NewInfo(Shape{2, 3}, Float64, NCHW)
	assert.Equal(t, 6, info.NumElements())
	assert.Equal(t, 48, info.ByteSize())
	assert.Equal(t, "[2 3] float64 NCHW", info.String())
}

func TestInfo_NewInfoCopiesShape(t *testing.T) {
	shape := Shape{1, 2}
	info := NewInfo(shape, Float32, NCHW)
	shape[0] = 9
	assert.Equal(t, Shape{1, 2}, info.Shape)
}

func TestAutoInitIfEmpty(t *testing.T) {
	src := NewInfo(Shape{1, 4, 9}, Float32, NCHW)

	var dst Info
	assert.True(t, dst.IsEmpty())
	assert.True(t, AutoInitIfEmpty(&dst, src))
	assert.Equal(t, src, dst)

	other := NewInfo(Shape{2}, Float32, NCHW)
	assert.False(t, AutoInitIfEmpty(&other, src))
	assert.Equal(t, Shape{2}, other.Shape)
}

func TestDataType(t *testing.T) {
	tests := []struct {
		dt     DataType
		size   int
		name   string
		kernel string
	}{
		{Float32, 4, "float32", "float"},
		{Float64, 8, "float64", "double"},
		{Int32, 4, "int32", "int"},
		{Uint8, 1, "uint8", "uchar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.dt.Size())
			assert.Equal(t, tt.name, tt.dt.String())
			assert.Equal(t, tt.kernel, tt.dt.KernelType())
		})
	}
	assert.Panics(t, func() { DataType(99).Size() })
}

func TestDataLayout_String(t *testing.T) {
	assert.Equal(t, "NCHW", NCHW.String())
	assert.Equal(t, "NHWC", NHWC.String())
	assert.Equal(t, "unknown", DataLayout(7).String())
}
