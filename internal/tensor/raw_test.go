package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaw(t *testing.T) {
	raw, err := NewRaw(NewInfo(Shape{2, 3}, Float32, NCHW), CPU)
	require.NoError(t, err)
	assert.Equal(t, 24, raw.ByteSize())
	assert.Equal(t, []int{3, 1}, raw.Strides())
	assert.Equal(t, CPU, raw.Device())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, raw.AsFloat32())
	assert.Same(t, raw, raw.Raw())

	_, err = NewRaw(Info{}, CPU)
	assert.Error(t, err)
}

func TestRaw_AsFloat32ZeroCopy(t *testing.T) {
	raw, err := FromFloat32(Shape{2, 2}, NCHW, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	data := raw.AsFloat32()
	data[0] = 42
	assert.Equal(t, float32(42), raw.AsFloat32()[0])

	raw.Fill(7)
	assert.Equal(t, []float32{7, 7, 7, 7}, raw.AsFloat32())
}

func TestRaw_AsFloat32WrongType(t *testing.T) {
	raw, err := NewRaw(NewInfo(Shape{2}, Int32, NCHW), CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { raw.AsFloat32() })
}

func TestFromFloat32_LengthMismatch(t *testing.T) {
	_, err := FromFloat32(Shape{2, 2}, NCHW, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestNewRawFromBytes(t *testing.T) {
	buf := make([]byte, 32)
	raw, err := NewRawFromBytes(NewInfo(Shape{4}, Float32, NCHW), buf, WebGPU)
	require.NoError(t, err)
	assert.Equal(t, 16, raw.ByteSize())
	raw.AsFloat32()[0] = 1
	assert.NotZero(t, buf[3])

	_, err = NewRawFromBytes(NewInfo(Shape{16}, Float32, NCHW), buf, CPU)
	assert.Error(t, err)
}

func TestRaw_Format(t *testing.T) {
	raw, err := FromFloat32(Shape{1, 4}, NCHW, []float32{1, 2.5, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, "[1 4] float32 NCHW [1 2.5 3 4]", raw.Format(10))
	assert.Equal(t, "[1 4] float32 NCHW [1 2.5 ... (2 more)]", raw.Format(2))

	ints, err := NewRaw(NewInfo(Shape{3}, Uint8, NCHW), CPU)
	require.NoError(t, err)
	assert.Equal(t, "[3] uint8 NCHW [3 bytes]", ints.Format(10))
}

func TestDevice_String(t *testing.T) {
	assert.Equal(t, "CPU", CPU.String())
	assert.Equal(t, "WebGPU", WebGPU.String())
	assert.Equal(t, "Unknown", Device(5).String())
}
