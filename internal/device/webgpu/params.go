package webgpu

import (
	"encoding/binary"
	"math"
)

// gemmParamsSize is the uniform block size, rounded up to 16 bytes.
const gemmParamsSize = 48

// gemmParams mirrors the Params struct of gemmShader.
type gemmParams struct {
	M, K, N    int
	Batches    int
	LHSBatched bool
	RHSBatched bool
	HasBias    bool
	Alpha      float32
	Beta       float32
}

func (p gemmParams) bytes() []byte {
	buf := make([]byte, gemmParamsSize)
	put := func(off int, v int) {
		//nolint:gosec // G115: dimensions are validated non-negative
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
	}
	put(0, p.M)
	put(4, p.K)
	put(8, p.N)
	put(12, p.Batches)
	if p.LHSBatched {
		put(16, p.M*p.K)
	}
	if p.RHSBatched {
		put(20, p.K*p.N)
	}
	if p.HasBias {
		put(24, 1)
	}
	binary.LittleEndian.PutUint32(buf[32:], math.Float32bits(p.Alpha))
	binary.LittleEndian.PutUint32(buf[36:], math.Float32bits(p.Beta))
	return buf
}
