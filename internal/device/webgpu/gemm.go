//go:build windows

package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/convapprox/internal/kernels"
)

const gemmTile = 16

// GEMM implements kernels.GEMM. Strided operands are packed on the host,
// multiplied on the device and scattered back into out.
func (b *Backend) GEMM(lhs, rhs, bias, out kernels.Operand, alpha, beta float32) error {
	if err := kernels.CheckGEMMShapes(lhs, rhs, bias, out); err != nil {
		return err
	}

	params := gemmParams{
		M: out.Rows, K: lhs.Cols, N: out.Cols,
		Batches:    out.BatchCount(),
		LHSBatched: lhs.BatchCount() > 1,
		RHSBatched: rhs.BatchCount() > 1,
		HasBias:    !bias.IsAbsent(),
		Alpha:      alpha,
		Beta:       beta,
	}

	shader := b.compileShader("gemm", gemmShader)
	pipeline := b.getOrCreatePipeline("gemm", shader)

	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc
	lhsData := float32Bytes(packOperand(lhs))
	bufferA := b.createBuffer(lhsData, storage)
	defer bufferA.Release()

	rhsData := float32Bytes(packOperand(rhs))
	bufferB := b.createBuffer(rhsData, storage)
	defer bufferB.Release()

	biasData := make([]byte, 16) // bound even when unused
	if params.HasBias {
		biasData = float32Bytes(packOperand(bias))
	}
	bufferBias := b.createBuffer(biasData, storage)
	defer bufferBias.Release()

	outData := float32Bytes(packOperand(out))
	resultSize := uint64(len(outData))
	bufferResult := b.createBuffer(outData, storage|wgpu.BufferUsageCopyDst)
	defer bufferResult.Release()

	bufferParams := b.createUniformBuffer(params.bytes())
	defer bufferParams.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferA, 0, uint64(len(lhsData))),
		wgpu.BufferBindingEntry(1, bufferB, 0, uint64(len(rhsData))),
		wgpu.BufferBindingEntry(2, bufferBias, 0, uint64(len(biasData))),
		wgpu.BufferBindingEntry(3, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(4, bufferParams, 0, gemmParamsSize),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)

	//nolint:gosec // G115: workgroup counts are non-negative
	computePass.DispatchWorkgroups(
		uint32((params.N+gemmTile-1)/gemmTile),
		uint32((params.M+gemmTile-1)/gemmTile),
		uint32(params.Batches),
	)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	resultData, err := b.readBuffer(bufferResult, resultSize)
	if err != nil {
		return fmt.Errorf("webgpu gemm: %w", err)
	}
	unpackOperand(out, bytesFloat32(resultData))
	return nil
}
