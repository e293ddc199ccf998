package kernels

import (
	"fmt"

	"github.com/born-ml/convapprox/internal/parallel"
	"github.com/born-ml/convapprox/internal/perforation"
	"github.com/born-ml/convapprox/internal/tensor"
)

// DirectConv2D is the exact reference convolution.
//
// Input shape: [batch, in_channels, height, width]
// Weights shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Padding reads as zero. It is used to measure the error of the perforated
// paths and has no perforation of its own.
func DirectConv2D(input, weights *tensor.RawTensor, g perforation.Geometry) (*tensor.RawTensor, error) {
	plan, err := perforation.PlanConvolution(input.Info(), weights.Info(), g, perforation.None())
	if err != nil {
		return nil, fmt.Errorf("conv2d: %w", err)
	}
	output, err := tensor.NewRaw(tensor.NewInfo(plan.OutputShape(), tensor.Float32, tensor.NCHW), tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("conv2d: failed to create output tensor: %w", err)
	}
	directConv2DFloat32(output.AsFloat32(), input.AsFloat32(), weights.AsFloat32(), plan)
	return output, nil
}

func directConv2DFloat32(out, in, w []float32, plan perforation.Plan) {
	g := plan.Geometry
	C, H, W := plan.Channels, plan.InH, plan.InW
	KH, KW := plan.Kernel.H, plan.Kernel.W
	M, HOut, WOut := plan.Filters, plan.OutH, plan.OutW

	parallel.ForBatch(plan.Batches, M, func(n, m int) {
		dst := out[(n*M+m)*HOut*WOut:]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				sum := float32(0)
				for c := 0; c < C; c++ {
					plane := in[(n*C+c)*H*W:]
					kernel := w[(m*C+c)*KH*KW:]
					for kh := 0; kh < KH; kh++ {
						h := oh*g.Stride.H - g.Pad.Top + kh*g.Dilation.H
						if h < 0 || h >= H {
							continue
						}
						for kw := 0; kw < KW; kw++ {
							x := ow*g.Stride.W - g.Pad.Left + kw*g.Dilation.W
							if x < 0 || x >= W {
								continue
							}
							sum += plane[h*W+x] * kernel[kh*KW+kw]
						}
					}
				}
				dst[oh*WOut+ow] = sum
			}
		}
	}, parallel.DefaultConfig())
}
