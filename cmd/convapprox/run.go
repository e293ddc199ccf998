package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/convapprox/internal/convapprox"
	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/device/webgpu"
	"github.com/born-ml/convapprox/internal/kernels"
	"github.com/born-ml/convapprox/internal/tensor"
)

func newRunCommand() *cobra.Command {
	var configPath string
	flagCfg := DefaultRunConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one approximate convolution and report its error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := DefaultRunConfig()
			if configPath != "" {
				loaded, err := LoadRunConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(&cfg, flagCfg, cmd.Flags())
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runConfig(cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML run configuration")
	f.IntVar(&flagCfg.Batch, "n", flagCfg.Batch, "batch size")
	f.IntVar(&flagCfg.Channels, "c", flagCfg.Channels, "input channels")
	f.IntVar(&flagCfg.Height, "h", flagCfg.Height, "input height")
	f.IntVar(&flagCfg.Width, "w", flagCfg.Width, "input width")
	f.IntVar(&flagCfg.Filters, "m", flagCfg.Filters, "output channels")
	f.IntVar(&flagCfg.Kernel, "k", flagCfg.Kernel, "square kernel size")
	f.IntVar(&flagCfg.Stride, "stride", flagCfg.Stride, "stride on both axes")
	f.IntVar(&flagCfg.Pad, "pad", flagCfg.Pad, "padding on every side")
	f.StringVar(&flagCfg.Mode, "mode", flagCfg.Mode, "row, filter, none or taps")
	f.IntVar(&flagCfg.Every, "every", flagCfg.Every, "skip every Nth row or tap (0 or 1 skips nothing)")
	f.Uint64Var(&flagCfg.Seed, "seed", flagCfg.Seed, "random seed")
	f.StringVar(&flagCfg.GEMM, "gemm", flagCfg.GEMM, "cpu or webgpu")
	f.BoolVar(&flagCfg.Diagnose, "diagnostics", flagCfg.Diagnose, "log every intermediate tensor")
	return cmd
}

// applyFlags copies only the flags the user actually set over cfg.
func applyFlags(cfg *RunConfig, from RunConfig, flags *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("n", func() { cfg.Batch = from.Batch })
	set("c", func() { cfg.Channels = from.Channels })
	set("h", func() { cfg.Height = from.Height })
	set("w", func() { cfg.Width = from.Width })
	set("m", func() { cfg.Filters = from.Filters })
	set("k", func() { cfg.Kernel = from.Kernel })
	set("stride", func() { cfg.Stride = from.Stride })
	set("pad", func() { cfg.Pad = from.Pad })
	set("mode", func() { cfg.Mode = from.Mode })
	set("every", func() { cfg.Every = from.Every })
	set("seed", func() { cfg.Seed = from.Seed })
	set("gemm", func() { cfg.GEMM = from.GEMM })
	set("diagnostics", func() { cfg.Diagnose = from.Diagnose })
}

func runConfig(w io.Writer, cfg RunConfig) error {
	level := slog.LevelInfo
	if cfg.Diagnose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cpu := device.NewCPU()
	var gemm kernels.GEMM = kernels.NewCPUGEMM(cpu)
	if cfg.GEMM == "webgpu" {
		backend, err := webgpu.New()
		if err != nil {
			return fmt.Errorf("webgpu: %w", err)
		}
		defer backend.Release()
		gemm = backend
	}
	logger.Info("device", "name", cpu.Name(), "gemm", cfg.GEMM)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	input, err := randomTensor(rng, cfg.Batch, cfg.Channels, cfg.Height, cfg.Width)
	if err != nil {
		return err
	}
	weights, err := randomTensor(rng, cfg.Filters, cfg.Channels, cfg.Kernel, cfg.Kernel)
	if err != nil {
		return err
	}

	reference, err := kernels.DirectConv2D(input, weights, cfg.Geometry())
	if err != nil {
		return err
	}
	output, err := tensor.NewRaw(reference.Info(), tensor.CPU)
	if err != nil {
		return err
	}

	opts := []convapprox.Option{
		convapprox.WithLogger(logger),
		convapprox.WithGEMM(gemm),
		convapprox.WithDiagnostics(cfg.Diagnose),
	}
	cc := device.NewCompileContext(cpu)

	start := time.Now()
	if cfg.Mode == ModeTaps {
		op := convapprox.NewAccumulating(opts...)
		defer op.Close()
		if err := op.Configure(cc, input, weights, output, cfg.Geometry()); err != nil {
			return err
		}
		if err := op.RunWithSkip(cfg.Every); err != nil {
			return err
		}
	} else {
		policy, err := cfg.Policy()
		if err != nil {
			return err
		}
		op := convapprox.New(opts...)
		defer op.Close()
		if err := op.Configure(cc, input, weights, nil, output, cfg.Geometry(), policy); err != nil {
			return err
		}
		if err := op.Run(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	maxErr, meanErr := absError(reference.AsFloat32(), output.AsFloat32())
	fmt.Fprintf(w, "Mode:       %s (every %d)\n", cfg.Mode, cfg.Every)
	fmt.Fprintf(w, "Output:     %v\n", output.Shape())
	fmt.Fprintf(w, "Max error:  %.6g\n", maxErr)
	fmt.Fprintf(w, "Mean error: %.6g\n", meanErr)
	fmt.Fprintf(w, "Elapsed:    %v\n", elapsed)
	return nil
}

func randomTensor(rng *rand.Rand, shape ...int) (*tensor.RawTensor, error) {
	values := make([]float32, tensor.Shape(shape).NumElements())
	for i := range values {
		values[i] = rng.Float32()*2 - 1
	}
	return tensor.FromFloat32(tensor.Shape(shape), tensor.NCHW, values)
}

// absError returns the max and mean absolute difference of two equal-length slices.
func absError(want, got []float32) (maxErr, meanErr float64) {
	if len(want) == 0 {
		return 0, 0
	}
	var sum float64
	for i := range want {
		d := math.Abs(float64(want[i]) - float64(got[i]))
		sum += d
		maxErr = math.Max(maxErr, d)
	}
	return maxErr, sum / float64(len(want))
}
