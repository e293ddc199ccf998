package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/convapprox/internal/perforation"
)

// ModeTaps selects the tap-decomposition orchestrator instead of a perforation mode.
const ModeTaps = "taps"

// RunConfig describes one benchmark run.
type RunConfig struct {
	Batch    int    `yaml:"batch"`
	Channels int    `yaml:"channels"`
	Height   int    `yaml:"height"`
	Width    int    `yaml:"width"`
	Filters  int    `yaml:"filters"`
	Kernel   int    `yaml:"kernel"`
	Stride   int    `yaml:"stride"`
	Pad      int    `yaml:"pad"`
	Mode     string `yaml:"mode"`
	Every    int    `yaml:"every"`
	Seed     uint64 `yaml:"seed"`
	GEMM     string `yaml:"gemm"`
	Diagnose bool   `yaml:"diagnostics"`
}

// DefaultRunConfig is a small same-padded 3x3 convolution with every second row skipped.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Batch:    1,
		Channels: 3,
		Height:   32,
		Width:    32,
		Filters:  8,
		Kernel:   3,
		Stride:   1,
		Pad:      1,
		Mode:     "row",
		Every:    2,
		Seed:     42,
		GEMM:     "cpu",
	}
}

// LoadRunConfig reads a YAML file on top of the defaults. Unknown keys are errors.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the dimensions and names in the config.
func (c RunConfig) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"batch", c.Batch},
		{"channels", c.Channels},
		{"height", c.Height},
		{"width", c.Width},
		{"filters", c.Filters},
		{"kernel", c.Kernel},
		{"stride", c.Stride},
	}
	for _, d := range dims {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", d.name, d.value)
		}
	}
	if c.Pad < 0 {
		return fmt.Errorf("pad must be non-negative, got %d", c.Pad)
	}
	if c.Every < 0 {
		return fmt.Errorf("every must be non-negative, got %d", c.Every)
	}
	switch c.GEMM {
	case "cpu", "webgpu":
	default:
		return fmt.Errorf("unknown gemm backend %q (want cpu or webgpu)", c.GEMM)
	}
	if c.Mode == ModeTaps {
		if c.Kernel%2 == 0 || c.Stride != 1 || c.Pad != c.Kernel/2 {
			return fmt.Errorf("taps mode needs an odd kernel with stride 1 and pad %d", c.Kernel/2)
		}
		return nil
	}
	_, err := c.Policy()
	return err
}

// Policy returns the perforation policy for non-taps modes.
func (c RunConfig) Policy() (perforation.Policy, error) {
	mode, err := perforation.ParseMode(c.Mode)
	if err != nil {
		return perforation.None(), err
	}
	return perforation.NewPolicy(mode, 0, c.Every)
}

// Geometry returns the convolution geometry.
func (c RunConfig) Geometry() perforation.Geometry {
	return perforation.NewGeometry(c.Stride, c.Pad)
}
