// Package convapprox orchestrates perforated convolutions on a device queue.
//
// Two strategies share the configure / prepare / run lifecycle:
//
//   - ConvApprox samples patches with a perforation policy, multiplies them
//     with compacted filters in one GEMM, and reshapes or reconstructs the
//     full-resolution output.
//   - AccumulatingGEMM runs one GEMM per kernel tap and merges the partial
//     results with spatial offsets, optionally skipping taps at run time.
package convapprox

import (
	"log/slog"

	"github.com/born-ml/convapprox/internal/device"
	"github.com/born-ml/convapprox/internal/kernels"
)

// Options configure an orchestrator. Zero fields get defaults.
type Options struct {
	// Logger receives configure/run records. Defaults to slog.Default().
	Logger *slog.Logger
	// Queue executes kernels. Defaults to a private in-order queue closed by Close.
	Queue device.Queue
	// Allocator backs scratch tensors. Defaults to a buffer pool.
	Allocator device.Allocator
	// GEMM is the dense multiply. Defaults to the host GEMM.
	GEMM kernels.GEMM
	// Diagnostics syncs after every stage and logs scratch contents.
	Diagnostics bool
	// QueueDepth bounds pending kernels on the default queue.
	QueueDepth int
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithQueue runs kernels on q instead of a private queue.
func WithQueue(q device.Queue) Option {
	return func(o *Options) { o.Queue = q }
}

// WithAllocator sets the scratch allocator.
func WithAllocator(a device.Allocator) Option {
	return func(o *Options) { o.Allocator = a }
}

// WithGEMM sets the GEMM implementation.
func WithGEMM(g kernels.GEMM) Option {
	return func(o *Options) { o.GEMM = g }
}

// WithDiagnostics enables per-stage dumps.
func WithDiagnostics(enabled bool) Option {
	return func(o *Options) { o.Diagnostics = enabled }
}

// WithQueueDepth bounds pending kernels on the default queue.
func WithQueueDepth(n int) Option {
	return func(o *Options) { o.QueueDepth = n }
}

// dispatcher is the state both orchestrators share: resolved options and the
// queue they dispatch to.
type dispatcher struct {
	opts       Options
	logger     *slog.Logger
	queue      device.Queue
	ownedQueue *device.InOrderQueue
	closed     bool
}

func newDispatcher(opts []Option, attrs ...any) dispatcher {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Allocator == nil {
		o.Allocator = device.NewBufferPool()
	}
	if o.GEMM == nil {
		o.GEMM = kernels.NewCPUGEMM(device.NewCPU())
	}
	if o.QueueDepth < 1 {
		o.QueueDepth = 64
	}

	d := dispatcher{opts: o, logger: o.Logger.With(attrs...), queue: o.Queue}
	if d.queue == nil {
		d.ownedQueue = device.NewInOrderQueue(o.QueueDepth)
		d.queue = d.ownedQueue
	}
	return d
}

// dump syncs the queue and logs a tensor's contents after a stage.
func (d *dispatcher) dump(stage string, s *device.Scratch) error {
	if !d.opts.Diagnostics {
		return nil
	}
	if err := d.queue.Sync(); err != nil {
		return err
	}
	if raw := s.Raw(); raw != nil {
		d.logger.Info("stage output", "stage", stage, "tensor", s.Name(), "values", raw.Format(32))
	}
	return nil
}

// close stops the private queue. The dispatcher refuses work afterwards.
func (d *dispatcher) close() {
	if d.ownedQueue != nil {
		d.ownedQueue.Close()
		d.ownedQueue = nil
	}
	d.queue = nil
	d.closed = true
}
