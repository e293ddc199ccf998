package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Sync after Close and recorded for kernels
// enqueued after Close.
var ErrQueueClosed = errors.New("queue closed")

// Kernel is a configured unit of device work.
type Kernel interface {
	Name() string
	Run() error
}

// Queue executes kernels in submission order.
// Enqueue returns immediately; Sync blocks until everything submitted so far has run.
type Queue interface {
	Enqueue(k Kernel)
	Sync() error
}

// KernelError records which kernel failed.
type KernelError struct {
	Kernel string
	Err    error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel %s: %v", e.Kernel, e.Err)
}

func (e *KernelError) Unwrap() error {
	return e.Err
}

type queueItem struct {
	kernel  Kernel
	barrier chan error
}

// InOrderQueue runs kernels one after another on a dedicated goroutine.
//
// The first failure is sticky: later kernels are skipped until the next Sync,
// which reports the failure and clears it.
type InOrderQueue struct {
	items chan queueItem
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped error // first kernel enqueued after Close

	err error // owned by the worker goroutine

	executed atomic.Uint64
	skipped  atomic.Uint64
}

// NewInOrderQueue starts a queue with room for depth pending kernels.
func NewInOrderQueue(depth int) *InOrderQueue {
	if depth < 1 {
		depth = 1
	}
	q := &InOrderQueue{
		items: make(chan queueItem, depth),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *InOrderQueue) loop() {
	defer close(q.done)
	for item := range q.items {
		if item.barrier != nil {
			item.barrier <- q.err
			q.err = nil
			continue
		}
		if q.err != nil {
			q.skipped.Add(1)
			continue
		}
		if err := runKernel(item.kernel); err != nil {
			q.err = &KernelError{Kernel: item.kernel.Name(), Err: err}
			continue
		}
		q.executed.Add(1)
	}
}

// runKernel converts a kernel panic into an error so one bad dispatch
// cannot take the worker goroutine down.
func runKernel(k Kernel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return k.Run()
}

// Enqueue submits k. A kernel enqueued after Close does not run: it is counted
// as skipped and the first one is reported by Err and Sync.
func (q *InOrderQueue) Enqueue(k Kernel) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.skipped.Add(1)
		if q.dropped == nil {
			q.dropped = &KernelError{Kernel: k.Name(), Err: ErrQueueClosed}
		}
		return
	}
	q.items <- queueItem{kernel: k}
}

// Err returns the failure recorded for a kernel enqueued after Close, if any.
func (q *InOrderQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Sync waits for all previously enqueued kernels and returns the first failure.
func (q *InOrderQueue) Sync() error {
	barrier := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		err := q.dropped
		q.mu.Unlock()
		if err == nil {
			err = ErrQueueClosed
		}
		return err
	}
	q.items <- queueItem{barrier: barrier}
	q.mu.Unlock()
	return <-barrier
}

// Stats returns the number of kernels executed and the number skipped after a
// failure or a Close.
func (q *InOrderQueue) Stats() (executed, skipped uint64) {
	return q.executed.Load(), q.skipped.Load()
}

// Close drains pending kernels and stops the worker. It is safe to call twice.
func (q *InOrderQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()
	<-q.done
}
