package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convapprox/internal/device"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := DefaultConfig()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			if !results[b][c] {
				t.Errorf("Missing result at [%d][%d]", b, c)
			}
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Sequential())

	assert.Equal(t, int64(100), counter)
}

func TestForRange_CoversEachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 5}
	n := 101
	hits := make([]int32, n)

	err := ForRange(n, func(start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
		return nil
	}, cfg)
	require.NoError(t, err)

	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestForRange_PropagatesError(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	boom := errors.New("boom")

	err := ForRange(16, func(start, _ int) error {
		if start == 0 {
			return boom
		}
		return nil
	}, cfg)
	assert.ErrorIs(t, err, boom)
}

func TestForRange_RecoversWorkerPanic(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	err := ForRange(16, func(start, _ int) error {
		if start == 4 {
			panic("chunk 4")
		}
		return nil
	}, cfg)
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "chunk 4", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

func TestFor_RepanicsOnCaller(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	assert.Panics(t, func() {
		For(16, func(i int) {
			if i == 9 {
				panic("index 9")
			}
		}, cfg)
	})
}

type loopKernel struct {
	cfg Config
}

func (k loopKernel) Name() string { return "loop" }

func (k loopKernel) Run() error {
	For(64, func(i int) {
		if i == 33 {
			panic("bad index")
		}
	}, k.cfg)
	return nil
}

func TestFor_PanicBecomesKernelError(t *testing.T) {
	q := device.NewInOrderQueue(1)
	defer q.Close()

	q.Enqueue(loopKernel{cfg: Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}})
	err := q.Sync()
	var kerr *device.KernelError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "loop", kerr.Kernel)
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad index", perr.Value)
}

func TestForRange_Empty(t *testing.T) {
	called := false
	err := ForRange(0, func(_, _ int) error {
		called = true
		return nil
	}, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, called)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Sequential())
		}
	})
}
