package device

import (
	"fmt"
	"sync"
)

// Allocator hands out host storage for scratch tensors.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte)
}

// BufferSize represents different buffer size categories for pooling.
type BufferSize int

const (
	// SmallBuffer for buffers < 4KB.
	SmallBuffer BufferSize = iota
	// MediumBuffer for buffers 4KB-1MB.
	MediumBuffer
	// LargeBuffer for buffers > 1MB.
	LargeBuffer
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPoolSize     = 100 // Max buffers per category
)

// BufferPool is an Allocator that recycles freed buffers.
// Buffers are categorised by size; a pooled buffer is reused when its capacity fits.
type BufferPool struct {
	pools [3][][]byte

	mu sync.Mutex

	totalAllocated uint64
	totalReleased  uint64
	poolHits       uint64
	poolMisses     uint64
}

// NewBufferPool creates an empty pool.
func NewBufferPool() *BufferPool {
	p := &BufferPool{}
	for i := range p.pools {
		p.pools[i] = make([][]byte, 0, maxPoolSize)
	}
	return p
}

// Allocate returns a zeroed buffer of exactly size bytes.
func (p *BufferPool) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate: invalid size %d", size)
	}

	p.mu.Lock()
	category := categorize(size)
	pool := p.pools[category]
	for i, buf := range pool {
		if cap(buf) >= size {
			p.pools[category] = append(pool[:i], pool[i+1:]...)
			p.poolHits++
			p.mu.Unlock()

			buf = buf[:size]
			clear(buf)
			return buf, nil
		}
	}
	p.poolMisses++
	p.totalAllocated++
	p.mu.Unlock()

	return make([]byte, size), nil
}

// Free returns buf to the pool. If the pool is full the buffer is dropped.
func (p *BufferPool) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalReleased++
	category := categorize(cap(buf))
	if len(p.pools[category]) >= maxPoolSize {
		return
	}
	p.pools[category] = append(p.pools[category], buf[:0])
}

// Clear drops all pooled buffers.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.pools {
		p.pools[i] = p.pools[i][:0]
	}
}

// Stats returns statistics about buffer pool usage.
func (p *BufferPool) Stats() (allocated, released, hits, misses uint64, pooledCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pool := range p.pools {
		pooledCount += len(pool)
	}
	return p.totalAllocated, p.totalReleased, p.poolHits, p.poolMisses, pooledCount
}

func categorize(size int) BufferSize {
	if size < smallThreshold {
		return SmallBuffer
	}
	if size < mediumThreshold {
		return MediumBuffer
	}
	return LargeBuffer
}
