package device

import (
	"fmt"
	"sync"

	"github.com/born-ml/convapprox/internal/tensor"
)

// Scratch is an intermediate tensor owned by one orchestrator. Its descriptor
// is fixed at configure time; storage is bound only while its memory group is acquired.
type Scratch struct {
	name string
	info tensor.Info
	raw  *tensor.RawTensor
}

// NewScratch declares a scratch tensor with an empty descriptor.
func NewScratch(name string) *Scratch {
	return &Scratch{name: name}
}

// Name returns the scratch tensor's name.
func (s *Scratch) Name() string {
	return s.name
}

// Info returns the scratch descriptor.
func (s *Scratch) Info() tensor.Info {
	return s.info
}

// Raw returns the bound storage, or nil outside an acquired scope.
func (s *Scratch) Raw() *tensor.RawTensor {
	return s.raw
}

// InitInfo sets the descriptor if it has not been set yet.
// Returns true if the descriptor was initialised.
func (s *Scratch) InitInfo(info tensor.Info) bool {
	return tensor.AutoInitIfEmpty(&s.info, info)
}

// SetInfo replaces the descriptor. The scratch must not be bound.
func (s *Scratch) SetInfo(info tensor.Info) {
	if s.raw != nil {
		panic(fmt.Sprintf("device: SetInfo on bound scratch %q", s.name))
	}
	s.info = info.WithShape(info.Shape)
}

// MemoryGroup binds storage to a set of scratch tensors for the duration of a scope.
type MemoryGroup struct {
	alloc   Allocator
	managed []*Scratch

	mu       sync.Mutex
	acquired bool
}

// NewMemoryGroup creates a group allocating from alloc.
func NewMemoryGroup(alloc Allocator) *MemoryGroup {
	return &MemoryGroup{alloc: alloc}
}

// Manage adds scratch tensors to the group. Their descriptors must be set
// before Acquire.
func (g *MemoryGroup) Manage(scratch ...*Scratch) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.managed = append(g.managed, scratch...)
}

// Managed returns the number of scratch tensors in the group.
func (g *MemoryGroup) Managed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.managed)
}

// Acquire allocates storage for every managed scratch tensor and returns the
// function that releases it. The release function is idempotent.
func (g *MemoryGroup) Acquire() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.acquired {
		return nil, fmt.Errorf("memory group already acquired")
	}

	bound := make([]*Scratch, 0, len(g.managed))
	undo := func() {
		for _, s := range bound {
			g.alloc.Free(s.raw.Data())
			s.raw = nil
		}
	}

	for _, s := range g.managed {
		if s.info.IsEmpty() {
			undo()
			return nil, fmt.Errorf("scratch %q has no descriptor", s.name)
		}
		buf, err := g.alloc.Allocate(s.info.ByteSize())
		if err != nil {
			undo()
			return nil, fmt.Errorf("scratch %q: %w", s.name, err)
		}
		raw, err := tensor.NewRawFromBytes(s.info, buf, tensor.CPU)
		if err != nil {
			g.alloc.Free(buf)
			undo()
			return nil, fmt.Errorf("scratch %q: %w", s.name, err)
		}
		s.raw = raw
		bound = append(bound, s)
	}
	g.acquired = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			undo()
			g.acquired = false
		})
	}, nil
}
