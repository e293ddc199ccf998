package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedKernel is returned when a device cannot build a kernel.
var ErrUnsupportedKernel = errors.New("kernel not supported by device")

// BuildOptions are the compile-time defines a kernel is specialised with,
// e.g. "DATA_TYPE=float".
type BuildOptions []string

// Program is a kernel built for one device and one set of build options.
type Program struct {
	Name    string
	Options BuildOptions
	Device  string
}

// Key identifies the program in a compile context cache.
func (p *Program) Key() string {
	return programKey(p.Name, p.Options)
}

// CompileContext builds and caches kernel programs for one device.
// It is passed explicitly to every Configure call; there is no global kernel library.
type CompileContext struct {
	device Device

	mu       sync.RWMutex
	programs map[string]*Program

	hits   uint64
	misses uint64
}

// NewCompileContext creates a compile context for dev.
func NewCompileContext(dev Device) *CompileContext {
	return &CompileContext{
		device:   dev,
		programs: make(map[string]*Program),
	}
}

// Device returns the device programs are built for.
func (cc *CompileContext) Device() Device {
	return cc.device
}

// CreateKernel returns the cached program for name and opts, building it on first use.
func (cc *CompileContext) CreateKernel(name string, opts BuildOptions) (*Program, error) {
	if !cc.device.Supports(name) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedKernel, name, cc.device.Name())
	}

	key := programKey(name, opts)

	cc.mu.RLock()
	program, exists := cc.programs[key]
	cc.mu.RUnlock()
	if exists {
		cc.mu.Lock()
		cc.hits++
		cc.mu.Unlock()
		return program, nil
	}

	sorted := append(BuildOptions(nil), opts...)
	sort.Strings(sorted)
	program = &Program{Name: name, Options: sorted, Device: cc.device.Name()}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cached, raced := cc.programs[key]; raced {
		cc.hits++
		return cached, nil
	}
	cc.misses++
	cc.programs[key] = program
	return program, nil
}

// Stats returns cache hits, misses and the number of built programs.
func (cc *CompileContext) Stats() (hits, misses uint64, programs int) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.hits, cc.misses, len(cc.programs)
}

func programKey(name string, opts BuildOptions) string {
	sorted := append([]string(nil), opts...)
	sort.Strings(sorted)
	return name + "|" + strings.Join(sorted, ",")
}
