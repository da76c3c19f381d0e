package meltdown

import (
	"github.com/sarchlab/l1es/attack/covert"
	"github.com/sarchlab/l1es/mem/cache"
)

// DefaultKernelMemory is the kernel secret unless another one is given.
const DefaultKernelMemory = "KERNEL_SECRET_KEY_123!"

// DefaultProbeBase is where the probe array starts.
const DefaultProbeBase uint64 = 0x200000

// Builder can build Meltdown simulators.
type Builder struct {
	cache       *cache.Cache
	kernel      []byte
	probeBase   uint64
	probeStride uint64
}

// MakeBuilder creates a builder with the default kernel memory.
func MakeBuilder() Builder {
	return Builder{
		kernel:    []byte(DefaultKernelMemory),
		probeBase: DefaultProbeBase,
	}
}

// WithCache sets the cache. A 64-set, 8-way cache with 64-byte lines is used
// otherwise.
func (b Builder) WithCache(c *cache.Cache) Builder {
	b.cache = c
	return b
}

// WithKernelMemory sets the privileged memory.
func (b Builder) WithKernelMemory(kernel []byte) Builder {
	b.kernel = make([]byte, len(kernel))
	copy(b.kernel, kernel)

	return b
}

// WithProbeBase sets the probe array base address.
func (b Builder) WithProbeBase(base uint64) Builder {
	b.probeBase = base
	return b
}

// WithProbeStride sets the distance between probe slots. It defaults to the
// cache line size.
func (b Builder) WithProbeStride(stride uint64) Builder {
	b.probeStride = stride
	return b
}

// Build creates the simulator.
func (b Builder) Build() *Simulator {
	c := b.cache
	if c == nil {
		c = cache.New(64, 8, 64)
	}

	stride := b.probeStride
	if stride == 0 {
		stride = uint64(c.LineSize())
	}

	return &Simulator{
		cache:  c,
		kernel: b.kernel,
		probe:  covert.NewProbeArray(b.probeBase, stride),
	}
}

// NewSimulator creates a simulator with the default configuration.
func NewSimulator() *Simulator {
	return MakeBuilder().Build()
}
