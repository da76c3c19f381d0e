package spectre

import (
	"github.com/sarchlab/l1es/attack/covert"
	"github.com/sarchlab/l1es/mem/cache"
)

// DefaultSecret is the victim's memory unless another one is given.
const DefaultSecret = "SECRET_PASS_123!"

// DefaultProbeBase is where the probe array starts.
const DefaultProbeBase uint64 = 0x100000

// Builder can build Spectre simulators.
type Builder struct {
	cache       *cache.Cache
	memory      []byte
	bound       int
	probeBase   uint64
	probeStride uint64
}

// MakeBuilder creates a builder with the default secret, a bound equal to
// the secret length, and a probe array with one slot per cache line.
func MakeBuilder() Builder {
	return Builder{
		memory:    []byte(DefaultSecret),
		bound:     -1,
		probeBase: DefaultProbeBase,
	}
}

// WithCache sets the cache the simulator runs on. A 64-set, 8-way cache with
// 64-byte lines is used otherwise.
func (b Builder) WithCache(c *cache.Cache) Builder {
	b.cache = c
	return b
}

// WithMemory sets the victim's memory.
func (b Builder) WithMemory(memory []byte) Builder {
	b.memory = make([]byte, len(memory))
	copy(b.memory, memory)

	return b
}

// WithBound sets the length the bounds check allows. Memory beyond the
// bound can only be reached speculatively.
func (b Builder) WithBound(bound int) Builder {
	b.bound = bound
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

	bound := b.bound
	if bound < 0 {
		bound = len(b.memory)
	}

	b.mustBeValid(bound)

	stride := b.probeStride
	if stride == 0 {
		stride = uint64(c.LineSize())
	}

	return &Simulator{
		cache:     c,
		memory:    b.memory,
		bound:     bound,
		probe:     covert.NewProbeArray(b.probeBase, stride),
		predictor: NewBranchPredictor(),
	}
}

func (b Builder) mustBeValid(bound int) {
	if bound > len(b.memory) {
		panic("bound exceeds the victim's memory")
	}
}

// NewSimulator creates a simulator with the default configuration.
func NewSimulator() *Simulator {
	return MakeBuilder().Build()
}
