package cache

import (
	"fmt"

	"github.com/sarchlab/l1es/sim/hooking"
)

// Builder can build caches.
type Builder struct {
	numSets         int
	numWays         int
	lineSize        int
	replaceStrategy ReplacementPolicy
	timing          TimingModel
	config          *Config
	hooks           []hooking.Hook
}

// MakeBuilder creates a new builder with a 32KB, 8-way, 64-byte-line LRU
// geometry and the default timing model.
func MakeBuilder() Builder {
	return Builder{
		numSets:         64,
		numWays:         8,
		lineSize:        64,
		replaceStrategy: LRU,
		timing:          DefaultTiming,
	}
}

// WithNumSets sets the number of sets of the cache.
func (b Builder) WithNumSets(numSets int) Builder {
	b.numSets = numSets
	b.config = nil

	return b
}

// WithWayAssociativity sets the way associativity of the cache.
func (b Builder) WithWayAssociativity(numWays int) Builder {
	b.numWays = numWays
	b.config = nil

	return b
}

// WithLineSize sets the number of bytes per cache line.
func (b Builder) WithLineSize(lineSize int) Builder {
	b.lineSize = lineSize
	b.config = nil

	return b
}

// WithReplacementPolicy sets how victims are chosen.
func (b Builder) WithReplacementPolicy(policy ReplacementPolicy) Builder {
	b.replaceStrategy = policy
	if b.config != nil {
		config := *b.config
		config.Policy = policy
		b.config = &config
	}

	return b
}

// WithConfig takes the whole geometry from a configuration.
func (b Builder) WithConfig(config Config) Builder {
	b.config = &config
	b.replaceStrategy = config.Policy

	return b
}

// WithTimingModel replaces the default hit/miss latency model.
func (b Builder) WithTimingModel(timing TimingModel) Builder {
	b.timing = timing
	return b
}

// WithHook registers a hook on the built cache.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	hooks := make([]hooking.Hook, 0, len(b.hooks)+1)
	hooks = append(hooks, b.hooks...)
	b.hooks = append(hooks, hook)

	return b
}

// Build builds a cache. It panics if the geometry is not valid.
func (b Builder) Build() *Cache {
	config := b.resolveConfig()
	b.mustBeValid(config)

	c := newCache(config, b.timing)
	for _, hook := range b.hooks {
		c.AcceptHook(hook)
	}

	return c
}

func (b Builder) resolveConfig() Config {
	if b.config != nil {
		return *b.config
	}

	totalSize := b.numSets * b.numWays * b.lineSize
	config := SetAssociativeConfig(totalSize, b.lineSize, b.numWays,
		b.replaceStrategy)
	config.Name = fmt.Sprintf("%d sets, %d-way, %d-byte lines, %s",
		b.numSets, b.numWays, b.lineSize, b.replaceStrategy)

	return config
}

func (b Builder) mustBeValid(config Config) {
	if b.timing == nil {
		panic("cache timing model must not be nil")
	}

	if err := config.Validate(); err != nil {
		panic(err)
	}
}
