// Package cache models a single-level set-associative cache that only keeps
// track of which lines are resident and how long an access takes.
//
// The Cache does not store data and does not model coherence. Every address
// is a valid input: it decomposes into a tag, a set index and a byte offset,
// and the access either hits or misses.
package cache

import (
	"math/bits"

	"github.com/sarchlab/l1es/sim/hooking"
)

var (
	// HookPosAccess marks a completed access. The detail is an AccessDetail.
	HookPosAccess = &hooking.HookPos{Name: "CacheAccess"}

	// HookPosFlush marks a completed flush. The detail is a FlushDetail.
	HookPosFlush = &hooking.HookPos{Name: "CacheFlush"}
)

// Address is an address split into its cache fields.
type Address struct {
	Tag    uint64
	Index  int
	Offset uint64
}

// AccessDetail describes one access for hooks.
type AccessDetail struct {
	Address    uint64
	Fields     Address
	Hit        bool
	Cycles     uint64
	Timestamp  uint64
	Evicted    bool
	EvictedTag uint64
}

// FlushDetail describes one flush for hooks.
type FlushDetail struct {
	Address uint64
	Fields  Address
	Found   bool
}

// A Cache is a storage that is managed in sets and blocks.
type Cache struct {
	hooking.HookableBase

	config     Config
	sets       []*Set
	lineSize   int
	offsetBits uint
	indexBits  uint
	timestamp  uint64
	timing     TimingModel
}

// New creates an LRU cache with the given geometry. Both numSets and lineSize
// must be powers of two. It panics otherwise.
func New(numSets, numWays, lineSize int) *Cache {
	return MakeBuilder().
		WithNumSets(numSets).
		WithWayAssociativity(numWays).
		WithLineSize(lineSize).
		Build()
}

// NewFromConfig creates a cache laid out as the configuration describes.
func NewFromConfig(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return MakeBuilder().WithConfig(config).Build(), nil
}

func newCache(config Config, timing TimingModel) *Cache {
	numSets := config.NumSets()
	numWays := config.Associativity()

	c := &Cache{
		config:     config,
		sets:       make([]*Set, numSets),
		lineSize:   config.LineSize,
		offsetBits: log2(config.LineSize),
		indexBits:  log2(numSets),
		timing:     timing,
	}

	for i := range c.sets {
		c.sets[i] = NewSet(numWays, config.Policy)
	}

	return c
}

// Access looks up addr, installs its line on a miss, and returns whether it
// hit together with the latency the timing model charges for it.
func (c *Cache) Access(addr uint64) (hit bool, cycles uint64) {
	c.timestamp++

	fields := c.Decompose(addr)
	hit, evictedTag, evicted := c.sets[fields.Index].Access(
		fields.Tag, c.timestamp)
	cycles = c.timing.Latency(hit)

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosAccess,
			Detail: AccessDetail{
				Address:    addr,
				Fields:     fields,
				Hit:        hit,
				Cycles:     cycles,
				Timestamp:  c.timestamp,
				Evicted:    evicted,
				EvictedTag: evictedTag,
			},
		})
	}

	return hit, cycles
}

// Flush invalidates the line holding addr and reports whether it was
// resident.
func (c *Cache) Flush(addr uint64) bool {
	fields := c.Decompose(addr)
	found := c.sets[fields.Index].Flush(fields.Tag)

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosFlush,
			Detail: FlushDetail{Address: addr, Fields: fields, Found: found},
		})
	}

	return found
}

// Decompose splits an address into tag, set index and byte offset.
func (c *Cache) Decompose(addr uint64) Address {
	offset := addr & (uint64(c.lineSize) - 1)

	index := 0
	if c.indexBits > 0 {
		index = int((addr >> c.offsetBits) & (uint64(len(c.sets)) - 1))
	}

	tag := addr >> (c.offsetBits + c.indexBits)

	return Address{Tag: tag, Index: index, Offset: offset}
}

// Compose rebuilds the address that Decompose split.
func (c *Cache) Compose(a Address) uint64 {
	return a.Tag<<(c.offsetBits+c.indexBits) |
		uint64(a.Index)<<c.offsetBits |
		a.Offset
}

// Reset invalidates every line, clears the statistics and the timestamp.
// Hooks stay registered.
func (c *Cache) Reset() {
	for i := range c.sets {
		c.sets[i] = NewSet(c.Associativity(), c.config.Policy)
	}

	c.timestamp = 0
}

// Config returns the configuration the cache was built from.
func (c *Cache) Config() Config {
	return c.config
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return len(c.sets)
}

// Associativity returns the number of ways per set.
func (c *Cache) Associativity() int {
	return c.sets[0].NumWays()
}

// LineSize returns the number of bytes per line.
func (c *Cache) LineSize() int {
	return c.lineSize
}

// OffsetBits returns the width of the byte-offset field.
func (c *Cache) OffsetBits() uint {
	return c.offsetBits
}

// IndexBits returns the width of the set-index field. It is 0 for a
// fully-associative cache.
func (c *Cache) IndexBits() uint {
	return c.indexBits
}

// SetStride is the distance between two addresses that map to the same set
// with consecutive tags.
func (c *Cache) SetStride() uint64 {
	return 1 << (c.offsetBits + c.indexBits)
}

// Timestamp returns the number of accesses performed so far.
func (c *Cache) Timestamp() uint64 {
	return c.timestamp
}

// Timing returns the timing model of the cache.
func (c *Cache) Timing() TimingModel {
	return c.timing
}

// Set returns the set at the given index. Callers must not mutate it.
func (c *Cache) Set(index int) *Set {
	return c.sets[index]
}

func log2(n int) uint {
	return uint(bits.TrailingZeros(uint(n)))
}
