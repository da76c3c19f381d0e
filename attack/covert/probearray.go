// Package covert provides the cache covert channel that transient-execution
// attacks use to carry a byte out of a rolled-back computation.
package covert

import (
	"github.com/sarchlab/l1es/mem/cache"
)

// NumEntries is the number of probe slots, one per possible byte value.
const NumEntries = 256

// A ProbeArray maps each byte value to its own cache line. Encoding a byte
// loads that line; decoding scans for the line that became fast.
type ProbeArray struct {
	addrs []uint64
}

// NewProbeArray lays out 256 slots starting at base, stride bytes apart. The
// stride should be at least one cache line so that every slot owns a line.
func NewProbeArray(base, stride uint64) *ProbeArray {
	if stride == 0 {
		panic("probe array stride must not be zero")
	}

	p := &ProbeArray{addrs: make([]uint64, NumEntries)}
	for i := range p.addrs {
		p.addrs[i] = base + uint64(i)*stride
	}

	return p
}

// Address returns the address of the slot for value.
func (p *ProbeArray) Address(value byte) uint64 {
	return p.addrs[value]
}

// Addresses returns a copy of all slot addresses in value order.
func (p *ProbeArray) Addresses() []uint64 {
	addrs := make([]uint64, len(p.addrs))
	copy(addrs, p.addrs)

	return addrs
}

// Encode leaves value's footprint in the cache.
func (p *ProbeArray) Encode(c *cache.Cache, value byte) {
	c.Access(p.addrs[value])
}

// Flush evicts every slot from the cache.
func (p *ProbeArray) Flush(c *cache.Cache) {
	for _, addr := range p.addrs {
		c.Flush(addr)
	}
}

// A Classifier decides from one timed access whether a slot was cached.
type Classifier func(hit bool, cycles uint64) bool

// Decode accesses the slots in value order and returns the first value whose
// access the classifier accepts.
func (p *ProbeArray) Decode(c *cache.Cache, cached Classifier) (byte, bool) {
	for value, addr := range p.addrs {
		hit, cycles := c.Access(addr)
		if cached(hit, cycles) {
			return byte(value), true
		}
	}

	return 0, false
}
