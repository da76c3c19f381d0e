// Package primeprobe implements the Prime+Probe attack. The attacker fills a
// cache set with its own lines, lets the victim run, and re-accesses them: if
// the set became slow, the victim touched memory that maps to it.
package primeprobe

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/mem/cache"
)

// DefaultThreshold is the mean probe latency, in cycles, above which victim
// activity is reported. It sits between a hit (1) and a miss (100).
const DefaultThreshold = 50.0

// EvictionMargin is how many candidate lines GenerateEvictionSet returns
// beyond the associativity.
const EvictionMargin = 2

// VictimTag is the tag of the line the simulated victim touches.
const VictimTag uint64 = 0x12345

// Attack monitors one cache set.
type Attack struct {
	cache       *cache.Cache
	targetSet   int
	evictionSet []uint64
	probeTimes  []uint64
	threshold   float64
}

// NewAttack creates an attack on targetSet that primes exactly one line per
// way. Priming more lines than the set holds makes LRU and FIFO sets evict
// the attacker's own lines, so an idle victim would look active.
func NewAttack(c *cache.Cache, targetSet int) *Attack {
	return NewAttackWithSize(c, targetSet, c.Associativity())
}

// NewAttackWithSize creates an attack with an eviction set of the given size.
func NewAttackWithSize(c *cache.Cache, targetSet, size int) *Attack {
	if targetSet < 0 || targetSet >= c.NumSets() {
		panic("target set out of range")
	}

	if size <= 0 {
		panic("eviction set must not be empty")
	}

	return &Attack{
		cache:       c,
		targetSet:   targetSet,
		evictionSet: EvictionSetOfSize(c, targetSet, size),
		threshold:   DefaultThreshold,
	}
}

// WithThreshold replaces the detection threshold.
func (a *Attack) WithThreshold(threshold float64) *Attack {
	a.threshold = threshold
	return a
}

// GenerateEvictionSet returns associativity + EvictionMargin addresses that
// all map to targetSet. Accessing all of them evicts any prior occupant of
// the set whatever the replacement policy.
func GenerateEvictionSet(c *cache.Cache, targetSet int) []uint64 {
	return EvictionSetOfSize(c, targetSet, c.Associativity()+EvictionMargin)
}

// EvictionSetOfSize returns size addresses that all map to targetSet, with
// distinct tags 0, 1, 2, ...
func EvictionSetOfSize(c *cache.Cache, targetSet, size int) []uint64 {
	stride := c.SetStride()
	base := uint64(targetSet) << c.OffsetBits()

	addrs := make([]uint64, size)
	for i := range addrs {
		addrs[i] = uint64(i)*stride + base
	}

	return addrs
}

// TargetSet returns the monitored set.
func (a *Attack) TargetSet() int {
	return a.targetSet
}

// EvictionSet returns a copy of the eviction set.
func (a *Attack) EvictionSet() []uint64 {
	addrs := make([]uint64, len(a.evictionSet))
	copy(addrs, a.evictionSet)

	return addrs
}

// Prime fills the target set with attacker lines.
func (a *Attack) Prime() {
	for _, addr := range a.evictionSet {
		a.cache.Access(addr)
	}

	logrus.WithFields(logrus.Fields{
		"set":   a.targetSet,
		"lines": len(a.evictionSet),
	}).Debug("prime+probe: primed")
}

// Probe re-accesses the eviction set and reports whether its mean latency
// exceeds the threshold.
func (a *Attack) Probe() bool {
	a.probeTimes = a.probeTimes[:0]

	var total uint64
	for _, addr := range a.evictionSet {
		_, cycles := a.cache.Access(addr)
		a.probeTimes = append(a.probeTimes, cycles)
		total += cycles
	}

	mean := float64(total) / float64(len(a.evictionSet))
	detected := mean > a.threshold

	logrus.WithFields(logrus.Fields{
		"set":      a.targetSet,
		"mean":     mean,
		"detected": detected,
	}).Debug("prime+probe: probed")

	return detected
}

// ProbeTimes returns the latencies recorded by the last probe.
func (a *Attack) ProbeTimes() []uint64 {
	times := make([]uint64, len(a.probeTimes))
	copy(times, a.probeTimes)

	return times
}

// MeanProbeTime returns the mean latency of the last probe.
func (a *Attack) MeanProbeTime() float64 {
	if len(a.probeTimes) == 0 {
		return 0
	}

	var total uint64
	for _, t := range a.probeTimes {
		total += t
	}

	return float64(total) / float64(len(a.probeTimes))
}

// SimulateVictimAccess makes a victim touch one line that maps to set.
func SimulateVictimAccess(c *cache.Cache, set int) uint64 {
	addr := c.Compose(cache.Address{Tag: VictimTag, Index: set})
	c.Access(addr)

	logrus.WithFields(logrus.Fields{
		"addr": addr,
		"set":  set,
	}).Debug("prime+probe: victim access")

	return addr
}
