// Package flushreload implements the Flush+Reload attack on memory shared
// between attacker and victim.
package flushreload

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/mem/cache"
)

// ReloadThreshold is the latency, in cycles, below which a reloaded line is
// considered to have been brought back by the victim.
const ReloadThreshold = 50

// Attack watches a fixed list of addresses.
type Attack struct {
	cache       *cache.Cache
	monitored   []uint64
	accessTimes []uint64
	results     []bool
}

// NewAttack creates an attack that monitors addrs.
func NewAttack(c *cache.Cache, addrs []uint64) *Attack {
	monitored := make([]uint64, len(addrs))
	copy(monitored, addrs)

	return &Attack{
		cache:     c,
		monitored: monitored,
	}
}

// Monitored returns the monitored addresses.
func (a *Attack) Monitored() []uint64 {
	addrs := make([]uint64, len(a.monitored))
	copy(addrs, a.monitored)

	return addrs
}

// Flush removes every monitored address from the cache.
func (a *Attack) Flush() {
	for _, addr := range a.monitored {
		a.cache.Flush(addr)
	}

	logrus.WithField("addresses", len(a.monitored)).
		Debug("flush+reload: flushed")
}

// Reload re-accesses every monitored address and reports, in order, which
// ones came back fast.
func (a *Attack) Reload() []bool {
	a.accessTimes = a.accessTimes[:0]
	a.results = a.results[:0]

	for _, addr := range a.monitored {
		hit, cycles := a.cache.Access(addr)
		accessed := hit && cycles < ReloadThreshold

		a.accessTimes = append(a.accessTimes, cycles)
		a.results = append(a.results, accessed)

		logrus.WithFields(logrus.Fields{
			"addr":     addr,
			"cycles":   cycles,
			"accessed": accessed,
		}).Debug("flush+reload: reloaded")
	}

	return a.Results()
}

// Results returns the classification of the last reload.
func (a *Attack) Results() []bool {
	results := make([]bool, len(a.results))
	copy(results, a.results)

	return results
}

// AccessTimes returns the latencies of the last reload.
func (a *Attack) AccessTimes() []uint64 {
	times := make([]uint64, len(a.accessTimes))
	copy(times, a.accessTimes)

	return times
}

// Summary returns how many monitored addresses the last reload flagged and
// how many were checked.
func (a *Attack) Summary() (accessed, total int) {
	for _, r := range a.results {
		if r {
			accessed++
		}
	}

	return accessed, len(a.results)
}
