// Package meltdown simulates the Meltdown attack. A user process reads
// kernel memory out of order; the read faults, but the value has already
// been encoded in the cache through a probe array.
package meltdown

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/attack/covert"
	"github.com/sarchlab/l1es/mem/cache"
)

// FaultByte is what a transient read beyond kernel memory yields.
const FaultByte byte = 0xDE

// ExtractThreshold is the latency, in cycles, below which a probe slot
// counts as cached.
const ExtractThreshold = 10

// Simulator holds the kernel memory and the attacker's probe array on a
// shared cache.
type Simulator struct {
	cache     *cache.Cache
	kernel    []byte
	probe     *covert.ProbeArray
	pageFault bool
}

// Cache returns the simulated cache.
func (s *Simulator) Cache() *cache.Cache {
	return s.cache
}

// KernelMemory returns a copy of the kernel memory.
func (s *Simulator) KernelMemory() []byte {
	k := make([]byte, len(s.kernel))
	copy(k, s.kernel)

	return k
}

// ProbeArray returns the covert channel.
func (s *Simulator) ProbeArray() *covert.ProbeArray {
	return s.probe
}

// Attack transiently reads the kernel byte at offset and encodes it in the
// cache. The privilege check then fails and raises a page fault, which does
// not undo the cache footprint, so Attack always succeeds.
func (s *Simulator) Attack(offset int) bool {
	s.probe.Flush(s.cache)

	value := FaultByte
	if offset >= 0 && offset < len(s.kernel) {
		value = s.kernel[offset]
	}

	s.probe.Encode(s.cache, value)
	s.pageFault = true

	logrus.WithFields(logrus.Fields{
		"offset": offset,
		"probe":  s.probe.Address(value),
	}).Debug("meltdown: transient read encoded, page fault raised")

	return true
}

// ExtractKernelByte scans the probe array in value order and returns the
// first value whose line is cached. The probe array is flushed afterwards,
// ready for the next round.
func (s *Simulator) ExtractKernelByte() (byte, bool) {
	value, ok := s.probe.Decode(s.cache, func(hit bool, cycles uint64) bool {
		return hit && cycles < ExtractThreshold
	})

	s.probe.Flush(s.cache)

	logrus.WithFields(logrus.Fields{
		"value": value,
		"found": ok,
	}).Debug("meltdown: probed")

	return value, ok
}

// HandleException clears the page fault, as the OS fault handler would. The
// cache is left untouched.
func (s *Simulator) HandleException() {
	if s.pageFault {
		logrus.Debug("meltdown: page fault handled")
	}

	s.pageFault = false
}

// PageFaultOccurred reports whether a fault is pending.
func (s *Simulator) PageFaultOccurred() bool {
	return s.pageFault
}

// Dump extracts the first n bytes of kernel memory, one attack round per
// byte. It stops at the first byte that cannot be extracted.
func (s *Simulator) Dump(n int) []byte {
	dumped := make([]byte, 0, n)

	for offset := 0; offset < n; offset++ {
		s.Attack(offset)
		b, ok := s.ExtractKernelByte()
		s.HandleException()

		if !ok {
			break
		}

		dumped = append(dumped, b)
	}

	return dumped
}

// Accuracy compares dumped bytes with the kernel memory they were read
// from. It returns the number of matching bytes and their share.
func (s *Simulator) Accuracy(dumped []byte) (int, float64) {
	if len(dumped) == 0 {
		return 0, 0
	}

	correct := 0
	for i, b := range dumped {
		if i < len(s.kernel) && s.kernel[i] == b {
			correct++
		}
	}

	return correct, float64(correct) / float64(len(dumped))
}
