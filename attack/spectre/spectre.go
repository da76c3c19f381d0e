// Package spectre simulates a Spectre variant 1 (bounds check bypass)
// attack. A trained branch predictor lets a victim read past a bounds check
// speculatively, and the read value survives the rollback as a cached probe
// array line.
package spectre

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/attack/covert"
	"github.com/sarchlab/l1es/mem/cache"
)

// SpeculationThreshold is the confidence above which the predicted path is
// executed speculatively.
const SpeculationThreshold = 0.7

// OutOfRangeByte is what a speculative read beyond the victim's memory
// yields.
const OutOfRangeByte byte = 0xFF

// Simulator holds the victim's memory, its branch predictor and the
// attacker's probe array, all sharing one cache.
type Simulator struct {
	cache     *cache.Cache
	memory    []byte
	bound     int
	probe     *covert.ProbeArray
	predictor *BranchPredictor
}

// Cache returns the simulated cache.
func (s *Simulator) Cache() *cache.Cache {
	return s.cache
}

// Memory returns a copy of the victim's memory.
func (s *Simulator) Memory() []byte {
	m := make([]byte, len(s.memory))
	copy(m, s.memory)

	return m
}

// Bound is the length the victim's bounds check allows.
func (s *Simulator) Bound() int {
	return s.bound
}

// Predictor returns the branch predictor.
func (s *Simulator) Predictor() *BranchPredictor {
	return s.predictor
}

// ProbeArray returns the covert channel.
func (s *Simulator) ProbeArray() *covert.ProbeArray {
	return s.probe
}

// VictimFunction models
//
//	if index < bound { return memory[index] }
//
// compiled on a machine that speculates. When the predictor is confident the
// branch is taken, memory[index] is read before the check resolves and
// leaves a probe array line in the cache. The architectural result is
// returned only for in-bound indices.
func (s *Simulator) VictimFunction(index int) (byte, bool) {
	predicted, confidence := s.predictor.Predict()

	if confidence > SpeculationThreshold && predicted {
		value := s.speculativeRead(index)
		s.probe.Encode(s.cache, value)

		logrus.WithFields(logrus.Fields{
			"index":      index,
			"confidence": confidence,
			"probe":      s.probe.Address(value),
		}).Debug("spectre: speculative read")
	}

	inBounds := index >= 0 && index < s.bound
	s.predictor.Train(inBounds)

	if !inBounds {
		logrus.WithField("index", index).
			Debug("spectre: access denied, speculation rolled back")
		return 0, false
	}

	return s.memory[index], true
}

func (s *Simulator) speculativeRead(index int) byte {
	if index < 0 || index >= len(s.memory) {
		return OutOfRangeByte
	}

	return s.memory[index]
}

// ExtractSecretByte scans the probe array in value order and returns the
// first value whose line is cached.
func (s *Simulator) ExtractSecretByte() (byte, bool) {
	value, ok := s.probe.Decode(s.cache, func(hit bool, cycles uint64) bool {
		return hit || cycles == 1
	})

	logrus.WithFields(logrus.Fields{
		"value": value,
		"found": ok,
	}).Debug("spectre: probed")

	return value, ok
}

// FlushProbeArray evicts every probe array line.
func (s *Simulator) FlushProbeArray() {
	s.probe.Flush(s.cache)
}

// LeakByte runs one full attack round on target: it trains the predictor
// with trainingRounds in-bound calls, clears the probe array, calls the
// victim with target and extracts the byte the speculative read left behind.
func (s *Simulator) LeakByte(target, trainingRounds int) (byte, bool) {
	if s.bound > 0 {
		for r := 0; r < trainingRounds; r++ {
			s.VictimFunction(r % s.bound)
		}
	}

	s.FlushProbeArray()
	s.VictimFunction(target)

	return s.ExtractSecretByte()
}

// Leak reads n bytes past the bound. It stops at the first byte that cannot
// be extracted, so a result shorter than n means the attack failed.
func (s *Simulator) Leak(n, trainingRounds int) []byte {
	leaked := make([]byte, 0, n)

	for i := 0; i < n; i++ {
		b, ok := s.LeakByte(s.bound+i, trainingRounds)
		if !ok {
			break
		}

		leaked = append(leaked, b)
	}

	return leaked
}
