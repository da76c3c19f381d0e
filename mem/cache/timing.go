package cache

// A TimingModel converts the outcome of a lookup into an access latency.
type TimingModel interface {
	Latency(hit bool) uint64
}

// FixedLatency charges a constant number of cycles for hits and for misses.
type FixedLatency struct {
	HitCycles  uint64
	MissCycles uint64
}

// Latency returns HitCycles on a hit and MissCycles otherwise.
func (t FixedLatency) Latency(hit bool) uint64 {
	if hit {
		return t.HitCycles
	}

	return t.MissCycles
}

// DefaultTiming is the two-valued model the attack thresholds are calibrated
// against: 1 cycle for a hit, 100 cycles for a miss.
var DefaultTiming = FixedLatency{HitCycles: 1, MissCycles: 100}
