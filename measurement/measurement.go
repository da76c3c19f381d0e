// Package measurement collects access timings and per-experiment results,
// and exports them as JSON, CSV, or database records.
package measurement

import (
	"time"

	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/sim/hooking"
)

// AccessTiming is one timed cache access.
type AccessTiming struct {
	Address   uint64 `json:"address"`
	Cycles    uint64 `json:"access_time"`
	Hit       bool   `json:"cache_hit"`
	Timestamp uint64 `json:"timestamp"`
}

// CacheStatistics summarizes a cache after an experiment.
type CacheStatistics struct {
	TotalAccesses     uint64  `json:"total_accesses"`
	TotalHits         uint64  `json:"total_hits"`
	TotalMisses       uint64  `json:"total_misses"`
	HitRate           float64 `json:"hit_rate"`
	MissRate          float64 `json:"miss_rate"`
	AverageAccessTime float64 `json:"average_access_time"`
	CacheSizeKB       int     `json:"cache_size_kb"`
	Associativity     int     `json:"associativity"`
	LineSize          int     `json:"line_size"`
	NumSets           int     `json:"num_sets"`
}

// AttackResults summarizes an attack experiment.
type AttackResults struct {
	AttackType        string  `json:"attack_type"`
	SuccessRate       float64 `json:"success_rate"`
	DetectionAccuracy float64 `json:"detection_accuracy"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate"`
	LeakedBytes       int     `json:"leaked_bytes"`
	TotalBytes        int     `json:"total_bytes"`
	AttackTimeMs      float64 `json:"attack_time_ms"`
}

// SimulationResult is one finished experiment.
type SimulationResult struct {
	Timestamp     time.Time         `json:"timestamp"`
	ConfigName    string            `json:"config_name"`
	TestName      string            `json:"test_name"`
	CacheStats    CacheStatistics   `json:"cache_stats"`
	AttackResults *AttackResults    `json:"attack_results"`
	Timings       []AccessTiming    `json:"timing_data"`
	Metadata      map[string]string `json:"metadata"`
}

// NewCacheStatistics reads the counters of c. The average access time is
// taken from timings when there are any, and from the counters and the
// cache's timing model otherwise.
func NewCacheStatistics(c *cache.Cache, timings []AccessTiming) CacheStatistics {
	stats := c.Stats()
	config := c.Config()

	s := CacheStatistics{
		TotalAccesses: stats.TotalAccesses,
		TotalHits:     stats.TotalHits,
		TotalMisses:   stats.TotalMisses,
		HitRate:       stats.HitRate,
		CacheSizeKB:   config.TotalSize / 1024,
		Associativity: c.Associativity(),
		LineSize:      c.LineSize(),
		NumSets:       c.NumSets(),
	}

	if stats.TotalAccesses > 0 {
		s.MissRate = 1 - stats.HitRate
	}

	switch {
	case len(timings) > 0:
		var total uint64
		for _, t := range timings {
			total += t.Cycles
		}

		s.AverageAccessTime = float64(total) / float64(len(timings))
	case stats.TotalAccesses > 0:
		total := stats.TotalHits*c.Timing().Latency(true) +
			stats.TotalMisses*c.Timing().Latency(false)
		s.AverageAccessTime = float64(total) / float64(stats.TotalAccesses)
	}

	return s
}

// Collector gathers timings from cache hooks and freezes them into results.
// It is not safe for concurrent use.
type Collector struct {
	results []SimulationResult
	current []AccessTiming
	start   time.Time
	now     func() time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		start: time.Now(),
		now:   time.Now,
	}
}

// Func records every access a hooked cache reports.
func (c *Collector) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	detail := ctx.Detail.(cache.AccessDetail)
	c.RecordAccess(detail.Address, detail.Cycles, detail.Hit, detail.Timestamp)
}

// RecordAccess appends a timing to the experiment in progress.
func (c *Collector) RecordAccess(
	addr, cycles uint64,
	hit bool,
	timestamp uint64,
) {
	c.current = append(c.current, AccessTiming{
		Address:   addr,
		Cycles:    cycles,
		Hit:       hit,
		Timestamp: timestamp,
	})
}

// CurrentTimings returns the timings of the experiment in progress.
func (c *Collector) CurrentTimings() []AccessTiming {
	timings := make([]AccessTiming, len(c.current))
	copy(timings, c.current)

	return timings
}

// DiscardTimings drops the timings of the experiment in progress.
func (c *Collector) DiscardTimings() {
	c.current = nil
}

// CompleteSimulation turns the experiment in progress into a result and
// starts a new one.
func (c *Collector) CompleteSimulation(
	configName, testName string,
	stats CacheStatistics,
	attack *AttackResults,
	metadata map[string]string,
) SimulationResult {
	if metadata == nil {
		metadata = map[string]string{}
	}

	result := SimulationResult{
		Timestamp:     c.now().UTC(),
		ConfigName:    configName,
		TestName:      testName,
		CacheStats:    stats,
		AttackResults: attack,
		Timings:       c.current,
		Metadata:      metadata,
	}

	if result.Timings == nil {
		result.Timings = []AccessTiming{}
	}

	c.results = append(c.results, result)
	c.current = nil

	return result
}

// Results returns all completed results in completion order.
func (c *Collector) Results() []SimulationResult {
	results := make([]SimulationResult, len(c.results))
	copy(results, c.results)

	return results
}

// Elapsed is the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	return c.now().Sub(c.start)
}
