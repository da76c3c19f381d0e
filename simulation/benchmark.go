package simulation

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/monitoring"
)

// Shape of the benchmark access stream.
const (
	benchmarkSeed     = 0x11e5
	hotLines          = 256
	hotBase           = 0x100000
	coldSpan          = 1 << 22
	hotAccessPercent  = 80
	benchmarkLineSize = 64
	replayChunk       = 1024
)

// BenchmarkRow is the outcome of the benchmark stream on one configuration.
type BenchmarkRow struct {
	Config  cache.Config
	Stats   measurement.CacheStatistics
	Elapsed time.Duration
}

// BenchmarkStream returns n line-aligned addresses. Most of them fall into a
// small hot working set and the rest are spread over a large cold region.
// The stream only depends on n.
func BenchmarkStream(n int) []uint64 {
	rng := rand.New(rand.NewPCG(benchmarkSeed, benchmarkSeed))

	addrs := make([]uint64, n)
	for i := range addrs {
		if rng.IntN(100) < hotAccessPercent {
			addrs[i] = hotBase + uint64(rng.IntN(hotLines))*benchmarkLineSize
		} else {
			addrs[i] = rng.Uint64N(coldSpan) &^ (benchmarkLineSize - 1)
		}
	}

	return addrs
}

// RunBenchmark replays the same stream of iterations accesses on every
// configuration of cache.TestConfigs. Per-access timings are only collected
// when detailed is set.
func (s *Simulation) RunBenchmark(iterations int, detailed bool) ([]BenchmarkRow, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	configs := cache.TestConfigs()
	stream := BenchmarkStream(iterations)
	rows := make([]BenchmarkRow, 0, len(configs))

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("benchmark",
			uint64(len(configs)*iterations))
		defer s.monitor.CompleteProgressBar(bar)
	}

	for _, config := range configs {
		c, err := s.buildCache(config, detailed)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		s.replayInChunks(c, stream, bar)
		elapsed := time.Since(start)

		result := s.complete(c, "benchmark", nil, map[string]string{
			"iterations": strconv.Itoa(iterations),
			"elapsed":    elapsed.String(),
		})

		rows = append(rows, BenchmarkRow{
			Config:  config,
			Stats:   result.CacheStats,
			Elapsed: elapsed,
		})

		logrus.WithFields(logrus.Fields{
			"config":   config.Name,
			"hit_rate": result.CacheStats.HitRate,
			"elapsed":  elapsed,
		}).Info("benchmark finished")
	}

	return rows, nil
}

func (s *Simulation) replayInChunks(
	c *cache.Cache,
	stream []uint64,
	bar *monitoring.ProgressBar,
) {
	for begin := 0; begin < len(stream); begin += replayChunk {
		end := min(begin+replayChunk, len(stream))

		s.exclusive(func() {
			for _, addr := range stream[begin:end] {
				c.Access(addr)
			}
		})

		if bar != nil {
			bar.IncrementFinished(uint64(end - begin))
		}
	}
}
