package simulation

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
)

// BasicPattern is the access sequence of the basic test.
var BasicPattern = []uint64{0x1000, 0x2000, 0x3000, 0x1000, 0x4000, 0x2000}

// ComparisonPattern mixes sequential lines, repeats, and far addresses.
var ComparisonPattern = []uint64{
	0x1000, 0x2000, 0x3000, 0x4000, 0x5000,
	0x1000, 0x2000,
	0x11000, 0x21000, 0x31000,
}

// Access is the outcome of one access.
type Access struct {
	Address uint64
	Hit     bool
	Cycles  uint64
}

// ComparisonRow is the outcome of the comparison pattern on one
// configuration.
type ComparisonRow struct {
	Config cache.Config
	Stats  measurement.CacheStatistics
}

func (s *Simulation) replay(c *cache.Cache, addrs []uint64) []Access {
	accesses := make([]Access, len(addrs))

	s.exclusive(func() {
		for i, addr := range addrs {
			hit, cycles := c.Access(addr)
			accesses[i] = Access{Address: addr, Hit: hit, Cycles: cycles}
		}
	})

	return accesses
}

// RunBasic replays BasicPattern on a fresh cache.
func (s *Simulation) RunBasic(config cache.Config) ([]Access, error) {
	c, err := s.newCache(config)
	if err != nil {
		return nil, err
	}

	accesses := s.replay(c, BasicPattern)
	result := s.complete(c, "basic_test", nil, nil)

	logrus.WithFields(logrus.Fields{
		"config":   config.Name,
		"hit_rate": result.CacheStats.HitRate,
	}).Info("basic test finished")

	return accesses, nil
}

// RunComparison replays ComparisonPattern on a fresh cache per
// configuration.
func (s *Simulation) RunComparison(configs []cache.Config) ([]ComparisonRow, error) {
	rows := make([]ComparisonRow, 0, len(configs))

	for _, config := range configs {
		c, err := s.newCache(config)
		if err != nil {
			return nil, err
		}

		s.replay(c, ComparisonPattern)
		result := s.complete(c, "configuration_comparison", nil, nil)

		rows = append(rows, ComparisonRow{
			Config: config,
			Stats:  result.CacheStats,
		})

		logrus.WithFields(logrus.Fields{
			"config":   config.Name,
			"hit_rate": result.CacheStats.HitRate,
		}).Info("configuration compared")
	}

	return rows, nil
}

// ComparisonConfigs returns the configurations to compare. The base set
// covers each organization at 16KB. allPolicies adds FIFO and Random 4-way
// caches and allWays adds 16-way and 32-way caches.
func ComparisonConfigs(allPolicies, allWays bool) []cache.Config {
	configs := []cache.Config{
		cache.DirectMappedConfig(16*1024, 64),
		cache.SetAssociativeConfig(16*1024, 64, 2, cache.LRU),
		cache.SetAssociativeConfig(16*1024, 64, 4, cache.LRU),
		cache.SetAssociativeConfig(16*1024, 64, 8, cache.LRU),
		cache.FullyAssociativeConfig(4*1024, 64, cache.LRU),
	}

	if allPolicies {
		configs = append(configs,
			cache.SetAssociativeConfig(16*1024, 64, 4, cache.FIFO),
			cache.SetAssociativeConfig(16*1024, 64, 4, cache.Random),
			cache.FullyAssociativeConfig(4*1024, 64, cache.FIFO),
		)
	}

	if allWays {
		configs = append(configs,
			cache.SetAssociativeConfig(16*1024, 64, 16, cache.LRU),
			cache.SetAssociativeConfig(16*1024, 64, 32, cache.LRU),
		)
	}

	return configs
}
