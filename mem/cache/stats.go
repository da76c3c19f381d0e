package cache

// Stats summarizes the accesses of a whole cache.
type Stats struct {
	TotalAccesses uint64  `json:"total_accesses"`
	TotalHits     uint64  `json:"total_hits"`
	TotalMisses   uint64  `json:"total_misses"`
	HitRate       float64 `json:"hit_rate"`
	ConfigName    string  `json:"config_name"`
}

// SetStats summarizes the accesses of one set.
type SetStats struct {
	SetIndex   int     `json:"set_index"`
	Accesses   uint64  `json:"accesses"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	ValidLines int     `json:"valid_lines"`
}

// Stats aggregates the counters of every set.
func (c *Cache) Stats() Stats {
	s := Stats{ConfigName: c.config.Name}

	for _, set := range c.sets {
		s.TotalAccesses += set.accessCount
		s.TotalHits += set.hitCount
	}

	s.TotalMisses = s.TotalAccesses - s.TotalHits
	if s.TotalAccesses > 0 {
		s.HitRate = float64(s.TotalHits) / float64(s.TotalAccesses)
	}

	return s
}

// SetStats returns the counters of each set, ordered by set index.
func (c *Cache) SetStats() []SetStats {
	stats := make([]SetStats, len(c.sets))

	for i, set := range c.sets {
		stats[i] = SetStats{
			SetIndex:   i,
			Accesses:   set.accessCount,
			Hits:       set.hitCount,
			Misses:     set.missCount,
			HitRate:    set.HitRate(),
			ValidLines: set.ValidBlocks(),
		}
	}

	return stats
}
