package measurement

import (
	"fmt"
	"sort"
	"strings"
)

// SuccessThreshold is the success rate above which an attack counts as
// successful in summaries.
const SuccessThreshold = 0.5

// Summary renders a short report grouped by configuration, in name order.
func (c *Collector) Summary() string {
	var b strings.Builder

	b.WriteString("=== Cache Simulation Summary ===\n\n")
	fmt.Fprintf(&b, "Total simulations: %d\n", len(c.results))
	fmt.Fprintf(&b, "Total execution time: %.2fs\n\n", c.Elapsed().Seconds())

	groups := make(map[string][]SimulationResult)
	for _, r := range c.results {
		groups[r.ConfigName] = append(groups[r.ConfigName], r)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		results := groups[name]

		var hitRate float64
		attacks, successful := 0, 0

		for _, r := range results {
			hitRate += r.CacheStats.HitRate

			if r.AttackResults != nil {
				attacks++
				if r.AttackResults.SuccessRate > SuccessThreshold {
					successful++
				}
			}
		}

		hitRate /= float64(len(results))

		fmt.Fprintf(&b, "--- %s ---\n", name)
		fmt.Fprintf(&b, "  Average hit rate: %.1f%%\n", hitRate*100)
		fmt.Fprintf(&b, "  Successful attacks: %d/%d\n\n", successful, attacks)
	}

	return b.String()
}
