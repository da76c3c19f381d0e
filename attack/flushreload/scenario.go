package flushreload

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/mem/cache"
)

// DefaultMonitored is the lookup table the demonstrations watch: five
// consecutive lines starting at 0x10000.
var DefaultMonitored = []uint64{0x10000, 0x10040, 0x10080, 0x100C0, 0x10100}

// Scenario is a scripted victim behavior.
type Scenario int

// Victim scenarios.
const (
	ScenarioNone Scenario = iota
	ScenarioPattern1
	ScenarioPattern2
	ScenarioNoisy
)

var scenarioNames = []string{"none", "pattern1", "pattern2", "noisy"}

// Scenarios returns every scenario in declaration order.
func Scenarios() []Scenario {
	return []Scenario{
		ScenarioNone, ScenarioPattern1, ScenarioPattern2, ScenarioNoisy,
	}
}

func (s Scenario) String() string {
	if s < 0 || int(s) >= len(scenarioNames) {
		return fmt.Sprintf("Scenario(%d)", int(s))
	}

	return scenarioNames[s]
}

// Description is a short human readable summary of the scenario.
func (s Scenario) Description() string {
	switch s {
	case ScenarioNone:
		return "No victim activity"
	case ScenarioPattern1:
		return "Victim accesses entries 0 and 1"
	case ScenarioPattern2:
		return "Victim accesses entries 2 and 3"
	case ScenarioNoisy:
		return "Victim access hidden in noise"
	default:
		return s.String()
	}
}

// ParseScenario converts a scenario name.
func ParseScenario(name string) (Scenario, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range scenarioNames {
		if n == name {
			return Scenario(i), nil
		}
	}

	return 0, fmt.Errorf("unknown victim scenario %q", name)
}

// Addresses returns the addresses the victim touches, in order.
func (s Scenario) Addresses() []uint64 {
	switch s {
	case ScenarioPattern1:
		return []uint64{0x10000, 0x10040}
	case ScenarioPattern2:
		return []uint64{0x10080, 0x100C0}
	case ScenarioNoisy:
		addrs := make([]uint64, 0, 11)
		for i := uint64(0); i < 10; i++ {
			addrs = append(addrs, 0x20000+i*64)
		}

		return append(addrs, 0x10000)
	default:
		return nil
	}
}

// Run makes the victim perform the scenario on c.
func (s Scenario) Run(c *cache.Cache) {
	addrs := s.Addresses()
	for _, addr := range addrs {
		c.Access(addr)
	}

	logrus.WithFields(logrus.Fields{
		"scenario": s.String(),
		"accesses": len(addrs),
	}).Debug("flush+reload: victim ran")
}
