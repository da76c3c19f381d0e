package cache

import (
	"fmt"
	"strings"
)

// ReplacementPolicy decides which block of a full set is evicted on a miss.
type ReplacementPolicy int

// The replacement policies supported by a Set.
const (
	LRU ReplacementPolicy = iota
	FIFO
	Random
)

// String returns the name of the policy.
func (p ReplacementPolicy) String() string {
	switch p {
	case LRU:
		return "LRU"
	case FIFO:
		return "FIFO"
	case Random:
		return "Random"
	default:
		return fmt.Sprintf("ReplacementPolicy(%d)", int(p))
	}
}

// ParseReplacementPolicy converts a case-insensitive policy name.
func ParseReplacementPolicy(name string) (ReplacementPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lru":
		return LRU, nil
	case "fifo":
		return FIFO, nil
	case "random":
		return Random, nil
	default:
		return LRU, fmt.Errorf("unknown replacement policy %q", name)
	}
}

// MarshalText lets the policy appear by name in YAML and JSON.
func (p ReplacementPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a policy name.
func (p *ReplacementPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseReplacementPolicy(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// findVictim returns the way to evict from a set whose blocks are all valid.
func (p ReplacementPolicy) findVictim(s *Set) int {
	switch p {
	case FIFO:
		return s.fifoVictim()
	case Random:
		return int(s.accessCount % uint64(len(s.blocks)))
	default:
		return s.lruVictim()
	}
}

func (s *Set) lruVictim() int {
	victim := 0
	oldest := s.blocks[0].LastAccess

	for i, block := range s.blocks {
		if block.LastAccess < oldest {
			oldest = block.LastAccess
			victim = i
		}
	}

	return victim
}

func (s *Set) fifoVictim() int {
	victim := s.fifoCursor
	s.fifoCursor = (s.fifoCursor + 1) % len(s.blocks)

	return victim
}
