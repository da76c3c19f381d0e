package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGeometry is returned when a configuration cannot be laid out as
// sets and ways.
var ErrInvalidGeometry = errors.New("invalid cache geometry")

// Type is the organization of a cache.
type Type int

// The cache organizations. A direct-mapped cache is the one-way special case
// and a fully-associative cache is the one-set special case.
const (
	DirectMapped Type = iota
	SetAssociative
	FullyAssociative
)

// String returns the name of the organization.
func (t Type) String() string {
	switch t {
	case DirectMapped:
		return "direct-mapped"
	case SetAssociative:
		return "set-associative"
	case FullyAssociative:
		return "fully-associative"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// MarshalText lets the type appear by name in YAML and JSON.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses an organization name.
func (t *Type) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "direct-mapped", "direct":
		*t = DirectMapped
	case "set-associative", "set":
		*t = SetAssociative
	case "fully-associative", "fully", "full":
		*t = FullyAssociative
	default:
		return fmt.Errorf("unknown cache type %q", string(text))
	}

	return nil
}

// Config describes the geometry of a cache abstractly. The number of sets and
// the associativity are derived from it.
type Config struct {
	Name      string            `yaml:"name" json:"name"`
	Type      Type              `yaml:"type" json:"type"`
	Ways      int               `yaml:"ways,omitempty" json:"ways,omitempty"`
	TotalSize int               `yaml:"total_size" json:"total_size"`
	LineSize  int               `yaml:"line_size" json:"line_size"`
	Policy    ReplacementPolicy `yaml:"policy" json:"policy"`
}

// DirectMappedConfig describes a one-way cache. Direct-mapped caches never
// choose a victim, so the policy is fixed to LRU.
func DirectMappedConfig(totalSize, lineSize int) Config {
	return Config{
		Name: fmt.Sprintf("Direct Mapped %dKB, %d-byte lines",
			totalSize/1024, lineSize),
		Type:      DirectMapped,
		Ways:      1,
		TotalSize: totalSize,
		LineSize:  lineSize,
		Policy:    LRU,
	}
}

// SetAssociativeConfig describes an N-way set-associative cache.
func SetAssociativeConfig(
	totalSize, lineSize, ways int,
	policy ReplacementPolicy,
) Config {
	return Config{
		Name: fmt.Sprintf("%d-way %dKB, %d-byte lines, %s",
			ways, totalSize/1024, lineSize, policy),
		Type:      SetAssociative,
		Ways:      ways,
		TotalSize: totalSize,
		LineSize:  lineSize,
		Policy:    policy,
	}
}

// FullyAssociativeConfig describes a single-set cache.
func FullyAssociativeConfig(
	totalSize, lineSize int,
	policy ReplacementPolicy,
) Config {
	return Config{
		Name: fmt.Sprintf("Fully-associative %dKB, %d-byte lines, %s",
			totalSize/1024, lineSize, policy),
		Type:      FullyAssociative,
		TotalSize: totalSize,
		LineSize:  lineSize,
		Policy:    policy,
	}
}

// NumSets returns the number of sets the configuration lays out.
func (c Config) NumSets() int {
	if c.LineSize <= 0 {
		return 0
	}

	switch c.Type {
	case DirectMapped:
		return c.TotalSize / c.LineSize
	case SetAssociative:
		if c.Ways <= 0 {
			return 0
		}

		return c.TotalSize / (c.LineSize * c.Ways)
	default:
		return 1
	}
}

// Associativity returns the number of ways per set.
func (c Config) Associativity() int {
	switch c.Type {
	case DirectMapped:
		return 1
	case SetAssociative:
		return c.Ways
	default:
		if c.LineSize <= 0 {
			return 0
		}

		return c.TotalSize / c.LineSize
	}
}

// Validate reports whether the configuration yields at least one set and one
// way with power-of-two set count and line size.
func (c Config) Validate() error {
	if c.LineSize <= 0 || !isPowerOfTwo(c.LineSize) {
		return fmt.Errorf("%w: line size %d is not a power of two",
			ErrInvalidGeometry, c.LineSize)
	}

	numSets := c.NumSets()
	if numSets <= 0 || !isPowerOfTwo(numSets) {
		return fmt.Errorf("%w: %d sets is not a positive power of two",
			ErrInvalidGeometry, numSets)
	}

	if c.Associativity() <= 0 {
		return fmt.Errorf("%w: %d ways", ErrInvalidGeometry, c.Associativity())
	}

	if c.NumSets()*c.Associativity()*c.LineSize != c.TotalSize {
		return fmt.Errorf("%w: %d bytes is not a whole number of sets",
			ErrInvalidGeometry, c.TotalSize)
	}

	return nil
}

// TestConfigs returns the configurations used to compare cache organizations.
func TestConfigs() []Config {
	return []Config{
		DirectMappedConfig(16*1024, 64),
		DirectMappedConfig(32*1024, 64),

		SetAssociativeConfig(32*1024, 64, 2, LRU),
		SetAssociativeConfig(32*1024, 64, 4, LRU),
		SetAssociativeConfig(32*1024, 64, 8, LRU),
		SetAssociativeConfig(32*1024, 64, 4, FIFO),
		SetAssociativeConfig(32*1024, 64, 4, Random),

		FullyAssociativeConfig(8*1024, 64, LRU),
		FullyAssociativeConfig(16*1024, 64, FIFO),
	}
}

// AttackConfigs returns the configurations the attacks are evaluated on, from
// the most to the least exposed.
func AttackConfigs() []Config {
	return []Config{
		DirectMappedConfig(16*1024, 64),
		SetAssociativeConfig(32*1024, 64, 2, LRU),
		SetAssociativeConfig(32*1024, 64, 8, LRU),
		FullyAssociativeConfig(8*1024, 64, LRU),
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
