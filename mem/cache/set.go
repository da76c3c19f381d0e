package cache

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	blocks []Block
	policy ReplacementPolicy

	accessCount uint64
	hitCount    uint64
	missCount   uint64
	fifoCursor  int
}

// NewSet creates a set with numWays invalid blocks.
func NewSet(numWays int, policy ReplacementPolicy) *Set {
	if numWays <= 0 {
		panic("a set must have at least one way")
	}

	s := &Set{
		blocks: make([]Block, numWays),
		policy: policy,
	}

	for i := range s.blocks {
		s.blocks[i].WayID = i
	}

	return s
}

// Access looks up tag in the set. On a miss, the tag is installed, and if a
// valid block had to make room, its tag is returned with didEvict set.
func (s *Set) Access(
	tag uint64,
	timestamp uint64,
) (hit bool, evictedTag uint64, didEvict bool) {
	s.accessCount++

	for i := range s.blocks {
		block := &s.blocks[i]
		if block.isHit(tag) {
			block.touch(tag, timestamp)
			s.hitCount++

			return true, 0, false
		}
	}

	s.missCount++
	evictedTag, didEvict = s.replace(tag, timestamp)

	return false, evictedTag, didEvict
}

func (s *Set) replace(tag uint64, timestamp uint64) (uint64, bool) {
	for i := range s.blocks {
		block := &s.blocks[i]
		if !block.IsValid {
			block.touch(tag, timestamp)
			return 0, false
		}
	}

	victim := &s.blocks[s.policy.findVictim(s)]
	evicted := victim.Tag
	victim.touch(tag, timestamp)

	return evicted, true
}

// Flush invalidates the block holding tag. It reports whether such a block
// was resident.
func (s *Set) Flush(tag uint64) bool {
	for i := range s.blocks {
		block := &s.blocks[i]
		if block.isHit(tag) {
			block.invalidate()
			return true
		}
	}

	return false
}

// Blocks returns a copy of the blocks of the set.
func (s *Set) Blocks() []Block {
	blocks := make([]Block, len(s.blocks))
	copy(blocks, s.blocks)

	return blocks
}

// NumWays returns the associativity of the set.
func (s *Set) NumWays() int {
	return len(s.blocks)
}

// Policy returns the replacement policy of the set.
func (s *Set) Policy() ReplacementPolicy {
	return s.policy
}

// AccessCount returns the number of accesses that reached the set.
func (s *Set) AccessCount() uint64 {
	return s.accessCount
}

// HitCount returns the number of hits in the set.
func (s *Set) HitCount() uint64 {
	return s.hitCount
}

// MissCount returns the number of misses in the set.
func (s *Set) MissCount() uint64 {
	return s.missCount
}

// HitRate returns hits over accesses, or 0 when the set was never accessed.
func (s *Set) HitRate() float64 {
	if s.accessCount == 0 {
		return 0
	}

	return float64(s.hitCount) / float64(s.accessCount)
}

// IsFull tells if every block of the set is valid.
func (s *Set) IsFull() bool {
	return s.ValidBlocks() == len(s.blocks)
}

// ValidBlocks returns the number of valid blocks.
func (s *Set) ValidBlocks() int {
	n := 0

	for _, block := range s.blocks {
		if block.IsValid {
			n++
		}
	}

	return n
}
