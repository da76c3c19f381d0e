package cache

// A Block of a cache is the information that is associated with a cache line.
type Block struct {
	WayID       int
	Tag         uint64
	IsValid     bool
	LastAccess  uint64
	AccessCount uint64
}

func (b *Block) isHit(tag uint64) bool {
	return b.IsValid && b.Tag == tag
}

// touch records a hit or a fill at the given timestamp.
func (b *Block) touch(tag uint64, timestamp uint64) {
	b.Tag = tag
	b.IsValid = true
	b.LastAccess = timestamp
	b.AccessCount++
}

// invalidate drops the line. AccessCount survives for statistics.
func (b *Block) invalidate() {
	b.IsValid = false
	b.Tag = 0
}
