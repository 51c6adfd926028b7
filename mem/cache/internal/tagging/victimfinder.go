package tagging

// A VictimFinder decides with block should be evicted
type VictimFinder interface {
	FindVictim(tags TagArray, address uint64) Block
}

// LRUVictimFinder evicts the least recently used block to evict
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the least recently used block in a set. Invalid blocks
// are always taken first.
func (e *LRUVictimFinder) FindVictim(tags TagArray, address uint64) Block {
	set, _ := tags.GetSet(address)

	for _, blockIndex := range set.LRUQueue {
		block := set.Blocks[blockIndex]

		if !block.IsValid {
			return block
		}
	}

	return set.Blocks[set.LRUQueue[0]]
}
