// Package tagging keeps the tags and the replacement order of a
// set-associative cache.
package tagging

// A TagArray maps line addresses to the blocks that hold them.
type TagArray interface {
	Lookup(lineAddr uint64) (Block, bool)
	Update(block Block)
	Visit(block Block)
	GetSet(reqAddr uint64) (set *Set, setID int)
	NumSets() int
	NumWays() int
	Reset()
}

// NewTagArray creates a tag array where all the blocks are invalid.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
) TagArray {
	t := &tagArrayImpl{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	Tag          uint64
	WayID        int
	SetID        int
	CacheAddress uint64
	IsValid      bool
	IsDirty      bool
}

// A Set is a list of blocks where a certain piece memory can be stored at.
// LRUQueue lists way IDs from the least to the most recently used.
type Set struct {
	Blocks   []Block
	LRUQueue []int
}

type tagArrayImpl struct {
	numSets   int
	numWays   int
	blockSize int
	sets      []Set
}

func (d *tagArrayImpl) NumSets() int {
	return d.numSets
}

func (d *tagArrayImpl) NumWays() int {
	return d.numWays
}

// Get the set that a certain address should store at
func (d *tagArrayImpl) GetSet(reqAddr uint64) (set *Set, setID int) {
	setID = int(reqAddr / uint64(d.blockSize) % uint64(d.numSets))
	set = &d.sets[setID]

	return
}

// Lookup finds the valid block that holds lineAddr.
func (d *tagArrayImpl) Lookup(lineAddr uint64) (Block, bool) {
	set, _ := d.GetSet(lineAddr)
	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == lineAddr {
			return block, true
		}
	}

	return Block{}, false
}

// Update updates the block information
func (d *tagArrayImpl) Update(block Block) {
	d.sets[block.SetID].Blocks[block.WayID] = block
}

// Visit moves the block to the end of the LRUQueue
func (d *tagArrayImpl) Visit(block Block) {
	set := &d.sets[block.SetID]
	newLRUQueue := make([]int, 0, len(set.LRUQueue))

	for _, b := range set.LRUQueue {
		if b != block.WayID {
			newLRUQueue = append(newLRUQueue, b)
		}
	}

	newLRUQueue = append(newLRUQueue, block.WayID)

	set.LRUQueue = newLRUQueue
}

// Reset will mark all the blocks in the directory invalid
func (d *tagArrayImpl) Reset() {
	d.sets = make([]Set, d.numSets)
	for i := 0; i < d.numSets; i++ {
		for j := 0; j < d.numWays; j++ {
			block := Block{
				IsValid:      false,
				SetID:        i,
				WayID:        j,
				CacheAddress: uint64(i*d.numWays+j) * uint64(d.blockSize),
			}

			d.sets[i].Blocks = append(d.sets[i].Blocks, block)
			d.sets[i].LRUQueue = append(d.sets[i].LRUQueue, j)
		}
	}
}
