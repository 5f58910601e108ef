package block

import "fmt"

// MemCache is a Cache backed by plain heap-allocated blocks. It is used
// by the btree package's own tests, generalized from the teacher's
// map[uint64]Node page-fixture into a fixed-size, fixed-count block
// array since spec.md requires GetNumBlocks to be constant.
type MemCache struct {
	blockSize uint32
	blocks    [][]byte
}

// NewMemCache allocates numBlocks blocks of blockSize bytes each, all
// zero-filled.
func NewMemCache(blockSize, numBlocks uint32) *MemCache {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &MemCache{blockSize: blockSize, blocks: blocks}
}

func (c *MemCache) GetBlockSize() uint32 { return c.blockSize }
func (c *MemCache) GetNumBlocks() uint32 { return uint32(len(c.blocks)) }

func (c *MemCache) Read(id uint32) ([]byte, error) {
	if id >= uint32(len(c.blocks)) {
		return nil, fmt.Errorf("block: read: block %d out of range (have %d)", id, len(c.blocks))
	}
	out := make([]byte, c.blockSize)
	copy(out, c.blocks[id])
	return out, nil
}

func (c *MemCache) Write(id uint32, data []byte) error {
	if id >= uint32(len(c.blocks)) {
		return fmt.Errorf("block: write: block %d out of range (have %d)", id, len(c.blocks))
	}
	if uint32(len(data)) != c.blockSize {
		return fmt.Errorf("block: write: block %d: got %d bytes, want %d", id, len(data), c.blockSize)
	}
	copy(c.blocks[id], data)
	return nil
}

func (c *MemCache) NotifyAllocateBlock(id uint32)   {}
func (c *MemCache) NotifyDeallocateBlock(id uint32) {}
