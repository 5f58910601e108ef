package btree

import "github.com/pkg/errors"

// Config bundles what New needs beyond a block.Cache: the fixed key and
// value widths, and whether duplicate keys are rejected.
//
// This is the Go-idiomatic replacement for the original C++ lab's
// positional BTreeIndex(keysize, valuesize, cache, unique) constructor.
type Config struct {
	KeySize   int
	ValueSize int

	// Unique, when true, makes Insert return ErrConflict for a key that
	// already exists. The original C++ accepted a unique flag and
	// ignored it; spec.md requires it be honored.
	Unique bool
}

// Validate checks that a node built with this Config against a cache of
// the given block size can hold at least a few slots per kind. It plays
// the role the teacher's bptree/init.go's init()-time panic played,
// turned into a returned error since this is a library meant to run
// against block sizes it doesn't control at compile time.
func (c Config) Validate(blockSize uint32) error {
	if c.KeySize <= 0 {
		return errors.New("btree: config: KeySize must be positive")
	}
	if c.ValueSize <= 0 {
		return errors.New("btree: config: ValueSize must be positive")
	}

	maxLeaf := maxLeafSlots(int(blockSize), c.KeySize, c.ValueSize)
	maxInterior := maxInteriorSlots(int(blockSize), c.KeySize)

	if maxLeaf < 3 {
		return errors.Errorf("btree: config: block size %d too small to fit 3 leaf slots for key=%d value=%d", blockSize, c.KeySize, c.ValueSize)
	}
	if maxInterior < 3 {
		return errors.Errorf("btree: config: block size %d too small to fit 3 interior slots for key=%d", blockSize, c.KeySize)
	}
	return nil
}
