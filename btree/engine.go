// Package btree implements the on-disk B-tree index described by this
// repository: a recursive-descent lookup/update, a split-on-insert
// algorithm gated by a 2/3-full fill policy, and a free-list allocator,
// all built against the block.Cache interface rather than raw file I/O.
package btree

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/patrickfweston/blocktree/block"
)

// Tree is a B-tree index over fixed-width keys and values, backed by a
// block.Cache. It owns the recursive descent, the split-on-insert
// protocol, and superblock maintenance; it never touches a file
// directly.
type Tree struct {
	cache block.Cache

	keySize   int
	valueSize int
	blockSize int
	unique    bool

	superID uint32
	super   *Node
}

// New constructs an unattached engine. Call Attach before using it.
func New(cfg Config, cache block.Cache) (*Tree, error) {
	if err := cfg.Validate(cache.GetBlockSize()); err != nil {
		return nil, err
	}
	return &Tree{
		cache:     cache,
		keySize:   cfg.KeySize,
		valueSize: cfg.ValueSize,
		blockSize: int(cache.GetBlockSize()),
		unique:    cfg.Unique,
	}, nil
}

// Attach mounts the tree at initblock, which must be 0 (spec.md: "the
// superblock always lives at block id 0"). If create is true, a fresh
// superblock, empty root, and free list threaded through the remaining
// blocks are written first.
func (t *Tree) Attach(initblock uint32, create bool) error {
	if initblock != 0 {
		return errors.Wrapf(ErrCorruption, "attach: superblock must live at block 0, got %d", initblock)
	}
	t.superID = initblock

	if create {
		if err := t.format(); err != nil {
			return err
		}
	}

	data, err := t.cache.Read(initblock)
	if err != nil {
		return errors.Wrap(ErrIOError, err.Error())
	}
	super, err := DecodeNode(data, t.keySize, t.valueSize, t.blockSize)
	if err != nil {
		return err
	}
	t.super = super
	return nil
}

// format writes a fresh superblock at block 0, an empty root at block 1,
// and threads blocks 2..N-1 as a free list terminating at 0, mirroring
// original_source/btree.cc's Attach(create=true).
func (t *Tree) format() error {
	n := t.cache.GetNumBlocks()
	if n < 3 {
		return errors.Errorf("btree: format: cache needs at least 3 blocks, got %d", n)
	}

	super := NewNode(kindSuperblock, t.keySize, t.valueSize, t.blockSize)
	super.SetRootNode(1)
	super.SetFreelist(2)
	super.SetNumKeys(0)
	t.cache.NotifyAllocateBlock(0)
	if err := t.cache.Write(0, super.Bytes()); err != nil {
		return errors.Wrap(ErrIOError, err.Error())
	}

	// The root starts out flagged LEAF with zero keys, per DESIGN.md's
	// "root is LEAF at depth 1" resolution; it only becomes ROOT once a
	// split gives it children. insertEmpty's SetKind(kindLeaf) is then a
	// harmless no-op on the already-LEAF bootstrap block.
	root := NewNode(kindLeaf, t.keySize, t.valueSize, t.blockSize)
	root.SetNumKeys(0)
	t.cache.NotifyAllocateBlock(1)
	if err := t.cache.Write(1, root.Bytes()); err != nil {
		return errors.Wrap(ErrIOError, err.Error())
	}

	for i := uint32(2); i < n; i++ {
		free := NewNode(kindFree, t.keySize, t.valueSize, t.blockSize)
		next := uint32(0)
		if i+1 != n {
			next = i + 1
		}
		free.SetFreelist(next)
		if err := t.cache.Write(i, free.Bytes()); err != nil {
			return errors.Wrap(ErrIOError, err.Error())
		}
	}

	return nil
}

// Detach writes the in-memory superblock back to initblock.
func (t *Tree) Detach(initblock uint32) error {
	if initblock != t.superID {
		return errors.Wrapf(ErrCorruption, "detach: block %d is not the attached superblock (%d)", initblock, t.superID)
	}
	return t.writeSuper()
}

func (t *Tree) writeSuper() error {
	if err := t.cache.Write(t.superID, t.super.Bytes()); err != nil {
		return errors.Wrap(ErrIOError, err.Error())
	}
	return nil
}

func (t *Tree) readNode(id uint32) (*Node, error) {
	data, err := t.cache.Read(id)
	if err != nil {
		return nil, errors.Wrap(ErrIOError, err.Error())
	}
	return DecodeNode(data, t.keySize, t.valueSize, t.blockSize)
}

func (t *Tree) writeNode(id uint32, node *Node) error {
	if err := t.cache.Write(id, node.Bytes()); err != nil {
		return errors.Wrap(ErrIOError, err.Error())
	}
	return nil
}

func (t *Tree) validateKey(key []byte) error {
	if len(key) != t.keySize {
		return errors.Wrapf(ErrOutOfRange, "key length %d != configured key size %d", len(key), t.keySize)
	}
	return nil
}

func (t *Tree) validateValue(value []byte) error {
	if len(value) != t.valueSize {
		return errors.Wrapf(ErrOutOfRange, "value length %d != configured value size %d", len(value), t.valueSize)
	}
	return nil
}

// descend walks from node id down to the leaf that key belongs in,
// following spec.md §4.4's strict-< tie-break: equal keys in an interior
// node route right, into the subtree whose keys are >= that key.
func (t *Tree) descend(id uint32, key []byte) (uint32, error) {
	node, err := t.readNode(id)
	if err != nil {
		return 0, err
	}

	switch node.Kind() {
	case kindLeaf:
		return id, nil
	case kindInterior, kindRoot:
		numKeys := node.NumKeys()
		if numKeys == 0 {
			return 0, ErrNonexistent
		}
		idx := numKeys
		for i := 0; i < numKeys; i++ {
			k, err := node.Key(i)
			if err != nil {
				return 0, err
			}
			if bytes.Compare(key, k) < 0 {
				idx = i
				break
			}
		}
		child, err := node.Child(idx)
		if err != nil {
			return 0, err
		}
		return t.descend(child, key)
	default:
		return 0, errors.Wrapf(ErrCorruption, "descend: illegal nodetype at block %d", id)
	}
}

// descendPath is descend, but it returns the full chain of block ids
// from root to leaf inclusive. Insert uses the chain to locate ancestors
// during bubble without storing parent pointers in the block format
// (spec.md §9's parent-pointer-free design, applied without a second
// top-down walk since the chain falls out of the descent Insert already
// has to do).
func (t *Tree) descendPath(id uint32, key []byte) ([]uint32, error) {
	path := make([]uint32, 0, 8)
	for {
		path = append(path, id)
		node, err := t.readNode(id)
		if err != nil {
			return nil, err
		}
		if node.Kind() == kindLeaf {
			return path, nil
		}
		if node.Kind() != kindInterior && node.Kind() != kindRoot {
			return nil, errors.Wrapf(ErrCorruption, "descend: illegal nodetype at block %d", id)
		}
		numKeys := node.NumKeys()
		if numKeys == 0 {
			return nil, ErrNonexistent
		}
		idx := numKeys
		for i := 0; i < numKeys; i++ {
			k, err := node.Key(i)
			if err != nil {
				return nil, err
			}
			if bytes.Compare(key, k) < 0 {
				idx = i
				break
			}
		}
		child, err := node.Child(idx)
		if err != nil {
			return nil, err
		}
		id = child
	}
}

// Lookup returns the value stored for key, or ErrNonexistent.
func (t *Tree) Lookup(key []byte) ([]byte, error) {
	if err := t.validateKey(key); err != nil {
		return nil, err
	}

	leafID, err := t.descend(t.super.RootNode(), key)
	if err != nil {
		return nil, err
	}
	leaf, err := t.readNode(leafID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < leaf.NumKeys(); i++ {
		k, err := leaf.Key(i)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(k, key) {
			v, err := leaf.Value(i)
			if err != nil {
				return nil, err
			}
			out := make([]byte, len(v))
			copy(out, v)
			return out, nil
		}
	}
	return nil, ErrNonexistent
}

// Update overwrites the value stored for an existing key in place. It
// does not change tree structure or numkeys. Returns ErrNonexistent if
// key is absent.
func (t *Tree) Update(key, value []byte) error {
	if err := t.validateKey(key); err != nil {
		return err
	}
	if err := t.validateValue(value); err != nil {
		return err
	}

	leafID, err := t.descend(t.super.RootNode(), key)
	if err != nil {
		return err
	}
	leaf, err := t.readNode(leafID)
	if err != nil {
		return err
	}

	for i := 0; i < leaf.NumKeys(); i++ {
		k, err := leaf.Key(i)
		if err != nil {
			return err
		}
		if bytes.Equal(k, key) {
			if err := leaf.SetValue(i, value); err != nil {
				return err
			}
			return t.writeNode(leafID, leaf)
		}
	}
	return ErrNonexistent
}

// Insert adds (key, value) to the tree, splitting nodes along the way as
// needed to keep every non-root node under the fill threshold. Returns
// ErrConflict if the tree is configured unique and key is already
// present.
func (t *Tree) Insert(key, value []byte) error {
	if err := t.validateKey(key); err != nil {
		return err
	}
	if err := t.validateValue(value); err != nil {
		return err
	}

	if t.super.NumKeys() == 0 {
		if err := t.insertEmpty(key, value); err != nil {
			return err
		}
	} else {
		path, err := t.descendPath(t.super.RootNode(), key)
		if err != nil {
			return err
		}
		if err := t.insertLeaf(path, key, value); err != nil {
			return err
		}
	}

	t.super.SetNumKeys(t.super.NumKeys() + 1)
	return t.writeSuper()
}

// insertEmpty implements spec.md §4.5 step 1: the very first insert
// writes its entry into the bootstrap root block, which format already
// flags LEAF, leaving it a one-entry LEAF.
func (t *Tree) insertEmpty(key, value []byte) error {
	rootID := t.super.RootNode()
	root, err := t.readNode(rootID)
	if err != nil {
		return err
	}
	root.SetKind(kindLeaf)
	if err := root.SetKey(0, key); err != nil {
		return err
	}
	if err := root.SetValue(0, value); err != nil {
		return err
	}
	root.SetNumKeys(1)
	return t.writeNode(rootID, root)
}

// insertLeaf implements spec.md §4.5 steps 2-6: insert into the leaf at
// the end of path, splitting and bubbling as needed.
func (t *Tree) insertLeaf(path []uint32, key, value []byte) error {
	leafID := path[len(path)-1]
	leaf, err := t.readNode(leafID)
	if err != nil {
		return err
	}

	if t.unique {
		for i := 0; i < leaf.NumKeys(); i++ {
			k, err := leaf.Key(i)
			if err != nil {
				return err
			}
			if bytes.Equal(k, key) {
				return ErrConflict
			}
		}
	}

	numKeys := leaf.NumKeys()
	offset := numKeys
	for i := 0; i < numKeys; i++ {
		k, err := leaf.Key(i)
		if err != nil {
			return err
		}
		if bytes.Compare(key, k) < 0 {
			offset = i
			break
		}
	}

	// Shift (key, value) pairs at >= offset right by one, then write the
	// new pair at offset.
	leaf.SetNumKeys(numKeys + 1)
	for pos := numKeys; pos > offset; pos-- {
		k, err := leaf.Key(pos - 1)
		if err != nil {
			return err
		}
		v, err := leaf.Value(pos - 1)
		if err != nil {
			return err
		}
		if err := leaf.SetKey(pos, k); err != nil {
			return err
		}
		if err := leaf.SetValue(pos, v); err != nil {
			return err
		}
	}
	if err := leaf.SetKey(offset, key); err != nil {
		return err
	}
	if err := leaf.SetValue(offset, value); err != nil {
		return err
	}

	if leaf.NumKeys() < fillThreshold(leaf.MaxLeafSlots()) {
		return t.writeNode(leafID, leaf)
	}

	return t.splitLeaf(path, leafID, leaf)
}

// splitLeaf implements spec.md §4.5 step 5: allocate a right sibling,
// move the top half of L's entries into it, and bubble the separator up.
func (t *Tree) splitLeaf(path []uint32, leafID uint32, leaf *Node) error {
	rightID, err := t.allocateNode()
	if err != nil {
		return err
	}
	right := NewNode(kindLeaf, t.keySize, t.valueSize, t.blockSize)

	numKeys := leaf.NumKeys()
	mid := numKeys / 2

	for i := mid; i < numKeys; i++ {
		k, err := leaf.Key(i)
		if err != nil {
			return err
		}
		v, err := leaf.Value(i)
		if err != nil {
			return err
		}
		if err := right.SetKey(i-mid, k); err != nil {
			return err
		}
		if err := right.SetValue(i-mid, v); err != nil {
			return err
		}
	}
	right.SetNumKeys(numKeys - mid)
	leaf.SetNumKeys(mid)

	separator, err := right.Key(0)
	if err != nil {
		return err
	}
	separator = append([]byte(nil), separator...)

	if err := t.writeNode(leafID, leaf); err != nil {
		return err
	}
	if err := t.writeNode(rightID, right); err != nil {
		return err
	}

	if len(path) == 1 {
		return t.newRoot(separator, leafID, rightID)
	}
	return t.bubble(path[:len(path)-1], separator, rightID)
}

// newRoot allocates a fresh ROOT block above two former top-level nodes,
// used both when the tree's sole leaf splits and when bubble splits the
// current root.
func (t *Tree) newRoot(key []byte, left, right uint32) error {
	newRootID, err := t.allocateNode()
	if err != nil {
		return err
	}
	newRoot := NewNode(kindRoot, t.keySize, t.valueSize, t.blockSize)
	if err := newRoot.SetKey(0, key); err != nil {
		return err
	}
	if err := newRoot.SetChild(0, left); err != nil {
		return err
	}
	if err := newRoot.SetChild(1, right); err != nil {
		return err
	}
	newRoot.SetNumKeys(1)
	if err := t.writeNode(newRootID, newRoot); err != nil {
		return err
	}
	t.super.SetRootNode(newRootID)
	return nil
}

// Delete is declared unimplemented: spec.md's explicit non-goal.
func (t *Tree) Delete(key []byte) error {
	return ErrNotImplemented
}
