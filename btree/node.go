package btree

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// nodeKind is the on-disk nodetype field, named after
// original_source/btree.cc's BTREE_SUPERBLOCK/BTREE_ROOT_NODE/
// BTREE_INTERIOR_NODE/BTREE_LEAF_NODE/BTREE_UNALLOCATED_BLOCK.
type nodeKind uint8

const (
	kindInvalid nodeKind = iota
	kindSuperblock
	kindRoot
	kindInterior
	kindLeaf
	kindFree
)

func (k nodeKind) valid() bool {
	switch k {
	case kindSuperblock, kindRoot, kindInterior, kindLeaf, kindFree:
		return true
	default:
		return false
	}
}

// Block ids and child pointers are stored as 4-byte little-endian
// unsigned integers.
const ptrSize = 4

// Header layout. Every block, regardless of kind, carries this fixed
// 28-byte header; the remaining bytes hold the packed slot payload.
const (
	headerSize = 28

	offNodeType  = 0
	offKeySize   = 4
	offValueSize = 8
	offBlockSize = 12
	offRootNode  = 16
	offFreelist  = 20
	offNumKeys   = 24
)

// Node is the logical view of one block: a header plus a packed slot
// array of keys and either values (leaf) or child pointers
// (interior/root). Every accessor reads and writes the block's byte
// image in place. NewNode zero-fills a fresh image, but lowering NumKeys
// does not clear the slots past the new count: a node shrunk by a split
// keeps the moved entries' old bytes there, so two nodes with the same
// live entries can have different images.
type Node struct {
	data      []byte
	kind      nodeKind
	keySize   int
	valueSize int
	blockSize int
}

func maxLeafSlots(blockSize, keySize, valueSize int) int {
	return (blockSize - headerSize) / (keySize + valueSize)
}

func maxInteriorSlots(blockSize, keySize int) int {
	return (blockSize - headerSize - ptrSize) / (keySize + ptrSize)
}

// NewNode allocates a fresh, zero-filled block image of the given kind.
func NewNode(kind nodeKind, keySize, valueSize, blockSize int) *Node {
	n := &Node{
		data:      make([]byte, blockSize),
		kind:      kind,
		keySize:   keySize,
		valueSize: valueSize,
		blockSize: blockSize,
	}
	n.data[offNodeType] = byte(kind)
	binary.LittleEndian.PutUint32(n.data[offKeySize:], uint32(keySize))
	binary.LittleEndian.PutUint32(n.data[offValueSize:], uint32(valueSize))
	binary.LittleEndian.PutUint32(n.data[offBlockSize:], uint32(blockSize))
	return n
}

// DecodeNode parses a block image previously produced by Bytes/NewNode.
// It fails with ErrCorruption when the decoded nodetype is not one of
// the permitted variants, or when the image is too short to be a block
// of this shape.
func DecodeNode(data []byte, keySize, valueSize, blockSize int) (*Node, error) {
	if len(data) != blockSize {
		return nil, errors.Wrapf(ErrCorruption, "decode: got %d bytes, want %d", len(data), blockSize)
	}
	if len(data) < headerSize {
		return nil, errors.Wrapf(ErrCorruption, "decode: block too small for header: %d < %d", len(data), headerSize)
	}

	kind := nodeKind(data[offNodeType])
	if !kind.valid() {
		return nil, errors.Wrapf(ErrCorruption, "decode: illegal nodetype %d", data[offNodeType])
	}

	return &Node{
		data:      data,
		kind:      kind,
		keySize:   keySize,
		valueSize: valueSize,
		blockSize: blockSize,
	}, nil
}

// Bytes returns the node's block image, suitable for Cache.Write.
func (n *Node) Bytes() []byte { return n.data }

func (n *Node) Kind() nodeKind { return n.kind }

func (n *Node) SetKind(kind nodeKind) {
	n.kind = kind
	n.data[offNodeType] = byte(kind)
}

func (n *Node) NumKeys() int {
	return int(binary.LittleEndian.Uint32(n.data[offNumKeys:]))
}

func (n *Node) SetNumKeys(k int) {
	binary.LittleEndian.PutUint32(n.data[offNumKeys:], uint32(k))
}

// RootNode and Freelist are only authoritative when Kind() ==
// kindSuperblock, but the accessors work uniformly since every node
// carries the field: a FREE node's Freelist is its next pointer.
func (n *Node) RootNode() uint32 {
	return binary.LittleEndian.Uint32(n.data[offRootNode:])
}

func (n *Node) SetRootNode(id uint32) {
	binary.LittleEndian.PutUint32(n.data[offRootNode:], id)
}

func (n *Node) Freelist() uint32 {
	return binary.LittleEndian.Uint32(n.data[offFreelist:])
}

func (n *Node) SetFreelist(id uint32) {
	binary.LittleEndian.PutUint32(n.data[offFreelist:], id)
}

// MaxLeafSlots is the number of (key, value) pairs a leaf node of this
// key/value width and block size can hold.
func (n *Node) MaxLeafSlots() int {
	return maxLeafSlots(n.blockSize, n.keySize, n.valueSize)
}

// MaxInteriorSlots is the number of keys an interior/root node can hold;
// it has room for one more child pointer than that.
func (n *Node) MaxInteriorSlots() int {
	return maxInteriorSlots(n.blockSize, n.keySize)
}

func (n *Node) leafValueBase() int {
	return headerSize + n.MaxLeafSlots()*n.keySize
}

func (n *Node) interiorChildBase() int {
	return headerSize + n.MaxInteriorSlots()*n.keySize
}

// Key returns slot i's key. For a leaf, i ranges over MaxLeafSlots(); for
// an interior/root node, over MaxInteriorSlots().
func (n *Node) Key(i int) ([]byte, error) {
	max, err := n.keyCapacity()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= max {
		return nil, errors.Wrapf(ErrOutOfRange, "key index %d out of range [0,%d)", i, max)
	}
	off := headerSize + i*n.keySize
	return n.data[off : off+n.keySize], nil
}

// SetKey overwrites slot i's key. len(k) must equal the configured key
// size.
func (n *Node) SetKey(i int, k []byte) error {
	max, err := n.keyCapacity()
	if err != nil {
		return err
	}
	if i < 0 || i >= max {
		return errors.Wrapf(ErrOutOfRange, "key index %d out of range [0,%d)", i, max)
	}
	if len(k) != n.keySize {
		return errors.Wrapf(ErrOutOfRange, "key length %d != configured key size %d", len(k), n.keySize)
	}
	off := headerSize + i*n.keySize
	copy(n.data[off:off+n.keySize], k)
	return nil
}

func (n *Node) keyCapacity() (int, error) {
	switch n.kind {
	case kindLeaf:
		return n.MaxLeafSlots(), nil
	case kindInterior, kindRoot:
		return n.MaxInteriorSlots(), nil
	default:
		return 0, errors.Wrapf(ErrCorruption, "key access on node of kind %d", n.kind)
	}
}

// Value returns slot i's value. Only meaningful on a leaf.
func (n *Node) Value(i int) ([]byte, error) {
	if n.kind != kindLeaf {
		return nil, errors.Wrapf(ErrCorruption, "value access on node of kind %d", n.kind)
	}
	max := n.MaxLeafSlots()
	if i < 0 || i >= max {
		return nil, errors.Wrapf(ErrOutOfRange, "value index %d out of range [0,%d)", i, max)
	}
	off := n.leafValueBase() + i*n.valueSize
	return n.data[off : off+n.valueSize], nil
}

// SetValue overwrites slot i's value. len(v) must equal the configured
// value size.
func (n *Node) SetValue(i int, v []byte) error {
	if n.kind != kindLeaf {
		return errors.Wrapf(ErrCorruption, "value access on node of kind %d", n.kind)
	}
	max := n.MaxLeafSlots()
	if i < 0 || i >= max {
		return errors.Wrapf(ErrOutOfRange, "value index %d out of range [0,%d)", i, max)
	}
	if len(v) != n.valueSize {
		return errors.Wrapf(ErrOutOfRange, "value length %d != configured value size %d", len(v), n.valueSize)
	}
	off := n.leafValueBase() + i*n.valueSize
	copy(n.data[off:off+n.valueSize], v)
	return nil
}

// Child returns child pointer i. Only meaningful on an interior/root
// node, which has MaxInteriorSlots()+1 child slots.
func (n *Node) Child(i int) (uint32, error) {
	if n.kind != kindInterior && n.kind != kindRoot {
		return 0, errors.Wrapf(ErrCorruption, "child access on node of kind %d", n.kind)
	}
	max := n.MaxInteriorSlots() + 1
	if i < 0 || i >= max {
		return 0, errors.Wrapf(ErrOutOfRange, "child index %d out of range [0,%d)", i, max)
	}
	off := n.interiorChildBase() + i*ptrSize
	return binary.LittleEndian.Uint32(n.data[off:]), nil
}

// SetChild overwrites child pointer i.
func (n *Node) SetChild(i int, ptr uint32) error {
	if n.kind != kindInterior && n.kind != kindRoot {
		return errors.Wrapf(ErrCorruption, "child access on node of kind %d", n.kind)
	}
	max := n.MaxInteriorSlots() + 1
	if i < 0 || i >= max {
		return errors.Wrapf(ErrOutOfRange, "child index %d out of range [0,%d)", i, max)
	}
	off := n.interiorChildBase() + i*ptrSize
	binary.LittleEndian.PutUint32(n.data[off:], ptr)
	return nil
}

// fillThreshold is the "too full" boundary from spec.md: a node is too
// full at or above floor((2/3) * maxSlots).
func fillThreshold(maxSlots int) int {
	return (maxSlots * 2) / 3
}
