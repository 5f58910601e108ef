package btree

import "github.com/pkg/errors"

// Stats summarizes the tree's shape, per spec.md §10's supplemented
// diagnostics (the original C++ has no equivalent; this is derived from
// walking the same structures SanityCheck does).
type Stats struct {
	NumKeys      int
	NumLeaves    int
	NumInteriors int
	NumFree      int
	Height       int
}

// Stats walks the tree once and reports aggregate counts.
func (t *Tree) Stats() (Stats, error) {
	var s Stats
	if err := t.statNode(t.super.RootNode(), &s); err != nil {
		return Stats{}, err
	}

	numFree := 0
	id := t.super.Freelist()
	for id != 0 {
		node, err := t.readNode(id)
		if err != nil {
			return Stats{}, err
		}
		numFree++
		id = node.Freelist()
	}
	s.NumFree = numFree

	height, err := t.Height()
	if err != nil {
		return Stats{}, err
	}
	s.Height = height

	return s, nil
}

func (t *Tree) statNode(id uint32, s *Stats) error {
	node, err := t.readNode(id)
	if err != nil {
		return err
	}
	switch node.Kind() {
	case kindLeaf:
		s.NumLeaves++
		s.NumKeys += node.NumKeys()
		return nil
	case kindInterior, kindRoot:
		s.NumInteriors++
		for i := 0; i <= node.NumKeys(); i++ {
			child, err := node.Child(i)
			if err != nil {
				return err
			}
			if err := t.statNode(child, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrCorruption, "stats: illegal nodetype at block %d", id)
	}
}

// Height reports the number of levels between the root and its leaves,
// inclusive; an empty or single-leaf tree has height 1. It walks the
// leftmost spine, which is sufficient since every leaf sits at the same
// depth by construction of the split algorithm.
func (t *Tree) Height() (int, error) {
	id := t.super.RootNode()
	height := 0
	for {
		node, err := t.readNode(id)
		if err != nil {
			return 0, err
		}
		height++
		if node.Kind() == kindLeaf {
			return height, nil
		}
		child, err := node.Child(0)
		if err != nil {
			return 0, err
		}
		id = child
	}
}
