package btree

import "bytes"

// bubble implements spec.md §4.6: insert (key, right) into the interior
// node at the end of path, splitting it (and recursing further up path)
// if that overflows it.
func (t *Tree) bubble(path []uint32, key []byte, right uint32) error {
	parentID := path[len(path)-1]
	parent, err := t.readNode(parentID)
	if err != nil {
		return err
	}

	numKeys := parent.NumKeys()
	offset := numKeys
	for i := 0; i < numKeys; i++ {
		k, err := parent.Key(i)
		if err != nil {
			return err
		}
		if bytes.Compare(key, k) < 0 {
			offset = i
			break
		}
	}

	// Shift keys at >= offset right by one, and children at >= offset+1
	// right by one, then write the new key/child pair in the gap.
	parent.SetNumKeys(numKeys + 1)
	for pos := numKeys; pos > offset; pos-- {
		k, err := parent.Key(pos - 1)
		if err != nil {
			return err
		}
		if err := parent.SetKey(pos, k); err != nil {
			return err
		}
	}
	for pos := numKeys + 1; pos > offset+1; pos-- {
		c, err := parent.Child(pos - 1)
		if err != nil {
			return err
		}
		if err := parent.SetChild(pos, c); err != nil {
			return err
		}
	}
	if err := parent.SetKey(offset, key); err != nil {
		return err
	}
	if err := parent.SetChild(offset+1, right); err != nil {
		return err
	}

	if parent.NumKeys() < fillThreshold(parent.MaxInteriorSlots()) {
		return t.writeNode(parentID, parent)
	}

	return t.splitInterior(path, parentID, parent)
}

// splitInterior implements spec.md §4.6's interior-split branch: the
// middle key is promoted upward and removed from both halves (unlike a
// leaf split, whose separator is copied, not removed) — the corrected
// form of the accounting spec.md §9 calls out as buggy in the source's
// middle draft.
func (t *Tree) splitInterior(path []uint32, parentID uint32, parent *Node) error {
	rightID, err := t.allocateNode()
	if err != nil {
		return err
	}
	rightNode := NewNode(kindInterior, t.keySize, t.valueSize, t.blockSize)

	numKeys := parent.NumKeys()
	mid := numKeys / 2

	promoted, err := parent.Key(mid)
	if err != nil {
		return err
	}
	promoted = append([]byte(nil), promoted...)

	for i := mid + 1; i < numKeys; i++ {
		k, err := parent.Key(i)
		if err != nil {
			return err
		}
		if err := rightNode.SetKey(i-mid-1, k); err != nil {
			return err
		}
	}
	for i := mid + 1; i <= numKeys; i++ {
		c, err := parent.Child(i)
		if err != nil {
			return err
		}
		if err := rightNode.SetChild(i-mid-1, c); err != nil {
			return err
		}
	}
	rightNode.SetNumKeys(numKeys - mid - 1)
	parent.SetNumKeys(mid)

	if parentID == t.super.RootNode() {
		// parent was the ROOT; it becomes a plain INTERIOR node subordinate
		// to a brand new root.
		parent.SetKind(kindInterior)
		if err := t.writeNode(parentID, parent); err != nil {
			return err
		}
		if err := t.writeNode(rightID, rightNode); err != nil {
			return err
		}
		return t.newRoot(promoted, parentID, rightID)
	}

	if err := t.writeNode(parentID, parent); err != nil {
		return err
	}
	if err := t.writeNode(rightID, rightNode); err != nil {
		return err
	}

	// path[0] is always the current root (descendPath starts there), so
	// reaching len(path) == 1 without parentID already being the root
	// (handled above) cannot happen.
	return t.bubble(path[:len(path)-1], promoted, rightID)
}
