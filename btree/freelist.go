package btree

import "github.com/pkg/errors"

// allocateNode pops the head of the free list, per spec.md §4.2 and
// original_source/btree.cc's AllocateNode. It asserts the popped block
// really is FREE — a failed assertion here means the free list and the
// tree have already diverged, i.e. ErrCorruption, not a normal failure
// mode.
func (t *Tree) allocateNode() (uint32, error) {
	head := t.super.Freelist()
	if head == 0 {
		return 0, ErrNoSpace
	}

	node, err := t.readNode(head)
	if err != nil {
		return 0, err
	}
	if node.Kind() != kindFree {
		return 0, errors.Wrapf(ErrCorruption, "allocate: block %d popped from free list is not FREE (kind %d)", head, node.Kind())
	}

	t.super.SetFreelist(node.Freelist())
	if err := t.writeSuper(); err != nil {
		return 0, err
	}
	t.cache.NotifyAllocateBlock(head)
	return head, nil
}

// deallocateNode pushes id onto the free list, per spec.md §4.2 and
// original_source/btree.cc's DeallocateNode.
func (t *Tree) deallocateNode(id uint32) error {
	node, err := t.readNode(id)
	if err != nil {
		return err
	}
	if node.Kind() == kindFree {
		return errors.Wrapf(ErrCorruption, "deallocate: block %d is already FREE", id)
	}

	node.SetKind(kindFree)
	node.SetFreelist(t.super.Freelist())
	if err := t.writeNode(id, node); err != nil {
		return err
	}

	t.super.SetFreelist(id)
	if err := t.writeSuper(); err != nil {
		return err
	}
	t.cache.NotifyDeallocateBlock(id)
	return nil
}
