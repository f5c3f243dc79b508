package bptree

import (
	"fmt"

	pagefile "GroveDB/pagefile_manager"
)

// Delete removes a key and its value. Deleting a key that is not present
// is a no-op. The removal is durable once Delete returns nil.
func (t *Tree) Delete(key []byte) error {
	t.ctl.beginWrite()
	defer t.ctl.endWrite()
	if t.closed {
		return ErrTreeClosed
	}
	if err := t.checkKey(key); err != nil {
		return err
	}

	found, err := t.deleteLocked(key)
	if err != nil {
		t.rollback()
		return err
	}
	if !found {
		return nil
	}
	return t.commit()
}

func (t *Tree) deleteLocked(key []byte) (bool, error) {
	leaf, path, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}

	idx := lowerBound(leaf.keys, key, t.conf.Compare)
	if idx >= len(leaf.keys) || t.conf.Compare(leaf.keys[idx], key) != 0 {
		return false, nil
	}

	t.cache.MarkDirty(leaf)
	if err := t.freeOverflow(leaf.vals[idx]); err != nil {
		return false, err
	}
	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.vals = append(leaf.vals[:idx], leaf.vals[idx+1:]...)

	// Restore occupancy bottom-up. The root is exempt from the floor; it
	// collapses instead when it drains to a single child.
	node := leaf
	for len(path) > 0 {
		if len(node.keys) >= t.conf.minKeysFor(node) {
			return true, nil
		}
		parent := path[len(path)-1]
		if err := t.rebalanceChild(parent.node, parent.idx); err != nil {
			return false, err
		}
		node = parent.node
		path = path[:len(path)-1]
	}

	if node.nodeType == NodeInternal && len(node.keys) == 0 {
		t.ctl.header.RootPage = node.children[0]
		t.ctl.headerDirty = true
		t.cache.Forget(node.id)
		t.freePage(node.id)
	}
	return true, nil
}

// rebalanceChild fixes an underfull child of parent at position idx,
// borrowing a surplus entry from a sibling when one has spare keys and
// merging with a sibling otherwise. Borrowing is preferred: it is local
// and never propagates.
func (t *Tree) rebalanceChild(parent *Node, idx int) error {
	node, err := t.cache.Get(parent.children[idx])
	if err != nil {
		return fmt.Errorf("read page %d: %w", parent.children[idx], err)
	}

	if idx > 0 {
		left, err := t.cache.Get(parent.children[idx-1])
		if err != nil {
			return fmt.Errorf("read page %d: %w", parent.children[idx-1], err)
		}
		if len(left.keys) > t.conf.minKeysFor(left) {
			t.borrowFromLeft(parent, idx, left, node)
			return nil
		}
	}
	if idx < len(parent.children)-1 {
		right, err := t.cache.Get(parent.children[idx+1])
		if err != nil {
			return fmt.Errorf("read page %d: %w", parent.children[idx+1], err)
		}
		if len(right.keys) > t.conf.minKeysFor(right) {
			t.borrowFromRight(parent, idx, node, right)
			return nil
		}
	}

	if idx > 0 {
		left, err := t.cache.Get(parent.children[idx-1])
		if err != nil {
			return fmt.Errorf("read page %d: %w", parent.children[idx-1], err)
		}
		t.mergeSiblings(parent, idx-1, left, node)
		return nil
	}
	right, err := t.cache.Get(parent.children[idx+1])
	if err != nil {
		return fmt.Errorf("read page %d: %w", parent.children[idx+1], err)
	}
	t.mergeSiblings(parent, idx, node, right)
	return nil
}

// borrowFromLeft shifts the left sibling's last entry into node and
// updates the separator between them.
func (t *Tree) borrowFromLeft(parent *Node, idx int, left, node *Node) {
	t.cache.MarkDirty(parent)
	t.cache.MarkDirty(left)
	t.cache.MarkDirty(node)
	last := len(left.keys) - 1

	if node.nodeType == NodeLeaf {
		node.keys = append([][]byte{left.keys[last]}, node.keys...)
		node.vals = append([]valueRef{left.vals[last]}, node.vals...)
		left.keys = left.keys[:last]
		left.vals = left.vals[:last]
		parent.keys[idx-1] = append([]byte(nil), node.keys[0]...)
		return
	}

	// Internal borrow rotates through the parent: the separator comes
	// down, the sibling's last key goes up.
	node.keys = append([][]byte{parent.keys[idx-1]}, node.keys...)
	node.children = append([]pagefile.PageID{left.children[len(left.children)-1]}, node.children...)
	parent.keys[idx-1] = left.keys[last]
	left.keys = left.keys[:last]
	left.children = left.children[:len(left.children)-1]
}

// borrowFromRight shifts the right sibling's first entry into node.
func (t *Tree) borrowFromRight(parent *Node, idx int, node, right *Node) {
	t.cache.MarkDirty(parent)
	t.cache.MarkDirty(node)
	t.cache.MarkDirty(right)

	if node.nodeType == NodeLeaf {
		node.keys = append(node.keys, right.keys[0])
		node.vals = append(node.vals, right.vals[0])
		right.keys = right.keys[1:]
		right.vals = right.vals[1:]
		parent.keys[idx] = append([]byte(nil), right.keys[0]...)
		return
	}

	node.keys = append(node.keys, parent.keys[idx])
	node.children = append(node.children, right.children[0])
	parent.keys[idx] = right.keys[0]
	right.keys = right.keys[1:]
	right.children = right.children[1:]
}

// mergeSiblings folds the child at sepIdx+1 into the child at sepIdx and
// removes the separator. The parent may underflow in turn; the caller's
// upward loop handles that.
func (t *Tree) mergeSiblings(parent *Node, sepIdx int, left, right *Node) {
	t.cache.MarkDirty(parent)
	t.cache.MarkDirty(left)

	if left.nodeType == NodeLeaf {
		left.keys = append(left.keys, right.keys...)
		left.vals = append(left.vals, right.vals...)
		left.next = right.next
	} else {
		// The separator rejoins the keys; it is the bound between the two
		// child sets being concatenated.
		left.keys = append(left.keys, parent.keys[sepIdx])
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
	}

	parent.keys = append(parent.keys[:sepIdx], parent.keys[sepIdx+1:]...)
	parent.children = append(parent.children[:sepIdx+1], parent.children[sepIdx+2:]...)

	t.cache.Forget(right.id)
	t.freePage(right.id)
}
