package bptree

import "fmt"

// Insert writes a key/value pair, overwriting the value if the key already
// exists. The change is durable once Insert returns nil.
func (t *Tree) Insert(key, value []byte) error {
	t.ctl.beginWrite()
	defer t.ctl.endWrite()
	if t.closed {
		return ErrTreeClosed
	}
	if err := t.checkKey(key); err != nil {
		return err
	}

	if err := t.insertLocked(key, value); err != nil {
		t.rollback()
		return err
	}
	return t.commit()
}

func (t *Tree) checkKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrKeyTooLarge)
	}
	if len(key) > t.conf.KeySize {
		return fmt.Errorf("%w: key is %d bytes, limit is %d", ErrKeyTooLarge, len(key), t.conf.KeySize)
	}
	return nil
}

// insertLocked performs the structural insert. Caller holds the write lock
// and handles commit or rollback.
func (t *Tree) insertLocked(key, value []byte) error {
	leaf, path, err := t.findLeaf(key)
	if err != nil {
		return err
	}

	idx := lowerBound(leaf.keys, key, t.conf.Compare)
	if idx < len(leaf.keys) && t.conf.Compare(leaf.keys[idx], key) == 0 {
		// Overwrite. The old value's overflow chain, if any, is recycled.
		ref, err := t.makeValueRef(value)
		if err != nil {
			return err
		}
		t.cache.MarkDirty(leaf)
		if err := t.freeOverflow(leaf.vals[idx]); err != nil {
			return err
		}
		leaf.vals[idx] = ref
		return nil
	}

	ref, err := t.makeValueRef(value)
	if err != nil {
		return err
	}
	t.cache.MarkDirty(leaf)
	leaf.keys = append(leaf.keys, nil)
	copy(leaf.keys[idx+1:], leaf.keys[idx:])
	leaf.keys[idx] = append([]byte(nil), key...)
	leaf.vals = append(leaf.vals, valueRef{})
	copy(leaf.vals[idx+1:], leaf.vals[idx:])
	leaf.vals[idx] = ref

	if len(leaf.keys) > t.conf.Order {
		return t.splitLeaf(leaf, path)
	}
	return nil
}

// splitLeaf moves the upper half of an overfull leaf into a fresh page and
// pushes the new right sibling's first key up as a separator. The right
// node starts at the median so both halves satisfy the occupancy floor.
func (t *Tree) splitLeaf(leaf *Node, path []crumb) error {
	rightID, err := t.allocatePage()
	if err != nil {
		return err
	}

	mid := len(leaf.keys) / 2
	right := &Node{
		id:       rightID,
		nodeType: NodeLeaf,
		keys:     append([][]byte(nil), leaf.keys[mid:]...),
		vals:     append([]valueRef(nil), leaf.vals[mid:]...),
		next:     leaf.next,
	}
	leaf.keys = leaf.keys[:mid:mid]
	leaf.vals = leaf.vals[:mid:mid]
	leaf.next = rightID
	t.cache.MarkDirty(right)

	sep := append([]byte(nil), right.keys[0]...)
	return t.insertIntoParent(path, sep, rightID)
}
