package bptree

import (
	"fmt"
	"iter"
)

// Scan visits keys in [start, end] ascending, both bounds inclusive and
// nil meaning open. fn returning false stops the scan early. The read lock
// is held for the whole walk, so a scan observes one consistent tree.
func (t *Tree) Scan(start, end []byte, fn func(key, value []byte) bool) error {
	t.ctl.beginRead()
	defer t.ctl.endRead()
	if t.closed {
		return ErrTreeClosed
	}

	var leaf *Node
	var idx int
	var err error
	if start == nil {
		leaf, err = t.leftmostLeaf()
	} else {
		leaf, _, err = t.findLeaf(start)
		if err == nil {
			idx = lowerBound(leaf.keys, start, t.conf.Compare)
		}
	}
	if err != nil {
		return err
	}

	for {
		for ; idx < len(leaf.keys); idx++ {
			key := leaf.keys[idx]
			if end != nil && t.conf.Compare(key, end) > 0 {
				return nil
			}
			value, err := t.resolveValue(leaf.vals[idx])
			if err != nil {
				return err
			}
			if !fn(append([]byte(nil), key...), value) {
				return nil
			}
		}
		if leaf.next == 0 {
			return nil
		}
		next, err := t.cache.Get(leaf.next)
		if err != nil {
			return fmt.Errorf("read page %d: %w", leaf.next, err)
		}
		if next.nodeType != NodeLeaf {
			return fmt.Errorf("%w: page %d in leaf chain has type %d", ErrCorruptNode, next.id, next.nodeType)
		}
		leaf = next
		idx = 0
	}
}

// Range iterates key/value pairs in [start, end], nil bounds open. A page
// read failure ends the iteration early; use Scan to observe the error.
func (t *Tree) Range(start, end []byte) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		_ = t.Scan(start, end, yield)
	}
}

// Items iterates every pair in key order.
func (t *Tree) Items() iter.Seq2[[]byte, []byte] {
	return t.Range(nil, nil)
}

func (t *Tree) Keys() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		_ = t.Scan(nil, nil, func(key, _ []byte) bool { return yield(key) })
	}
}

func (t *Tree) Values() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		_ = t.Scan(nil, nil, func(_, value []byte) bool { return yield(value) })
	}
}
