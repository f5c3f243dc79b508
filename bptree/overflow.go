package bptree

import (
	"fmt"

	pagefile "GroveDB/pagefile_manager"
)

// Values longer than the inline threshold are spilled into a chain of
// overflow pages. The leaf entry keeps only the head page id and the total
// length; each chain page carries a payload chunk and the id of the next
// page, zero terminating the chain.

func (t *Tree) overflowCapacity() int {
	return t.conf.PageSize - overflowHeaderSize
}

// makeValueRef stores value inline when it fits, otherwise spills it into
// a fresh overflow chain.
func (t *Tree) makeValueRef(value []byte) (valueRef, error) {
	if len(value) <= t.conf.ValueSize {
		return valueRef{inline: append([]byte(nil), value...)}, nil
	}
	head, err := t.storeOverflow(value)
	if err != nil {
		return valueRef{}, err
	}
	return valueRef{overflow: head, length: uint64(len(value))}, nil
}

func (t *Tree) storeOverflow(value []byte) (pagefile.PageID, error) {
	capacity := t.overflowCapacity()
	chunks := (len(value) + capacity - 1) / capacity

	ids := make([]pagefile.PageID, chunks)
	for i := range ids {
		id, err := t.allocatePage()
		if err != nil {
			return 0, err
		}
		ids[i] = id
	}

	for i := 0; i < chunks; i++ {
		start := i * capacity
		end := start + capacity
		if end > len(value) {
			end = len(value)
		}
		var next pagefile.PageID
		if i+1 < chunks {
			next = ids[i+1]
		}
		node := &Node{
			id:       ids[i],
			nodeType: NodeOverflow,
			next:     next,
			payload:  append([]byte(nil), value[start:end]...),
		}
		t.cache.MarkDirty(node)
	}
	return ids[0], nil
}

// loadOverflow reassembles a spilled value. A chain longer than its
// recorded length allows, a non-overflow page, or a short result all fail
// with ErrCorruptOverflowChain; the extra-page bound doubles as a cycle
// guard.
func (t *Tree) loadOverflow(ref valueRef) ([]byte, error) {
	capacity := t.overflowCapacity()
	maxChunks := int(ref.length)/capacity + 1

	value := make([]byte, 0, ref.length)
	id := ref.overflow
	for hops := 0; id != 0; hops++ {
		if hops >= maxChunks {
			return nil, fmt.Errorf("%w: chain from page %d exceeds %d pages",
				ErrCorruptOverflowChain, ref.overflow, maxChunks)
		}
		node, err := t.cache.Get(id)
		if err != nil {
			return nil, fmt.Errorf("read overflow page %d: %w", id, err)
		}
		if node.nodeType != NodeOverflow {
			return nil, fmt.Errorf("%w: page %d has type %d", ErrCorruptOverflowChain, id, node.nodeType)
		}
		value = append(value, node.payload...)
		id = node.next
	}
	if uint64(len(value)) != ref.length {
		return nil, fmt.Errorf("%w: chain from page %d holds %d bytes, expected %d",
			ErrCorruptOverflowChain, ref.overflow, len(value), ref.length)
	}
	return value, nil
}

// freeOverflow recycles the pages of a spilled value, if the ref has one.
func (t *Tree) freeOverflow(ref valueRef) error {
	if ref.overflow == 0 {
		return nil
	}
	capacity := t.overflowCapacity()
	maxChunks := int(ref.length)/capacity + 1

	id := ref.overflow
	for hops := 0; id != 0; hops++ {
		if hops >= maxChunks {
			return fmt.Errorf("%w: chain from page %d exceeds %d pages",
				ErrCorruptOverflowChain, ref.overflow, maxChunks)
		}
		node, err := t.cache.Get(id)
		if err != nil {
			return fmt.Errorf("read overflow page %d: %w", id, err)
		}
		if node.nodeType != NodeOverflow {
			return fmt.Errorf("%w: page %d has type %d", ErrCorruptOverflowChain, id, node.nodeType)
		}
		next := node.next
		t.cache.Forget(id)
		t.freePage(id)
		id = next
	}
	return nil
}

// resolveValue materializes the bytes behind a leaf entry.
func (t *Tree) resolveValue(ref valueRef) ([]byte, error) {
	if ref.overflow == 0 {
		return append([]byte(nil), ref.inline...), nil
	}
	return t.loadOverflow(ref)
}
