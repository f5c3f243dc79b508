package bptree

import (
	"fmt"

	pagefile "GroveDB/pagefile_manager"
)

// Freed pages form a singly linked list threaded through the pages
// themselves. The head lives in the header, each freed page is rewritten
// as a freelist node pointing at the previous head. Freelist nodes travel
// through the same cache and log path as tree nodes, so a crash between
// freeing and committing cannot leak or double-allocate a page.

// allocatePage hands out a reusable page from the freelist, or extends the
// allocation frontier when the list is empty. Caller must hold the write
// lock.
func (t *Tree) allocatePage() (pagefile.PageID, error) {
	if head := t.ctl.header.FreelistHead; head != 0 {
		node, err := t.cache.Get(head)
		if err != nil {
			return 0, fmt.Errorf("pop freelist head %d: %w", head, err)
		}
		if node.nodeType != NodeFreelist {
			return 0, fmt.Errorf("%w: page %d on freelist has type %d", ErrCorruptNode, head, node.nodeType)
		}
		t.ctl.header.FreelistHead = node.next
		t.ctl.headerDirty = true
		t.cache.Forget(head)
		return head, nil
	}

	id := t.ctl.header.NextPage
	t.ctl.header.NextPage++
	t.ctl.headerDirty = true
	return id, nil
}

// freePage pushes a page onto the freelist. Caller must hold the write
// lock.
func (t *Tree) freePage(id pagefile.PageID) {
	node := &Node{
		id:       id,
		nodeType: NodeFreelist,
		next:     t.ctl.header.FreelistHead,
	}
	t.cache.MarkDirty(node)
	t.ctl.header.FreelistHead = id
	t.ctl.headerDirty = true
}
