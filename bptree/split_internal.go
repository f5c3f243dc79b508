package bptree

import pagefile "GroveDB/pagefile_manager"

// splitInternal divides an overfull internal node around its median key.
// Unlike a leaf split the median is promoted, not copied: it separates the
// two halves in the parent and appears in neither of them.
func (t *Tree) splitInternal(node *Node, path []crumb) error {
	rightID, err := t.allocatePage()
	if err != nil {
		return err
	}

	mid := len(node.keys) / 2
	promoted := node.keys[mid]
	right := &Node{
		id:       rightID,
		nodeType: NodeInternal,
		keys:     append([][]byte(nil), node.keys[mid+1:]...),
		children: append([]pagefile.PageID(nil), node.children[mid+1:]...),
	}
	node.keys = node.keys[:mid:mid]
	node.children = node.children[: mid+1 : mid+1]
	t.cache.MarkDirty(right)

	return t.insertIntoParent(path, promoted, rightID)
}
