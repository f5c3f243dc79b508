package bptree

import pagefile "GroveDB/pagefile_manager"

// insertIntoParent links a freshly split-off right sibling under the
// parent recorded in the descent path, growing a new root when the split
// reached the top. path[len-1].idx is the slot the descent took, which is
// exactly where the separator belongs.
func (t *Tree) insertIntoParent(path []crumb, sep []byte, rightID pagefile.PageID) error {
	if len(path) == 0 {
		rootID, err := t.allocatePage()
		if err != nil {
			return err
		}
		oldRoot := t.ctl.header.RootPage
		root := &Node{
			id:       rootID,
			nodeType: NodeInternal,
			keys:     [][]byte{sep},
			children: []pagefile.PageID{oldRoot, rightID},
		}
		t.cache.MarkDirty(root)
		t.ctl.header.RootPage = rootID
		t.ctl.headerDirty = true
		return nil
	}

	parent := path[len(path)-1]
	node, idx := parent.node, parent.idx
	t.cache.MarkDirty(node)

	node.keys = append(node.keys, nil)
	copy(node.keys[idx+1:], node.keys[idx:])
	node.keys[idx] = sep
	node.children = append(node.children, 0)
	copy(node.children[idx+2:], node.children[idx+1:])
	node.children[idx+1] = rightID

	if len(node.keys) > t.conf.Order {
		return t.splitInternal(node, path[:len(path)-1])
	}
	return nil
}
