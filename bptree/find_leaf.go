package bptree

import "fmt"

// findLeaf walks from the root to the leaf whose key range covers key,
// recording the path taken. Internal descent follows the first child whose
// separator exceeds the key, so equal keys go right and every leaf owns a
// half-open range.
func (t *Tree) findLeaf(key []byte) (*Node, []crumb, error) {
	node, err := t.cache.Get(t.ctl.header.RootPage)
	if err != nil {
		return nil, nil, fmt.Errorf("read root page %d: %w", t.ctl.header.RootPage, err)
	}

	var path []crumb
	for node.nodeType == NodeInternal {
		idx := upperBound(node.keys, key, t.conf.Compare)
		path = append(path, crumb{node: node, idx: idx})
		child := node.children[idx]
		node, err = t.cache.Get(child)
		if err != nil {
			return nil, nil, fmt.Errorf("read page %d: %w", child, err)
		}
	}
	if node.nodeType != NodeLeaf {
		return nil, nil, fmt.Errorf("%w: page %d in descent has type %d", ErrCorruptNode, node.id, node.nodeType)
	}
	return node, path, nil
}

// leftmostLeaf descends child 0 all the way down. Range scans without a
// start bound begin here.
func (t *Tree) leftmostLeaf() (*Node, error) {
	node, err := t.cache.Get(t.ctl.header.RootPage)
	if err != nil {
		return nil, fmt.Errorf("read root page %d: %w", t.ctl.header.RootPage, err)
	}
	for node.nodeType == NodeInternal {
		child := node.children[0]
		node, err = t.cache.Get(child)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", child, err)
		}
	}
	if node.nodeType != NodeLeaf {
		return nil, fmt.Errorf("%w: page %d in descent has type %d", ErrCorruptNode, node.id, node.nodeType)
	}
	return node, nil
}
