package bptree

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	pagefile "GroveDB/pagefile_manager"
)

// InspectTo writes a level-by-level dump of the tree to w, one line per
// node. Meant for debugging and the inspect_idx command, not for parsing.
func (t *Tree) InspectTo(w io.Writer) error {
	t.ctl.beginRead()
	defer t.ctl.endRead()
	if t.closed {
		return ErrTreeClosed
	}

	levelColor := color.New(color.FgCyan, color.Bold)
	internalColor := color.New(color.FgYellow)
	leafColor := color.New(color.FgGreen)

	fmt.Fprintf(w, "root=%d next_page=%d freelist_head=%d\n",
		t.ctl.header.RootPage, t.ctl.header.NextPage, t.ctl.header.FreelistHead)

	level := []pagefile.PageID{t.ctl.header.RootPage}
	for depth := 0; len(level) > 0; depth++ {
		levelColor.Fprintf(w, "level %d\n", depth)
		var next []pagefile.PageID
		for _, id := range level {
			node, err := t.cache.Get(id)
			if err != nil {
				return fmt.Errorf("read page %d: %w", id, err)
			}
			switch node.nodeType {
			case NodeInternal:
				internalColor.Fprintf(w, "  internal %d: %d keys, children=%v\n",
					node.id, len(node.keys), node.children)
				next = append(next, node.children...)
			case NodeLeaf:
				spilled := 0
				for _, ref := range node.vals {
					if ref.overflow != 0 {
						spilled++
					}
				}
				leafColor.Fprintf(w, "  leaf %d: %d keys, %d spilled, next=%d\n",
					node.id, len(node.keys), spilled, node.next)
			default:
				return fmt.Errorf("%w: page %d in tree walk has type %d", ErrCorruptNode, node.id, node.nodeType)
			}
		}
		level = next
	}
	return nil
}
