// Structure of the B+ tree
/*
Tree
 ├── Internal Node (keys + child page ids)
 │      └── Child Internal Nodes ...
 │             └── Leaf Nodes (keys + values + next pointer)

- keys: sorted ascending per the injected comparator
- internal nodes: children length == len(keys)+1
- leaf nodes: values length == len(keys)
- leaf nodes linked with `next` for fast range scans
- values longer than the inline bound live in overflow page chains
- all leaf nodes at same depth
*/
package bptree

import (
	pagefile "GroveDB/pagefile_manager"
	"GroveDB/wal_manager"
)

type NodeType byte

const (
	NodeLeaf     NodeType = 1
	NodeInternal NodeType = 2
	NodeOverflow NodeType = 3
	NodeFreelist NodeType = 4
)

// valueRef is a leaf entry's value: either inline bytes or the head of an
// overflow chain plus the total value length.
type valueRef struct {
	inline   []byte
	overflow pagefile.PageID // 0 means inline
	length   uint64          // total bytes in the overflow chain
}

// Node is the logical content of one page. The nodeType tag decides which
// fields are meaningful; codec and engine switch on it explicitly.
type Node struct {
	id       pagefile.PageID
	nodeType NodeType
	keys     [][]byte          // leaf and internal
	vals     []valueRef        // leaf only
	children []pagefile.PageID // internal only
	next     pagefile.PageID   // leaf sibling, overflow link or freelist link
	payload  []byte            // overflow only
}

// crumb records one step of a root-to-leaf descent: the internal node and
// the child index that was followed. Splits propagate back up this path.
type crumb struct {
	node *Node
	idx  int
}

// Tree is an on-disk B+ tree: an ordered key→value mapping over fixed-size
// pages, durable through a write-ahead log.
type Tree struct {
	conf  TreeConf
	store pagefile.Store
	wal   *wal_manager.WAL
	cache *BufferPool
	ctl   controller

	checkpointBytes int64
	closed          bool
}
