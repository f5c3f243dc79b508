package bptree

import (
	"bytes"
	"fmt"

	pagefile "GroveDB/pagefile_manager"
)

// TreeConf is the resolved configuration a tree runs with. For an existing
// file the structural fields come from the header page, not from Options.
type TreeConf struct {
	PageSize  int // unit of I/O and WAL record granularity
	Order     int // maximum keys per node
	KeySize   int // maximum encoded key length
	ValueSize int // inline bound; longer values go to overflow chains
	Compare   func(a, b []byte) int
}

// Options configures Open. Zero values take defaults.
type Options struct {
	PageSize  int // default 4096
	Order     int // default 64, minimum 3
	KeySize   int // default 16
	ValueSize int // default 32; values above it overflow
	CacheSize int // clean decoded nodes kept in memory, default 512, negative disables

	// CheckpointBytes triggers an automatic checkpoint once the WAL grows
	// past it. 0 keeps checkpoints manual (Checkpoint and Close only).
	CheckpointBytes int64

	// Compare is the total order on encoded keys. Defaults to bytes.Compare,
	// which matches the order-preserving serializers.
	Compare func(a, b []byte) int
}

const (
	DefaultPageSize  = 4096
	DefaultOrder     = 64
	DefaultKeySize   = 16
	DefaultValueSize = 32
	DefaultCacheSize = 512

	MinOrder = 3
)

func (o Options) withDefaults() Options {
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Order == 0 {
		o.Order = DefaultOrder
	}
	if o.KeySize == 0 {
		o.KeySize = DefaultKeySize
	}
	if o.ValueSize == 0 {
		o.ValueSize = DefaultValueSize
	}
	if o.CacheSize == 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.Compare == nil {
		o.Compare = bytes.Compare
	}
	return o
}

func (o Options) conf() TreeConf {
	return TreeConf{
		PageSize:  o.PageSize,
		Order:     o.Order,
		KeySize:   o.KeySize,
		ValueSize: o.ValueSize,
		Compare:   o.Compare,
	}
}

// validate rejects configurations a tree cannot run with, in particular a
// page size too small to hold a maximally full node.
func (c TreeConf) validate() error {
	if c.Order < MinOrder {
		return fmt.Errorf("bptree: order %d is below the minimum %d", c.Order, MinOrder)
	}
	if c.KeySize < 1 {
		return fmt.Errorf("bptree: key size %d must be positive", c.KeySize)
	}
	if c.ValueSize < 0 {
		return fmt.Errorf("bptree: value size %d must not be negative", c.ValueSize)
	}
	if need := c.maxNodeSize(); c.PageSize < need {
		return fmt.Errorf("bptree: page size %d cannot hold a full node of order %d (need %d)",
			c.PageSize, c.Order, need)
	}
	if c.PageSize < pagefile.HeaderSize {
		return fmt.Errorf("bptree: page size %d is below the header size %d",
			c.PageSize, pagefile.HeaderSize)
	}
	if c.PageSize <= overflowHeaderSize {
		return fmt.Errorf("bptree: page size %d leaves no overflow capacity", c.PageSize)
	}
	return nil
}

// maxNodeSize is the worst-case encoded size over both node kinds.
func (c TreeConf) maxNodeSize() int {
	valuePart := 4 + c.ValueSize // inline: length prefix + bytes
	if valuePart < 8 {
		valuePart = 8 // overflow: total length
	}
	leaf := leafHeaderSize + c.Order*(2+c.KeySize+8+valuePart)
	internal := internalHeaderSize + (c.Order+1)*8 + c.Order*(2+c.KeySize)
	if leaf > internal {
		return leaf
	}
	return internal
}

// minLeafKeys is the underflow bound for non-root leaves: ceil(order/2).
func (c TreeConf) minLeafKeys() int {
	return (c.Order + 1) / 2
}

// minInternalKeys is the underflow bound for non-root internal nodes,
// derived from the minimum child count ceil((order+1)/2).
func (c TreeConf) minInternalKeys() int {
	return (c.Order+2)/2 - 1
}

func (c TreeConf) minKeysFor(n *Node) int {
	if n.nodeType == NodeLeaf {
		return c.minLeafKeys()
	}
	return c.minInternalKeys()
}
