package bptree

import (
	"sort"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	pagefile "GroveDB/pagefile_manager"
)

// BufferPool keeps decoded nodes in memory in two tiers. Dirty nodes live
// in an exact table that is never evicted, so a modified node cannot be
// silently dropped before its page image reaches the log. Clean nodes live
// in a ristretto cache sized by the configured capacity; losing one only
// costs a re-read from the page file.
type BufferPool struct {
	mu    sync.Mutex
	dirty map[pagefile.PageID]*Node
	clean *ristretto.Cache[int64, *Node]
	load  func(pagefile.PageID) (*Node, error)
}

// NewBufferPool builds a pool holding at most capacity clean nodes.
// capacity 0 disables the clean tier entirely; dirty nodes are always held.
func NewBufferPool(capacity int64, load func(pagefile.PageID) (*Node, error)) (*BufferPool, error) {
	pool := &BufferPool{
		dirty: make(map[pagefile.PageID]*Node),
		load:  load,
	}
	if capacity > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[int64, *Node]{
			NumCounters: capacity * 10,
			MaxCost:     capacity,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		pool.clean = cache
	}
	return pool, nil
}

// Get returns the node for id, reading and decoding the page on a miss.
func (p *BufferPool) Get(id pagefile.PageID) (*Node, error) {
	p.mu.Lock()
	if node, ok := p.dirty[id]; ok {
		p.mu.Unlock()
		return node, nil
	}
	p.mu.Unlock()

	if p.clean != nil {
		if node, ok := p.clean.Get(int64(id)); ok {
			return node, nil
		}
	}

	node, err := p.load(id)
	if err != nil {
		return nil, err
	}
	if p.clean != nil {
		p.clean.Set(int64(id), node, 1)
	}
	return node, nil
}

// MarkDirty promotes a node into the exact table. It must be called before
// the node is mutated so the modified version is the one every later Get
// observes.
func (p *BufferPool) MarkDirty(node *Node) {
	p.mu.Lock()
	p.dirty[node.id] = node
	p.mu.Unlock()
	if p.clean != nil {
		p.clean.Del(int64(node.id))
	}
}

// Dirty returns every dirty node ordered by page id, so log records are
// appended deterministically.
func (p *BufferPool) Dirty() []*Node {
	p.mu.Lock()
	nodes := make([]*Node, 0, len(p.dirty))
	for _, node := range p.dirty {
		nodes = append(nodes, node)
	}
	p.mu.Unlock()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}

// DemoteClean moves every dirty node into the clean tier after its page
// image has been made durable.
func (p *BufferPool) DemoteClean() {
	p.mu.Lock()
	nodes := p.dirty
	p.dirty = make(map[pagefile.PageID]*Node)
	p.mu.Unlock()
	if p.clean == nil {
		return
	}
	for id, node := range nodes {
		p.clean.Set(int64(id), node, 1)
	}
}

// Forget drops a node from both tiers. Used when its page is freed.
func (p *BufferPool) Forget(id pagefile.PageID) {
	p.mu.Lock()
	delete(p.dirty, id)
	p.mu.Unlock()
	if p.clean != nil {
		p.clean.Del(int64(id))
	}
}

// DropAll empties both tiers. Nodes are mutated in place, so after a failed
// operation the cached copies may hold un-logged changes; rollback discards
// them all and later reads decode from disk again.
func (p *BufferPool) DropAll() {
	p.mu.Lock()
	p.dirty = make(map[pagefile.PageID]*Node)
	p.mu.Unlock()
	if p.clean != nil {
		p.clean.Clear()
	}
}

// Wait blocks until pending clean-tier admissions settle. Only tests need
// this.
func (p *BufferPool) Wait() {
	if p.clean != nil {
		p.clean.Wait()
	}
}

func (p *BufferPool) Close() {
	if p.clean != nil {
		p.clean.Close()
	}
}
