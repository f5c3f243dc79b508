package bptree

import (
	"sync"

	pagefile "GroveDB/pagefile_manager"
)

// controller serializes writers against each other and against readers.
// Readers share the lock, so point lookups and range scans run
// concurrently; a writer holds it exclusively from first mutation to
// commit, which is also the moment the root pointer may move.
type controller struct {
	mu          sync.RWMutex
	header      pagefile.Header
	headerDirty bool
}

func (c *controller) beginRead()  { c.mu.RLock() }
func (c *controller) endRead()    { c.mu.RUnlock() }
func (c *controller) beginWrite() { c.mu.Lock() }
func (c *controller) endWrite()   { c.mu.Unlock() }
