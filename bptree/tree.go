package bptree

import (
	"fmt"

	pagefile "GroveDB/pagefile_manager"
	"GroveDB/wal_manager"
)

// Open opens or creates a tree backed by the page file at path and its
// write-ahead log at path + ".wal". If the log holds committed records
// from a previous run they are replayed into the page file before the
// tree is used, so a crash between commit and page write loses nothing.
func Open(path string, opts Options) (*Tree, error) {
	// Structural parameters the caller leaves zero are adopted from an
	// existing file's header, so tools can open any tree file without
	// knowing how it was built. Explicit values must still match.
	if h, ok, err := pagefile.PeekHeader(path); err != nil {
		return nil, err
	} else if ok {
		if opts.PageSize == 0 {
			opts.PageSize = int(h.PageSize)
		}
		if opts.Order == 0 {
			opts.Order = int(h.Order)
		}
		if opts.KeySize == 0 {
			opts.KeySize = int(h.KeySize)
		}
		if opts.ValueSize == 0 {
			opts.ValueSize = int(h.ValueSize)
		}
	}
	opts = opts.withDefaults()
	conf := opts.conf()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	store, err := pagefile.OpenDisk(path, conf.PageSize)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}
	tree, err := openWithStore(store, path+".wal", opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	return tree, nil
}

func openWithStore(store pagefile.Store, walPath string, opts Options) (*Tree, error) {
	conf := opts.conf()

	wal, err := wal_manager.OpenWAL(walPath, conf.PageSize)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	t := &Tree{
		conf:            conf,
		store:           store,
		wal:             wal,
		checkpointBytes: opts.CheckpointBytes,
	}
	t.cache, err = NewBufferPool(int64(opts.CacheSize), t.loadNode)
	if err != nil {
		wal.Close()
		return nil, fmt.Errorf("build node cache: %w", err)
	}

	if err := t.recover(); err != nil {
		t.cache.Close()
		wal.Close()
		return nil, err
	}

	if store.NumPages() == 0 {
		if err := t.initEmpty(); err != nil {
			t.cache.Close()
			wal.Close()
			return nil, err
		}
	} else {
		header, err := t.readHeader()
		if err != nil {
			t.cache.Close()
			wal.Close()
			return nil, err
		}
		if err := checkHeader(header, conf); err != nil {
			t.cache.Close()
			wal.Close()
			return nil, err
		}
		t.ctl.header = header
	}
	return t, nil
}

// recover replays any committed log records into the page file, then
// truncates the log. An empty log makes this a no-op.
func (t *Tree) recover() error {
	if t.wal.Empty() {
		return nil
	}
	applied, err := t.wal.Replay(func(pageID int64, image []byte) error {
		return t.store.WritePage(pagefile.PageID(pageID), image)
	})
	if err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}
	if applied > 0 {
		if err := t.store.Sync(); err != nil {
			return fmt.Errorf("sync after replay: %w", err)
		}
	}
	if err := t.wal.Truncate(); err != nil {
		return fmt.Errorf("truncate wal after replay: %w", err)
	}
	return nil
}

// initEmpty lays down page 0 (header) and page 1 (empty root leaf) for a
// brand new file, through the normal commit path so the images hit the
// log first.
func (t *Tree) initEmpty() error {
	t.ctl.header = pagefile.Header{
		RootPage:  1,
		PageSize:  uint32(t.conf.PageSize),
		Order:     uint32(t.conf.Order),
		KeySize:   uint32(t.conf.KeySize),
		ValueSize: uint32(t.conf.ValueSize),
		NextPage:  2,
	}
	t.ctl.headerDirty = true
	root := &Node{id: 1, nodeType: NodeLeaf}
	t.cache.MarkDirty(root)
	if err := t.commit(); err != nil {
		return fmt.Errorf("initialize empty tree: %w", err)
	}
	return nil
}

func (t *Tree) readHeader() (pagefile.Header, error) {
	page, err := t.store.ReadPage(0)
	if err != nil {
		return pagefile.Header{}, fmt.Errorf("read header page: %w", err)
	}
	header, err := pagefile.DecodeHeader(page)
	if err != nil {
		return pagefile.Header{}, err
	}
	return header, nil
}

// checkHeader rejects options that contradict the structural parameters an
// existing file was built with. Cache size, checkpoint threshold and
// comparator are runtime choices and may differ between runs.
func checkHeader(h pagefile.Header, conf TreeConf) error {
	if int(h.PageSize) != conf.PageSize {
		return fmt.Errorf("bptree: file has page size %d, options say %d", h.PageSize, conf.PageSize)
	}
	if int(h.Order) != conf.Order {
		return fmt.Errorf("bptree: file has order %d, options say %d", h.Order, conf.Order)
	}
	if int(h.KeySize) != conf.KeySize {
		return fmt.Errorf("bptree: file has key size %d, options say %d", h.KeySize, conf.KeySize)
	}
	if int(h.ValueSize) != conf.ValueSize {
		return fmt.Errorf("bptree: file has value size %d, options say %d", h.ValueSize, conf.ValueSize)
	}
	return nil
}

// loadNode is the cache miss path: read the page and decode it.
func (t *Tree) loadNode(id pagefile.PageID) (*Node, error) {
	page, err := t.store.ReadPage(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(page, id, t.conf)
}

// commit makes every pending change durable: dirty node images are
// appended to the log, the log is committed (the fsync that defines the
// durability point), and the same images plus the header are written
// through to the page file so reads never consult the log.
func (t *Tree) commit() error {
	dirty := t.cache.Dirty()
	if len(dirty) == 0 && !t.ctl.headerDirty {
		return nil
	}

	// Failures before the log fsync leave nothing durable, so the pending
	// mutation is rolled back wholesale. Failures after it are returned
	// as-is: the change is committed and the next open replays it.
	images := make(map[pagefile.PageID][]byte, len(dirty)+1)
	for _, node := range dirty {
		image, err := encodeNode(node, t.conf)
		if err != nil {
			t.rollback()
			return err
		}
		images[node.id] = image
		if err := t.wal.Append(int64(node.id), image); err != nil {
			t.rollback()
			return fmt.Errorf("log page %d: %w", node.id, err)
		}
	}
	if t.ctl.headerDirty {
		image := pagefile.EncodeHeader(t.ctl.header, t.conf.PageSize)
		images[0] = image
		if err := t.wal.Append(0, image); err != nil {
			t.rollback()
			return fmt.Errorf("log header page: %w", err)
		}
	}

	if err := t.wal.Commit(); err != nil {
		t.rollback()
		return fmt.Errorf("commit wal: %w", err)
	}

	for _, node := range dirty {
		if err := t.store.WritePage(node.id, images[node.id]); err != nil {
			return fmt.Errorf("write page %d: %w", node.id, err)
		}
	}
	if t.ctl.headerDirty {
		if err := t.store.WritePage(0, images[0]); err != nil {
			return fmt.Errorf("write header page: %w", err)
		}
	}

	t.cache.DemoteClean()
	t.ctl.headerDirty = false

	if t.checkpointBytes > 0 && t.wal.Size() >= t.checkpointBytes {
		return t.checkpointLocked()
	}
	return nil
}

// rollback abandons everything since the last commit. Nodes are mutated in
// place, so the cache is emptied wholesale and the header re-read from
// disk; subsequent reads decode the last committed state.
func (t *Tree) rollback() {
	t.wal.Rollback()
	t.cache.DropAll()
	if header, err := t.readHeader(); err == nil {
		t.ctl.header = header
	}
	t.ctl.headerDirty = false
}

// checkpointLocked syncs the page file and empties the log. Committed
// images are already in the page file, so after the sync the log is
// redundant history.
func (t *Tree) checkpointLocked() error {
	if err := t.store.Sync(); err != nil {
		return fmt.Errorf("sync page file: %w", err)
	}
	if err := t.wal.Truncate(); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	return nil
}

// Checkpoint forces the page file to disk and truncates the write-ahead
// log, bounding both log size and the next recovery's replay work.
func (t *Tree) Checkpoint() error {
	t.ctl.beginWrite()
	defer t.ctl.endWrite()
	if t.closed {
		return ErrTreeClosed
	}
	return t.checkpointLocked()
}

// Close checkpoints and releases the file handles. Using the tree after
// Close fails with ErrTreeClosed.
func (t *Tree) Close() error {
	t.ctl.beginWrite()
	defer t.ctl.endWrite()
	if t.closed {
		return nil
	}
	t.closed = true

	errCheckpoint := t.checkpointLocked()
	t.cache.Close()
	errWAL := t.wal.Close()
	errStore := t.store.Close()

	if errCheckpoint != nil {
		return errCheckpoint
	}
	if errWAL != nil {
		return fmt.Errorf("close wal: %w", errWAL)
	}
	if errStore != nil {
		return fmt.Errorf("close page file: %w", errStore)
	}
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (t *Tree) Get(key []byte) ([]byte, error) {
	t.ctl.beginRead()
	defer t.ctl.endRead()
	if t.closed {
		return nil, ErrTreeClosed
	}
	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	leaf, _, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	idx := lowerBound(leaf.keys, key, t.conf.Compare)
	if idx >= len(leaf.keys) || t.conf.Compare(leaf.keys[idx], key) != 0 {
		return nil, ErrKeyNotFound
	}
	return t.resolveValue(leaf.vals[idx])
}

// Len counts the stored keys by walking the leaf chain.
func (t *Tree) Len() (int, error) {
	t.ctl.beginRead()
	defer t.ctl.endRead()
	if t.closed {
		return 0, ErrTreeClosed
	}

	leaf, err := t.leftmostLeaf()
	if err != nil {
		return 0, err
	}
	total := 0
	for {
		total += len(leaf.keys)
		if leaf.next == 0 {
			return total, nil
		}
		next, err := t.cache.Get(leaf.next)
		if err != nil {
			return 0, fmt.Errorf("read page %d: %w", leaf.next, err)
		}
		if next.nodeType != NodeLeaf {
			return 0, fmt.Errorf("%w: page %d in leaf chain has type %d", ErrCorruptNode, next.id, next.nodeType)
		}
		leaf = next
	}
}

// Item is one key/value pair for BatchInsert.
type Item struct {
	Key   []byte
	Value []byte
}

// BatchInsert appends pre-sorted items in one durable commit. Keys must be
// strictly ascending and strictly greater than every key already in the
// tree; violations fail with ErrBatchOutOfOrder before anything is
// written. The win over repeated Insert is one log commit and one fsync
// for the whole batch.
func (t *Tree) BatchInsert(items []Item) error {
	t.ctl.beginWrite()
	defer t.ctl.endWrite()
	if t.closed {
		return ErrTreeClosed
	}
	if len(items) == 0 {
		return nil
	}

	for i, item := range items {
		if err := t.checkKey(item.Key); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if i > 0 && t.conf.Compare(items[i-1].Key, item.Key) >= 0 {
			return fmt.Errorf("%w: item %d", ErrBatchOutOfOrder, i)
		}
	}
	max, err := t.maxKey()
	if err != nil {
		return err
	}
	if max != nil && t.conf.Compare(items[0].Key, max) <= 0 {
		return fmt.Errorf("%w: item 0 does not exceed the stored maximum", ErrBatchOutOfOrder)
	}

	for i, item := range items {
		if err := t.insertLocked(item.Key, item.Value); err != nil {
			t.rollback()
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return t.commit()
}

// maxKey returns the largest stored key, or nil for an empty tree.
func (t *Tree) maxKey() ([]byte, error) {
	node, err := t.cache.Get(t.ctl.header.RootPage)
	if err != nil {
		return nil, fmt.Errorf("read root page %d: %w", t.ctl.header.RootPage, err)
	}
	for node.nodeType == NodeInternal {
		child := node.children[len(node.children)-1]
		node, err = t.cache.Get(child)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", child, err)
		}
	}
	if len(node.keys) == 0 {
		return nil, nil
	}
	return node.keys[len(node.keys)-1], nil
}
