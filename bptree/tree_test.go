package bptree

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func smallOpts() Options {
	return Options{
		PageSize:  256,
		Order:     4,
		KeySize:   8,
		ValueSize: 16,
		CacheSize: 32,
	}
}

func openSmall(t *testing.T, path string) *Tree {
	t.Helper()
	tree, err := Open(path, smallOpts())
	if err != nil {
		t.Fatalf("open tree: %v", err)
	}
	return tree
}

func key(i int) []byte   { return []byte(fmt.Sprintf("k%05d", i)) }
func value(i int) []byte { return []byte(fmt.Sprintf("v%05d", i)) }

// TestInsertGet tests basic storage and retrieval.
func TestInsertGet(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	if err := tree.Insert([]byte("hello"), []byte("world")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := tree.Get([]byte("hello"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("world")) {
		t.Errorf("get = %q, want %q", got, "world")
	}

	if _, err := tree.Get([]byte("absent")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("get absent: got %v, want ErrKeyNotFound", err)
	}
}

// TestInsertOverwrites tests that a duplicate key replaces the value.
func TestInsertOverwrites(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	if err := tree.Insert([]byte("k"), []byte("first")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.Insert([]byte("k"), []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := tree.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("get = %q, want %q", got, "second")
	}
	if n, _ := tree.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

// TestDeleteAbsentIsNoop tests that deleting a missing key succeeds.
func TestDeleteAbsentIsNoop(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	if err := tree.Delete([]byte("nothing")); err != nil {
		t.Errorf("delete absent: %v", err)
	}
}

// TestGrowthAndShrink drives the tree through repeated splits and merges
// at order 4 and verifies every key on the way up and down.
func TestGrowthAndShrink(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	const n = 300
	for i := 0; i < n; i++ {
		if err := tree.Insert(key(i), value(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		got, err := tree.Get(key(i))
		if err != nil {
			t.Fatalf("get %d after growth: %v", i, err)
		}
		if !bytes.Equal(got, value(i)) {
			t.Fatalf("get %d = %q, want %q", i, got, value(i))
		}
	}
	if count, err := tree.Len(); err != nil || count != n {
		t.Fatalf("Len = %d (%v), want %d", count, err, n)
	}

	// Remove the even keys, triggering borrows and merges.
	for i := 0; i < n; i += 2 {
		if err := tree.Delete(key(i)); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		got, err := tree.Get(key(i))
		if i%2 == 0 {
			if !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("get deleted %d: got %v, want ErrKeyNotFound", i, err)
			}
			continue
		}
		if err != nil || !bytes.Equal(got, value(i)) {
			t.Fatalf("get survivor %d = %q (%v), want %q", i, got, err, value(i))
		}
	}

	// Remove the rest, draining the tree back to one empty leaf.
	for i := 1; i < n; i += 2 {
		if err := tree.Delete(key(i)); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	if count, err := tree.Len(); err != nil || count != 0 {
		t.Fatalf("Len after drain = %d (%v), want 0", count, err)
	}

	// The drained tree is still usable.
	if err := tree.Insert([]byte("again"), []byte("yes")); err != nil {
		t.Fatalf("insert after drain: %v", err)
	}
}

// TestReopenKeepsData tests durability across close and reopen.
func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	tree := openSmall(t, path)
	const n = 100
	for i := 0; i < n; i++ {
		if err := tree.Insert(key(i), value(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Zero options: the structural parameters come from the file header.
	tree, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tree.Close()
	for i := 0; i < n; i++ {
		got, err := tree.Get(key(i))
		if err != nil || !bytes.Equal(got, value(i)) {
			t.Fatalf("get %d after reopen = %q (%v)", i, got, err)
		}
	}
}

// TestOpenRejectsMismatchedOptions tests that explicit structural options
// must match an existing file.
func TestOpenRejectsMismatchedOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	tree := openSmall(t, path)
	if err := tree.Insert([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	opts := smallOpts()
	opts.Order = 8
	if _, err := Open(path, opts); err == nil {
		t.Errorf("open with wrong order succeeded")
	}
}

// TestBatchInsert tests the single-commit append path and its ordering
// checks.
func TestBatchInsert(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	items := make([]Item, 50)
	for i := range items {
		items[i] = Item{Key: key(i), Value: value(i)}
	}
	if err := tree.BatchInsert(items); err != nil {
		t.Fatalf("batch insert: %v", err)
	}
	if n, _ := tree.Len(); n != 50 {
		t.Errorf("Len = %d, want 50", n)
	}
	got, err := tree.Get(key(25))
	if err != nil || !bytes.Equal(got, value(25)) {
		t.Errorf("get batched key = %q (%v)", got, err)
	}

	// Unsorted pairs are rejected before anything is written.
	bad := []Item{
		{Key: key(200), Value: value(200)},
		{Key: key(199), Value: value(199)},
	}
	if err := tree.BatchInsert(bad); !errors.Is(err, ErrBatchOutOfOrder) {
		t.Errorf("unsorted batch: got %v, want ErrBatchOutOfOrder", err)
	}
	if _, err := tree.Get(key(200)); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("rejected batch leaked a key")
	}

	// A batch starting at or below the stored maximum is rejected too.
	overlap := []Item{{Key: key(10), Value: value(10)}}
	if err := tree.BatchInsert(overlap); !errors.Is(err, ErrBatchOutOfOrder) {
		t.Errorf("overlapping batch: got %v, want ErrBatchOutOfOrder", err)
	}

	// A second well-formed batch continues past the first.
	more := []Item{
		{Key: key(60), Value: value(60)},
		{Key: key(61), Value: value(61)},
	}
	if err := tree.BatchInsert(more); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if n, _ := tree.Len(); n != 52 {
		t.Errorf("Len = %d, want 52", n)
	}
}

// TestClosedTreeFails tests that every operation reports ErrTreeClosed.
func TestClosedTreeFails(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	if err := tree.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tree.Close(); err != nil {
		t.Errorf("double close: %v", err)
	}

	if _, err := tree.Get([]byte("k")); !errors.Is(err, ErrTreeClosed) {
		t.Errorf("get: got %v", err)
	}
	if err := tree.Insert([]byte("k"), []byte("v")); !errors.Is(err, ErrTreeClosed) {
		t.Errorf("insert: got %v", err)
	}
	if err := tree.Delete([]byte("k")); !errors.Is(err, ErrTreeClosed) {
		t.Errorf("delete: got %v", err)
	}
	if err := tree.Checkpoint(); !errors.Is(err, ErrTreeClosed) {
		t.Errorf("checkpoint: got %v", err)
	}
	if err := tree.Scan(nil, nil, func(_, _ []byte) bool { return true }); !errors.Is(err, ErrTreeClosed) {
		t.Errorf("scan: got %v", err)
	}
}

// TestKeyBounds tests rejection of empty and oversized keys.
func TestKeyBounds(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	if err := tree.Insert(nil, []byte("v")); !errors.Is(err, ErrKeyTooLarge) {
		t.Errorf("empty key: got %v", err)
	}
	long := bytes.Repeat([]byte("x"), 9) // KeySize is 8
	if err := tree.Insert(long, []byte("v")); !errors.Is(err, ErrKeyTooLarge) {
		t.Errorf("long key: got %v", err)
	}
	if _, err := tree.Get(long); !errors.Is(err, ErrKeyTooLarge) {
		t.Errorf("get long key: got %v", err)
	}
}

// TestOptionsValidation tests rejection of impossible configurations.
func TestOptionsValidation(t *testing.T) {
	dir := t.TempDir()

	opts := smallOpts()
	opts.Order = 2
	if _, err := Open(filepath.Join(dir, "a.db"), opts); err == nil {
		t.Errorf("order 2 accepted")
	}

	opts = smallOpts()
	opts.PageSize = 64 // cannot hold a full order-4 node
	if _, err := Open(filepath.Join(dir, "b.db"), opts); err == nil {
		t.Errorf("tiny page size accepted")
	}
}
