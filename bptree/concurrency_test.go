package bptree

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

// TestConcurrentReadersAndWriter runs point reads and range scans against
// a stream of inserts and deletes. Every value a reader observes must be
// the complete value for its key; a torn or partial node would fail the
// equality check.
func TestConcurrentReadersAndWriter(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	const preload = 200
	for i := 0; i < preload; i++ {
		if err := tree.Insert(key(i), value(i)); err != nil {
			t.Fatalf("preload %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	fail := make(chan error, 16)

	report := func(err error) {
		select {
		case fail <- err:
		default:
		}
	}

	// Point readers over the stable preloaded range.
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			i := seed
			for {
				select {
				case <-stop:
					return
				default:
				}
				i = (i + 7) % preload
				got, err := tree.Get(key(i))
				if err != nil {
					if !errors.Is(err, ErrKeyNotFound) {
						report(fmt.Errorf("get %d: %w", i, err))
						return
					}
					continue
				}
				if !bytes.Equal(got, value(i)) {
					report(fmt.Errorf("get %d returned %q", i, got))
					return
				}
			}
		}(r)
	}

	// A scanning reader checking order within every pass.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			var prev []byte
			err := tree.Scan(nil, nil, func(k, _ []byte) bool {
				if prev != nil && bytes.Compare(prev, k) >= 0 {
					report(fmt.Errorf("scan keys out of order: %q then %q", prev, k))
					return false
				}
				prev = append(prev[:0], k...)
				return true
			})
			if err != nil {
				report(fmt.Errorf("scan: %w", err))
				return
			}
		}
	}()

	// The writer churns a disjoint key range so reader expectations stay
	// valid.
	for i := preload; i < preload+150; i++ {
		if err := tree.Insert(key(i), value(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if i%3 == 0 {
			if err := tree.Delete(key(i)); err != nil {
				t.Fatalf("delete %d: %v", i, err)
			}
		}
	}

	close(stop)
	wg.Wait()
	select {
	case err := <-fail:
		t.Fatal(err)
	default:
	}

	// Final state: preload intact, churned range holds the survivors.
	for i := 0; i < preload; i++ {
		got, err := tree.Get(key(i))
		if err != nil || !bytes.Equal(got, value(i)) {
			t.Fatalf("get %d after churn = %q (%v)", i, got, err)
		}
	}
	for i := preload; i < preload+150; i++ {
		_, err := tree.Get(key(i))
		if i%3 == 0 {
			if !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("deleted key %d still present (%v)", i, err)
			}
		} else if err != nil {
			t.Fatalf("get churned %d: %v", i, err)
		}
	}
}

// TestConcurrentWriters serializes competing writers through the tree's
// own locking and verifies nothing is lost.
func TestConcurrentWriters(t *testing.T) {
	tree := openSmall(t, filepath.Join(t.TempDir(), "t.db"))
	defer tree.Close()

	const perWriter = 50
	var wg sync.WaitGroup
	fail := make(chan error, 4)
	for wtr := 0; wtr < 4; wtr++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				k := key(base*1000 + i)
				if err := tree.Insert(k, value(base*1000+i)); err != nil {
					select {
					case fail <- err:
					default:
					}
					return
				}
			}
		}(wtr)
	}
	wg.Wait()
	select {
	case err := <-fail:
		t.Fatal(err)
	default:
	}

	n, err := tree.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 4*perWriter {
		t.Errorf("Len = %d, want %d", n, 4*perWriter)
	}
}
