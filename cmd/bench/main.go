// Latency comparison: the GroveDB tree against Pebble on the same
// insert / point-read / range-scan workload. Results go to a CSV.
// Run: go run ./cmd/bench -n 100000 -out results.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"

	"GroveDB/bptree"
	"GroveDB/serializer"
)

type engine interface {
	insert(key int64, value []byte) error
	get(key int64) ([]byte, error)
	scan(start, end int64) (int, error)
	close() error
}

func main() {
	n := flag.Int("n", 100000, "keys per engine")
	scans := flag.Int("scans", 100, "range scans per engine")
	out := flag.String("out", "bench_results.csv", "CSV output path")
	dir := flag.String("dir", "", "work directory (default: a temp dir)")
	flag.Parse()

	workDir := *dir
	if workDir == "" {
		var err error
		workDir, err = os.MkdirTemp("", "grovebench")
		if err != nil {
			log.Fatalf("temp dir: %v", err)
		}
		defer os.RemoveAll(workDir)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Engine", "Operation", "Ops", "AvgLatencyNs"})

	grove, err := openGrove(filepath.Join(workDir, "grove.db"))
	if err != nil {
		log.Fatalf("open grove: %v", err)
	}
	runSuite(w, "GroveDB", grove, *n, *scans)

	lsm, err := openPebble(filepath.Join(workDir, "pebble"))
	if err != nil {
		log.Fatalf("open pebble: %v", err)
	}
	runSuite(w, "Pebble", lsm, *n, *scans)

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("write csv: %v", err)
	}
	fmt.Println("Benchmark complete:", *out)
}

func runSuite(w *csv.Writer, name string, e engine, n, scans int) {
	fmt.Printf("Testing %s (n=%d)\n", name, n)
	value := []byte("benchmark-value-of-realistic-size-for-a-row")

	start := time.Now()
	for k := 0; k < n; k++ {
		if err := e.insert(int64(k), value); err != nil {
			log.Fatalf("%s insert %d: %v", name, k, err)
		}
	}
	record(w, name, "Insert", n, time.Since(start))

	rng := rand.New(rand.NewSource(42))
	start = time.Now()
	for i := 0; i < n; i++ {
		if _, err := e.get(rng.Int63n(int64(n))); err != nil {
			log.Fatalf("%s get: %v", name, err)
		}
	}
	record(w, name, "PointRead", n, time.Since(start))

	start = time.Now()
	width := int64(n / 100)
	if width < 1 {
		width = 1
	}
	for i := 0; i < scans; i++ {
		lo := rng.Int63n(int64(n))
		if _, err := e.scan(lo, lo+width); err != nil {
			log.Fatalf("%s scan: %v", name, err)
		}
	}
	record(w, name, "RangeScan", scans, time.Since(start))

	if err := e.close(); err != nil {
		log.Fatalf("%s close: %v", name, err)
	}
}

func record(w *csv.Writer, name, op string, ops int, elapsed time.Duration) {
	w.Write([]string{
		name,
		op,
		strconv.Itoa(ops),
		strconv.FormatInt(elapsed.Nanoseconds()/int64(ops), 10),
	})
}

// ─── GroveDB ──────────────────────────────────────────────────────────────────

type groveEngine struct {
	tree *bptree.Tree
	keys serializer.Int64
}

func openGrove(path string) (*groveEngine, error) {
	tree, err := bptree.Open(path, bptree.Options{
		Order:           40,
		ValueSize:       64,
		CheckpointBytes: 64 << 20,
	})
	if err != nil {
		return nil, err
	}
	return &groveEngine{tree: tree}, nil
}

func (g *groveEngine) insert(key int64, value []byte) error {
	k, err := g.keys.Serialize(key)
	if err != nil {
		return err
	}
	return g.tree.Insert(k, value)
}

func (g *groveEngine) get(key int64) ([]byte, error) {
	k, err := g.keys.Serialize(key)
	if err != nil {
		return nil, err
	}
	return g.tree.Get(k)
}

func (g *groveEngine) scan(start, end int64) (int, error) {
	lo, err := g.keys.Serialize(start)
	if err != nil {
		return 0, err
	}
	hi, err := g.keys.Serialize(end)
	if err != nil {
		return 0, err
	}
	count := 0
	err = g.tree.Scan(lo, hi, func(_, _ []byte) bool {
		count++
		return true
	})
	return count, err
}

func (g *groveEngine) close() error { return g.tree.Close() }

// ─── Pebble ───────────────────────────────────────────────────────────────────

type pebbleEngine struct {
	db   *pebble.DB
	keys serializer.Int64
}

func openPebble(dir string) (*pebbleEngine, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &pebbleEngine{db: db}, nil
}

func (p *pebbleEngine) insert(key int64, value []byte) error {
	k, err := p.keys.Serialize(key)
	if err != nil {
		return err
	}
	return p.db.Set(k, value, pebble.Sync)
}

func (p *pebbleEngine) get(key int64) ([]byte, error) {
	k, err := p.keys.Serialize(key)
	if err != nil {
		return nil, err
	}
	val, closer, err := p.db.Get(k)
	if err != nil {
		return nil, err
	}
	result := append([]byte(nil), val...)
	closer.Close()
	return result, nil
}

func (p *pebbleEngine) scan(start, end int64) (int, error) {
	lo, err := p.keys.Serialize(start)
	if err != nil {
		return 0, err
	}
	hi, err := p.keys.Serialize(end + 1)
	if err != nil {
		return 0, err
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	err = iter.Close()
	return count, err
}

func (p *pebbleEngine) close() error { return p.db.Close() }
