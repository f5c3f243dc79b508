// Seed program: fills a tree file with fake user records.
// Run: go run ./cmd/seed -file data/users.grove -n 5000
// Then inspect: go run ./cmd/inspect_idx -file data/users.grove
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-faker/faker/v4"

	"GroveDB/bptree"
)

func main() {
	file := flag.String("file", "data/users.grove", "tree file to create or extend")
	n := flag.Int("n", 1000, "number of records to insert")
	batch := flag.Int("batch", 500, "records per durable commit")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*file), 0755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	tree, err := bptree.Open(*file, bptree.Options{})
	if err != nil {
		log.Fatalf("open tree: %v", err)
	}
	defer tree.Close()

	start, err := tree.Len()
	if err != nil {
		log.Fatalf("len: %v", err)
	}

	// Sequential keys so whole batches go through the single-commit path.
	// Values mix short and long records to exercise overflow chains.
	items := make([]bptree.Item, 0, *batch)
	flush := func() {
		if len(items) == 0 {
			return
		}
		if err := tree.BatchInsert(items); err != nil {
			log.Fatalf("batch insert: %v", err)
		}
		items = items[:0]
	}
	for i := 0; i < *n; i++ {
		key := fmt.Sprintf("user:%010d", start+i)
		value := fmt.Sprintf("%s <%s> %s", faker.Name(), faker.Email(), faker.Sentence())
		items = append(items, bptree.Item{Key: []byte(key), Value: []byte(value)})
		if len(items) == *batch {
			flush()
		}
	}
	flush()

	total, err := tree.Len()
	if err != nil {
		log.Fatalf("len: %v", err)
	}
	fmt.Printf("Seeded %d records, %d total in %s\n", *n, total, *file)
}
