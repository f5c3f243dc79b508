// Inspect a tree file: prints the node structure level by level.
// Usage: go run ./cmd/inspect_idx -file data/users.grove
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"GroveDB/bptree"
)

func main() {
	file := flag.String("file", "", "tree file to inspect")
	flag.Parse()

	if *file == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -file <tree file>\n", os.Args[0])
		os.Exit(1)
	}

	tree, err := bptree.Open(*file, bptree.Options{})
	if err != nil {
		log.Fatalf("open tree: %v", err)
	}
	defer tree.Close()

	if err := tree.InspectTo(os.Stdout); err != nil {
		log.Fatalf("inspect: %v", err)
	}

	n, err := tree.Len()
	if err != nil {
		log.Fatalf("len: %v", err)
	}
	fmt.Printf("%d keys total\n", n)
}
