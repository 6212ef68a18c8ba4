// Inspect one or more B+ tree index files (.idx).
// Usage: go run ./cmd/inspect_idx <path-to-.idx>...
// Example: go run ./cmd/inspect_idx databases/demp/indexes/students_primary.idx
package main

import (
	"fmt"
	"os"

	bplus "TinyRDB/bplustree"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <index.idx>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s databases/demp/indexes/students_primary.idx\n", os.Args[0])
		os.Exit(1)
	}
	failed := false
	for i, path := range os.Args[1:] {
		if i > 0 {
			fmt.Println()
		}
		if err := bplus.InspectIndexFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
