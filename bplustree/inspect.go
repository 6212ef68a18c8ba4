// Package bplus: index file inspection for debugging.
// Use InspectIndexFile(path) to print a human-readable dump of an index file (.idx).

package bplus

import (
	"fmt"
	"io"
	"os"

	"TinyRDB/types"

	"github.com/dustin/go-humanize"
)

// InspectIndexFile opens an index file and prints its structure to stdout.
func InspectIndexFile(indexPath string) error {
	return InspectIndexFileTo(os.Stdout, indexPath)
}

// InspectIndexFileTo writes a human-readable dump of the index file to w:
// the header, every level of nodes (for leaves key -> row pointer), the free
// list and the result of the invariant check.
func InspectIndexFileTo(w io.Writer, indexPath string) error {
	tree, err := OpenFile(indexPath, nil, Options{})
	if err != nil {
		return err
	}
	defer tree.Close()

	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }
	pln := func(s string) { fmt.Fprintln(w, s) }

	store := tree.Store()
	size := int64(0)
	if dp, ok := store.Pager().(*OnDiskPager); ok {
		size = dp.FileSize()
	}
	p("Index file: %s (%s)\n", indexPath, humanize.Bytes(uint64(size)))
	p("  key structure = %v, degree = %d, page size = %s\n",
		tree.KeyStructure(), tree.Degree(), humanize.Bytes(uint64(store.PageSize())))
	p("  root page = %d, pages = %s\n", tree.Root(), humanize.Comma(int64(store.Pager().PageCount())))

	pln("\n  Nodes (BFS):")
	pln("  ---")
	lastDepth := -1
	err = tree.Walk(func(n *Node, depth int) error {
		if depth != lastDepth {
			if lastDepth >= 0 {
				pln("  ---")
			}
			p("  Level %d:\n", depth)
			lastDepth = depth
		}
		if !n.IsLeaf() {
			p("    [page %d] INTERNAL keys=%v children=%v\n", n.Addr(), n.Keys(), n.Pointers())
			return nil
		}
		next := "-"
		if n.Next() != types.NullPointer {
			next = fmt.Sprintf("%d", n.Next())
		}
		p("    [page %d] LEAF numKeys=%d next=%s\n", n.Addr(), n.KeyCount(), next)
		for j, k := range n.Keys() {
			p("      %v -> %d\n", k, n.Pointer(j))
		}
		return nil
	})
	if err != nil {
		return err
	}
	pln("  ---")

	free, err := tree.FreePages()
	if err != nil {
		return err
	}
	p("  Free list (%d pages): %v\n", len(free), free)

	if err := tree.Check(); err != nil {
		p("  Check: FAILED: %v\n", err)
	} else {
		pln("  Check: ok")
	}
	return nil
}
