// dump_sample runs the seed and inspects every index it produced, writing all
// output to cmd/sample_run_output.txt. Run from repo root: go run ./cmd/dump_sample
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	bplus "TinyRDB/bplustree"
)

const (
	baseDir    = "databases/demp"
	outputFile = "cmd/sample_run_output.txt"
)

func main() {
	root := repoRoot()
	outPath := filepath.Join(root, outputFile)

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Fprintln(f, "========== SEED (create DB demp, tables, index rows, queries) ==========")
	cmd := exec.Command("go", "run", "./cmd/seed")
	cmd.Stdout = f
	cmd.Stderr = f
	cmd.Dir = root
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(f, "seed exited with error: %v\n", err)
	}

	paths, err := filepath.Glob(filepath.Join(root, baseDir, "indexes", "*.idx"))
	if err != nil {
		fmt.Fprintf(f, "list indexes: %v\n", err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".idx")
		fmt.Fprintf(f, "\n========== INSPECT %s.idx ==========\n", name)
		if err := bplus.InspectIndexFileTo(f, path); err != nil {
			fmt.Fprintf(f, "inspect error: %v\n", err)
		}
	}

	fmt.Printf("Output written to %s (%d indexes)\n", outPath, len(paths))
}

func repoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
