package parser_test

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/parser"

	"github.com/mna/cassette/internal/filetest"
)

var updateGolden = flag.Bool("test.update-print-golden", false, "update lang/parser/testdata/out golden files")

// TestPrintGolden runs ast.Print over each testdata/in/*.ct file and checks
// the result against the matching testdata/out/*.ct.want golden file,
// exercising the same re-rendering path internal/maincmd's parse command
// could use to show a normalized form of a file (spec.md §8, testable
// property 1: re-parsing Print's output yields a structurally equal tree).
func TestPrintGolden(t *testing.T) {
	dir := "testdata/in"
	for _, fi := range filetest.SourceFiles(t, dir, ".ct") {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(dir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}

			h := heap.New()
			node, err := parser.Parse(h, fi.Name(), src)
			if err != nil {
				t.Fatal(err)
			}
			out := ast.Print(h, node)

			filetest.DiffOutput(t, fi, out, "testdata/out", updateGolden)
		})
	}
}
