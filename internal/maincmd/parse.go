package maincmd

import (
	"context"
	"fmt"
	"io"

	"github.com/mna/mainer"

	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/parser"
	"github.com/mna/cassette/lang/report"
)

// Parse runs the parser over each named file and prints the resulting tree,
// one indented line per node (there is no dedicated lang/ast.Printer in this
// implementation - see DESIGN.md - so the dump is written directly here
// against ast.TagOf/Field/ListItems, the same traversal primitives
// lang/compiler itself walks).
func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	h := heap.New()
	var firstErr error
	for _, filename := range args {
		src, closer, err := readFile(filename)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		chunk, perr := parser.Parse(h, filename, src)
		closer()
		if perr != nil {
			report.Print(stdio.Stderr, filename, src, perr)
			if firstErr == nil {
				firstErr = perr
			}
			continue
		}
		dumpNode(stdio.Stdout, h, chunk, 0)
	}
	return firstErr
}

func dumpNode(w io.Writer, h *heap.Heap, node heap.Value, depth int) {
	indent := func() {
		for i := 0; i < depth; i++ {
			fmt.Fprint(w, "  ")
		}
	}
	if node.IsNil() {
		indent()
		fmt.Fprintln(w, "nil")
		return
	}
	tag, ok := ast.TagOf(h, node)
	if !ok {
		indent()
		fmt.Fprintln(w, describeLeaf(h, node))
		return
	}
	indent()
	fmt.Fprintln(w, tag)
	n := ast.NumFields(h, node)
	for i := 1; i <= n; i++ {
		f := ast.Field(h, node, i)
		if isASTList(h, f) {
			for _, item := range ast.ListItems(h, f) {
				dumpNode(w, h, item, depth+1)
			}
			continue
		}
		if _, ok := ast.TagOf(h, f); ok {
			dumpNode(w, h, f, depth+1)
			continue
		}
		for j := 0; j < depth+1; j++ {
			fmt.Fprint(w, "  ")
		}
		fmt.Fprintln(w, describeLeaf(h, f))
	}
}

// isASTList heuristically tells a list-of-nodes field (built by ast.List)
// apart from an ordinary leaf pair value: an AST list's head is itself a
// tagged node.
func isASTList(h *heap.Heap, v heap.Value) bool {
	if v.Kind() != heap.KPair || v.IsNil() {
		return false
	}
	_, ok := ast.TagOf(h, h.Head(v))
	return ok
}

func describeLeaf(h *heap.Heap, v heap.Value) string {
	switch v.Kind() {
	case heap.KInt:
		return fmt.Sprintf("%d", v.AsInt())
	case heap.KFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case heap.KSymbol:
		if name, ok := h.Syms.Name(v.AsSymbolHash()); ok {
			return name
		}
		return "<symbol>"
	case heap.KPair:
		if v.IsNil() {
			return "nil"
		}
		if h.IsBinary(v) {
			return fmt.Sprintf("%q", h.GoString(v))
		}
		return "<pair>"
	default:
		return "<value>"
	}
}
