package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/heap"
)

func mustParse(t *testing.T, src string) (*heap.Heap, heap.Value) {
	t.Helper()
	h := heap.New()
	node, err := Parse(h, "test.ct", []byte(src))
	require.NoError(t, err)
	return h, node
}

func TestParseLiterals(t *testing.T) {
	h, chunk := mustParse(t, "1\n1.5\n\"hi\"\n:sym\ntrue\nfalse\nnil\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 7)
	for _, s := range stmts {
		tag, ok := ast.TagOf(h, s)
		require.True(t, ok)
		assert.Equal(t, ast.TagExprStmt, tag)
	}
}

func TestParseLetAndSet(t *testing.T) {
	h, chunk := mustParse(t, "let x = 1\nset x = 2\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 2)

	tag, _ := ast.TagOf(h, stmts[0])
	assert.Equal(t, ast.TagLet, tag)
	tag, _ = ast.TagOf(h, stmts[1])
	assert.Equal(t, ast.TagSet, tag)
}

func TestParseBinaryPrecedence(t *testing.T) {
	h, chunk := mustParse(t, "1 + 2 * 3\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 1)
	expr := ast.Field(h, stmts[0], 1)
	tag, _ := ast.TagOf(h, expr)
	require.Equal(t, ast.TagBinary, tag)
	assert.Equal(t, "+", h.Syms.MustName(ast.Field(h, expr, 1).AsSymbolHash()))

	right := ast.Field(h, expr, 3)
	rtag, _ := ast.TagOf(h, right)
	assert.Equal(t, ast.TagBinary, rtag)
	assert.Equal(t, "*", h.Syms.MustName(ast.Field(h, right, 1).AsSymbolHash()))
}

func TestParseIfElse(t *testing.T) {
	h, chunk := mustParse(t, "if x do\n1\nelse\n2\nend\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 1)
	ifExpr := ast.Field(h, stmts[0], 1)
	tag, _ := ast.TagOf(h, ifExpr)
	require.Equal(t, ast.TagIf, tag)
	assert.False(t, ast.Field(h, ifExpr, 3).IsNil())
}

func TestParseLambdaAndCall(t *testing.T) {
	h, chunk := mustParse(t, "let f = (a, b) -> a + b\nf 1 2\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 2)

	letStmt := stmts[0]
	lam := ast.Field(h, letStmt, 2)
	tag, _ := ast.TagOf(h, lam)
	require.Equal(t, ast.TagLambda, tag)
	params := ast.ListItems(h, ast.Field(h, lam, 1))
	assert.Len(t, params, 2)

	callStmt := ast.Field(h, stmts[1], 1)
	tag, _ = ast.TagOf(h, callStmt)
	require.Equal(t, ast.TagCall, tag)
	args := ast.ListItems(h, ast.Field(h, callStmt, 2))
	assert.Len(t, args, 2)
}

func TestParseCollections(t *testing.T) {
	h, chunk := mustParse(t, "[1, 2, 3]\n#[1, 2]\n{1: 2, 3: 4}\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 3)

	listTag, _ := ast.TagOf(h, ast.Field(h, stmts[0], 1))
	assert.Equal(t, ast.TagList, listTag)
	tupTag, _ := ast.TagOf(h, ast.Field(h, stmts[1], 1))
	assert.Equal(t, ast.TagTupleLit, tupTag)
	mapTag, _ := ast.TagOf(h, ast.Field(h, stmts[2], 1))
	assert.Equal(t, ast.TagMapLit, mapTag)
}

func TestParseDefKeepsDefNode(t *testing.T) {
	h, chunk := mustParse(t, "def add(a, b) do\na + b\nend\n")
	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	require.Len(t, stmts, 1)
	tag, _ := ast.TagOf(h, stmts[0])
	assert.Equal(t, ast.TagDef, tag)
}

func TestParsePartialParseSignalsUnterminatedBlock(t *testing.T) {
	h := heap.New()
	_, err := Parse(h, "test.ct", []byte("if x do\n1\n"))
	require.Error(t, err)
	var pp *PartialParse
	assert.ErrorAs(t, err, &pp)
}

func TestPrintRoundTrip(t *testing.T) {
	h, chunk := mustParse(t, "1 + 2\n")
	out := ast.Print(h, chunk)
	h2, chunk2 := mustParse(t, out)
	assert.True(t, structurallyEqualExpr(h, chunk, h2, chunk2))
}

// structurallyEqualExpr compares the printed text of two (possibly different
// heap) chunks, since Print is deterministic given the same AST shape.
func structurallyEqualExpr(h *heap.Heap, a heap.Value, h2 *heap.Heap, b heap.Value) bool {
	return ast.Print(h, a) == ast.Print(h2, b)
}
