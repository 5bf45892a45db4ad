package asm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/compiler"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/parser"
	"github.com/mna/cassette/lang/primitive"
)

// compileSrc runs the full front end (parse, compile, assemble) over src
// and returns the resulting chunk, the same pipeline internal/maincmd's
// compile command drives.
func compileSrc(t *testing.T, src string) (*heap.Heap, *asm.Chunk) {
	t.Helper()

	h := heap.New()
	node, err := parser.Parse(h, "test.ct", []byte(src))
	require.NoError(t, err)

	seq, err := compiler.Compile(h, node, primitive.Names(), nil)
	require.NoError(t, err)

	chunk, err := compiler.Assemble(h, seq)
	require.NoError(t, err)
	return h, chunk
}

func TestDisassembleIntLiteral(t *testing.T) {
	h, chunk := compileSrc(t, "1\n")

	var sb strings.Builder
	require.NoError(t, asm.Disassemble(&sb, h, chunk))
	out := sb.String()

	// a bare int literal compiles to pushing it (int or the const pool
	// form) followed by return, per LinkReturn (spec.md §6.3).
	require.True(t, strings.Contains(out, "int") || strings.Contains(out, "const"), "output:\n%s", out)
	require.Contains(t, out, "return")
}

func TestDisassembleArithmetic(t *testing.T) {
	h, chunk := compileSrc(t, "1 + 2 * 3\n")

	var sb strings.Builder
	require.NoError(t, asm.Disassemble(&sb, h, chunk))
	out := sb.String()

	// precedence means the multiplication's mul is emitted before the
	// addition's add; both must appear exactly once.
	require.Equal(t, 1, strings.Count(out, "mul"))
	require.Equal(t, 1, strings.Count(out, "add"))
	mulAt := strings.Index(out, "mul")
	addAt := strings.Index(out, "add")
	require.Less(t, mulAt, addAt, "mul must be emitted (and so disassembled) before add:\n%s", out)
}

func TestDisassembleLetBinding(t *testing.T) {
	h, chunk := compileSrc(t, "let x = 1\nx\n")

	var sb strings.Builder
	require.NoError(t, asm.Disassemble(&sb, h, chunk))
	out := sb.String()

	// a top-level let opens a frame (extend) and the trailing reference to x
	// reads it back with lookup.
	require.Contains(t, out, "extend")
	require.Contains(t, out, "lookup")
}

func TestDisassembleListsOneInstructionPerLine(t *testing.T) {
	h, chunk := compileSrc(t, "1\n")

	var sb strings.Builder
	require.NoError(t, asm.Disassemble(&sb, h, chunk))
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")

	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.NotEmpty(t, strings.TrimSpace(l))
	}
}
