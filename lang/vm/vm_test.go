package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cassette/lang/compiler"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/parser"
	"github.com/mna/cassette/lang/primitive"
	"github.com/mna/cassette/lang/vm"
)

// run compiles and executes src as a single-file project (no extra
// modules), returning the value left on top of the stack when it halts -
// the same path internal/maincmd's run command drives (spec.md §6.3).
func run(t *testing.T, src string) (*heap.Heap, heap.Value) {
	t.Helper()

	h := heap.New()
	prims := primitive.Build(primitive.NewOSGateway())
	vmach, err := vm.LoadProject(h, prims, "test.ct", []byte(src), nil)
	require.NoError(t, err)

	vmach.Run()
	require.Nil(t, vmach.Err())
	return h, vmach.Peek()
}

func TestRunArithmeticPrecedence(t *testing.T) {
	_, v := run(t, "1 + 2 * 3\n")
	assert.Equal(t, int32(7), v.AsInt())
}

func TestRunLetAndLookup(t *testing.T) {
	_, v := run(t, "let x = 10\nlet y = 20\nx + y\n")
	assert.Equal(t, int32(30), v.AsInt())
}

func TestRunSetRebinds(t *testing.T) {
	_, v := run(t, "let x = 1\nset x = x + 1\nx\n")
	assert.Equal(t, int32(2), v.AsInt())
}

func TestRunIfElse(t *testing.T) {
	h, v := run(t, "if 1 < 2 do\n\"yes\"\nelse\n\"no\"\nend\n")
	require.True(t, h.IsBinary(v))
	assert.Equal(t, "yes", h.GoString(v))
}

func TestRunLambdaCall(t *testing.T) {
	_, v := run(t, "let add = (a, b) -> a + b\nadd(3, 4)\n")
	assert.Equal(t, int32(7), v.AsInt())
}

func TestRunClosureCapturesEnclosingBinding(t *testing.T) {
	_, v := run(t, "let make = (n) -> (() -> n)\nlet five = make(5)\nfive()\n")
	assert.Equal(t, int32(5), v.AsInt())
}

func TestRunRecursiveDefFactorial(t *testing.T) {
	_, v := run(t, "def fact(n) do\nif n == 0 do\n1\nelse\nn * fact(n - 1)\nend\nend\nfact(5)\n")
	assert.Equal(t, int32(120), v.AsInt())
}

func TestRunImportAcrossModules(t *testing.T) {
	h := heap.New()
	prims := primitive.Build(primitive.NewOSGateway())
	modules := []vm.ModuleSource{
		{Name: "mathutil", Filename: "mathutil.ct", Src: []byte("module double\ndef double(n) do\nn * 2\nend\n")},
	}
	vmach, err := vm.LoadProject(h, prims, "main.ct", []byte("import \"mathutil\" as m\nm.double(21)\n"), modules)
	require.NoError(t, err)

	vmach.Run()
	require.Nil(t, vmach.Err())
	assert.Equal(t, int32(42), vmach.Peek().AsInt())
}

func TestRunDivisionByZeroReportsArithmeticError(t *testing.T) {
	h := heap.New()
	prims := primitive.Build(primitive.NewOSGateway())
	vmach, err := vm.LoadProject(h, prims, "test.ct", []byte("1 / 0\n"), nil)
	require.NoError(t, err)

	vmach.Run()
	require.NotNil(t, vmach.Err())
}

func TestCompileErrorOnUndefinedVariable(t *testing.T) {
	h := heap.New()
	node, err := parser.Parse(h, "test.ct", []byte("undefined_name\n"))
	require.NoError(t, err)
	_, err = compiler.Compile(h, node, primitive.Names(), nil)
	require.Error(t, err)
	var cerr *compiler.CompileError
	require.ErrorAs(t, err, &cerr)
}

func TestRunGCCollectsDuringLongLoop(t *testing.T) {
	h := heap.New()
	prims := primitive.Build(primitive.NewOSGateway())
	// allocates a fresh frame tuple and env pair on every recursive call,
	// giving vm.Run's ShouldCollect check plenty of garbage to find; the
	// actually-interesting assertion is just that the final value still
	// comes out right after however many collections fired along the way.
	src := "def count(n, acc) do\nif n == 0 do\nacc\nelse\ncount(n - 1, acc + 1)\nend\nend\ncount(5000, 0)\n"
	vmach, err := vm.LoadProject(h, prims, "test.ct", []byte(src), nil)
	require.NoError(t, err)

	vmach.Run()
	require.Nil(t, vmach.Err())
	assert.Equal(t, int32(5000), vmach.Peek().AsInt())
}
