package primitive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/vm"
)

// newTestVM builds a bare VM (no compiled program) solely to give a
// primitive's PrimFn something to Push/Pop/Fail against, the same shape
// Build's callers (lang/vm's APPLY handling) use it for.
func newTestVM() (*heap.Heap, *vm.VM) {
	h := heap.New()
	vmach := vm.New(h, &asm.Chunk{}, nil, nil)
	return h, vmach
}

func TestNamesMatchesBuildOrder(t *testing.T) {
	names := Names()
	prims := Build(NewOSGateway())
	require.Len(t, prims, len(names))
	for i, name := range names {
		assert.Equal(t, name, prims[i].Name)
	}
}

func TestBuildHasNoDuplicateOrMissingRegistration(t *testing.T) {
	// Build panics (via the swiss.Map lookup in the doc comment's own
	// description) if order names something entries() never registers;
	// simply calling it is the regression check.
	assert.NotPanics(t, func() { Build(NewOSGateway()) })
}

func findPrim(t *testing.T, prims []vm.Primitive, name string) vm.PrimFn {
	t.Helper()
	for _, p := range prims {
		if p.Name == name {
			return p.Fn
		}
	}
	t.Fatalf("primitive %q not found", name)
	return nil
}

func TestArithmeticPrimitives(t *testing.T) {
	prims := Build(NewOSGateway())
	_, vmach := newTestVM()

	add := findPrim(t, prims, "+")
	vmach.Push(heap.Int(2))
	vmach.Push(heap.Int(3))
	add(vmach, 2)
	require.Nil(t, vmach.Err())
	assert.Equal(t, int32(5), vmach.Pop().AsInt())

	mul := findPrim(t, prims, "*")
	vmach.Push(heap.Float(1.5))
	vmach.Push(heap.Int(2))
	mul(vmach, 2)
	require.Nil(t, vmach.Err())
	assert.Equal(t, 3.0, vmach.Pop().AsFloat())
}

func TestDivisionByZeroFails(t *testing.T) {
	prims := Build(NewOSGateway())
	_, vmach := newTestVM()

	div := findPrim(t, prims, "/")
	vmach.Push(heap.Int(1))
	vmach.Push(heap.Int(0))
	div(vmach, 2)
	require.NotNil(t, vmach.Err())
}

func TestWrongArityFailsWithArithmeticError(t *testing.T) {
	prims := Build(NewOSGateway())
	_, vmach := newTestVM()

	add := findPrim(t, prims, "+")
	vmach.Push(heap.Int(1))
	add(vmach, 1)
	require.NotNil(t, vmach.Err())
}

func TestHeadTailLen(t *testing.T) {
	prims := Build(NewOSGateway())
	h, vmach := newTestVM()

	list := h.AllocPair(heap.Int(1), h.AllocPair(heap.Int(2), heap.Nil))

	head := findPrim(t, prims, "head")
	vmach.Push(list)
	head(vmach, 1)
	require.Nil(t, vmach.Err())
	assert.Equal(t, int32(1), vmach.Pop().AsInt())

	tail := findPrim(t, prims, "tail")
	vmach.Push(list)
	tail(vmach, 1)
	require.Nil(t, vmach.Err())
	rest := vmach.Pop()
	assert.Equal(t, int32(2), h.Head(rest).AsInt())

	length := findPrim(t, prims, "#")
	vmach.Push(list)
	length(vmach, 1)
	require.Nil(t, vmach.Err())
	assert.Equal(t, int32(2), vmach.Pop().AsInt())
}

func TestTypePredicates(t *testing.T) {
	prims := Build(NewOSGateway())
	_, vmach := newTestVM()

	isInt := findPrim(t, prims, "integer?")
	vmach.Push(heap.Int(1))
	isInt(vmach, 1)
	require.Nil(t, vmach.Err())
	assert.True(t, vmach.Pop().IsTruthy())

	vmach.Push(heap.Float(1.0))
	isInt(vmach, 1)
	require.Nil(t, vmach.Err())
	assert.False(t, vmach.Pop().IsTruthy())
}
