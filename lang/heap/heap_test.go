package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairAllocation(t *testing.T) {
	h := New()
	p := h.AllocPair(Int(1), Int(2))
	assert.Equal(t, Int(1), h.Head(p))
	assert.Equal(t, Int(2), h.Tail(p))
	assert.True(t, Nil.IsNil())
	assert.False(t, p.IsNil())
}

func TestTupleAllocation(t *testing.T) {
	h := New()
	tup := h.AllocTuple(3)
	require.Equal(t, 3, h.TupleLen(tup))
	for i := 0; i < 3; i++ {
		assert.True(t, h.TupleGet(tup, i).IsNil())
	}
	h.TupleSet(tup, 1, Float(3.5))
	assert.Equal(t, Float(3.5), h.TupleGet(tup, 1))
	assert.True(t, h.TupleGet(tup, 0).IsNil())
}

func TestZeroLengthTupleReservesOneSlot(t *testing.T) {
	h := New()
	before := h.Len()
	tup := h.AllocTuple(0)
	assert.Equal(t, 0, h.TupleLen(tup))
	// header cell + one reserved (unused) slot cell
	assert.Equal(t, before+2, h.Len())
}

func TestBinaryRoundTrip(t *testing.T) {
	h := New()
	b := h.NewString("hello, cassette")
	assert.Equal(t, len("hello, cassette"), h.BinaryLen(b))
	assert.Equal(t, "hello, cassette", h.GoString(b))
	assert.Equal(t, byte('h'), h.BinaryByte(b, 0))
	assert.Equal(t, byte('e'), h.BinaryByte(b, 1))
}

func TestEqualStructural(t *testing.T) {
	h := New()
	a := h.AllocPair(Int(1), h.AllocPair(Int(2), Nil))
	b := h.AllocPair(Int(1), h.AllocPair(Int(2), Nil))
	assert.True(t, h.Equal(a, b))
	assert.False(t, h.Equal(a, h.AllocPair(Int(1), Nil)))

	s1 := h.NewString("abc")
	s2 := h.NewString("abc")
	assert.True(t, h.Equal(s1, s2))
	assert.False(t, h.Equal(s1, h.NewString("abd")))

	assert.False(t, h.Equal(Int(1), Float(1)))
}

func TestMapPutGetDel(t *testing.T) {
	h := New()
	m := h.NewMap()
	assert.Equal(t, 0, h.MapLen(m))

	keys := []Value{}
	for i := 0; i < 64; i++ {
		k := Int(int32(i))
		keys = append(keys, k)
		m = h.MapPut(m, k, Int(int32(i*i)))
	}
	require.Equal(t, 64, h.MapLen(m))

	for i := 0; i < 64; i++ {
		v, ok := h.MapGet(m, Int(int32(i)))
		require.True(t, ok)
		assert.Equal(t, Int(int32(i*i)), v)
	}

	_, ok := h.MapGet(m, Int(1000))
	assert.False(t, ok)

	// overwrite an existing key
	m2 := h.MapPut(m, Int(5), Int(-1))
	v, ok := h.MapGet(m2, Int(5))
	require.True(t, ok)
	assert.Equal(t, Int(-1), v)
	// original map is untouched (persistence)
	v, ok = h.MapGet(m, Int(5))
	require.True(t, ok)
	assert.Equal(t, Int(25), v)

	m3 := h.MapDel(m, Int(5))
	assert.Equal(t, 63, h.MapLen(m3))
	_, ok = h.MapGet(m3, Int(5))
	assert.False(t, ok)

	// deleting an absent key returns the same map value unchanged
	m4 := h.MapDel(m3, Int(999))
	assert.Equal(t, m3, m4)
}

func TestMapStringKeys(t *testing.T) {
	h := New()
	m := h.NewMap()
	m = h.MapPut(m, h.NewString("name"), h.NewString("cassette"))
	m = h.MapPut(m, h.NewString("version"), Int(1))

	v, ok := h.MapGet(m, h.NewString("name"))
	require.True(t, ok)
	assert.Equal(t, "cassette", h.GoString(v))

	v, ok = h.MapGet(m, h.NewString("version"))
	require.True(t, ok)
	assert.Equal(t, Int(1), v)
}

func TestMapEqual(t *testing.T) {
	h := New()
	a := h.MapPut(h.MapPut(h.NewMap(), Int(1), Int(2)), Int(3), Int(4))
	b := h.MapPut(h.MapPut(h.NewMap(), Int(3), Int(4)), Int(1), Int(2))
	assert.True(t, h.Equal(a, b))

	c := h.MapPut(a, Int(5), Int(6))
	assert.False(t, h.Equal(a, c))
}

func TestSymbolInternIdempotentAndName(t *testing.T) {
	h := New()
	a, err := h.Syms.Intern("foo")
	require.NoError(t, err)
	b, err := h.Syms.Intern("foo")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	name, ok := h.Syms.Name(a.AsSymbolHash())
	require.True(t, ok)
	assert.Equal(t, "foo", name)
}

func TestTruthiness(t *testing.T) {
	assert.False(t, Nil.IsTruthy())
	assert.False(t, False.IsTruthy())
	assert.True(t, True.IsTruthy())
	assert.True(t, Int(0).IsTruthy())
	assert.True(t, Float(0).IsTruthy())
}

func TestGCPreservesReachableGraph(t *testing.T) {
	h := New()
	list := Nil
	for i := 9; i >= 0; i-- {
		list = h.AllocPair(Int(int32(i)), list)
	}
	m := h.NewMap()
	for i := 0; i < 20; i++ {
		m = h.MapPut(m, Int(int32(i)), h.NewString("v"))
	}
	bin := h.NewString("keep me across collection")
	tup := h.AllocTuple(2)
	h.TupleSet(tup, 0, list)
	h.TupleSet(tup, 1, m)

	roots := []Value{list, m, bin, tup}
	remapped := h.Collect(roots)
	require.Len(t, remapped, len(roots))

	newList, newMap, newBin, newTup := remapped[0], remapped[1], remapped[2], remapped[3]

	// walk the relocated list and check every element survived in order
	cur := newList
	for i := 0; i < 10; i++ {
		require.False(t, cur.IsNil())
		assert.Equal(t, Int(int32(i)), h.Head(cur))
		cur = h.Tail(cur)
	}
	assert.True(t, cur.IsNil())

	assert.Equal(t, 20, h.MapLen(newMap))
	for i := 0; i < 20; i++ {
		v, ok := h.MapGet(newMap, Int(int32(i)))
		require.True(t, ok)
		assert.Equal(t, "v", h.GoString(v))
	}

	assert.Equal(t, "keep me across collection", h.GoString(newBin))

	assert.True(t, h.Equal(h.TupleGet(newTup, 0), newList))
	assert.True(t, h.Equal(h.TupleGet(newTup, 1), newMap))
}

func TestGCSharedNilAndEmptyMapStayCanonical(t *testing.T) {
	h := New()
	roots := []Value{Nil, h.NewMap()}
	remapped := h.Collect(roots)
	assert.Equal(t, Nil, remapped[0])
	assert.True(t, h.isEmptyMap(remapped[1]))
	assert.Equal(t, h.NewMap(), remapped[1])
}
