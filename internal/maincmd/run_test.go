package maincmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/cassette/lang/heap"
)

func TestFormatValueScalars(t *testing.T) {
	h := heap.New()

	assert.Equal(t, "42", formatValue(h, heap.Int(42)))
	assert.Equal(t, "1.5", formatValue(h, heap.Float(1.5)))
	assert.Equal(t, "nil", formatValue(h, heap.Nil))
}

func TestFormatValueSymbol(t *testing.T) {
	h := heap.New()
	sym, _ := h.Syms.Intern("foo")
	assert.Equal(t, ":foo", formatValue(h, sym))
}

func TestFormatValueBoolSymbolsPrintBare(t *testing.T) {
	h := heap.New()
	trueSym, _ := h.Syms.Intern("true")
	assert.Equal(t, "true", formatValue(h, trueSym))
}

func TestFormatValuePair(t *testing.T) {
	h := heap.New()
	p := h.AllocPair(heap.Int(1), h.AllocPair(heap.Int(2), heap.Nil))
	assert.Equal(t, "(1 . (2 . nil))", formatValue(h, p))
}

func TestFormatValueBinary(t *testing.T) {
	h := heap.New()
	b := h.AllocBinary([]byte("hi"))
	assert.Equal(t, `"hi"`, formatValue(h, b))
}

func TestFormatValueTuple(t *testing.T) {
	h := heap.New()
	tup := h.AllocTuple(2)
	h.TupleSet(tup, 0, heap.Int(1))
	h.TupleSet(tup, 1, heap.Int(2))
	assert.Equal(t, "#[1, 2]", formatValue(h, tup))
}

func TestJoinComma(t *testing.T) {
	assert.Equal(t, "", joinComma(nil))
	assert.Equal(t, "a", joinComma([]string{"a"}))
	assert.Equal(t, "a, b, c", joinComma([]string{"a", "b", "c"}))
}
