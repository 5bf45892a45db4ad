// Package heap implements the tagged-value representation and the managed
// storage for compound objects described in spec.md §3: a unified Value
// plus a heap of cells holding pairs, tuples, binaries, persistent maps and
// an intern table for symbol names, collected by a Cheney-style copying
// collector (spec.md §4.7).
//
// The spec's design notes permit trading the bit-for-bit NaN-boxed 32-bit
// encoding for an explicit sum type in a memory-safe host language unless
// serialized-chunk compatibility with the original is required; this
// implementation takes that option. Value is a small comparable struct
// rather than a raw float32, which keeps every first-class kind usable
// directly as a Go map key for identity-based equality checks.
package heap

import "math"

// Kind identifies which alternative of the Value sum type is stored.
type Kind uint8

const (
	// First-class kinds: may appear as ordinary values to user code.
	KFloat Kind = iota
	KInt
	KSymbol
	KPair
	KObject

	// Heap-header kinds: only ever appear as the content of a heap cell that
	// is the target of a Pair/Object index, never returned by Heap read APIs
	// to caller code (spec.md §3.1 "Heap-header values").
	kTupleHeader
	kBinaryHeader
	kMapHeader
	kClosureHeader
	kPrimitiveHeader
	kMoved // GC forwarding sentinel, see gc.go
)

// HeapIndex is an index into a Heap's cell slice.
type HeapIndex uint32

// Value is the unified representation manipulated by the compiler and the
// VM: a float, a 32-bit signed int, an interned symbol, or an index of a
// pair or object living on the Heap.
type Value struct {
	kind Kind
	num  uint64
}

// Float returns a Value wrapping the float64 f. The spec's wire Value is a
// 32-bit float; values are narrowed to float32 precision on construction so
// that arithmetic results are stable regardless of host float64 precision.
func Float(f float64) Value {
	return Value{kind: KFloat, num: math.Float64bits(float64(float32(f)))}
}

// Int returns a Value wrapping the signed integer i. Only the low 20 bits
// are significant per spec.md §3.1; overflow on arithmetic is never
// trapped, so the value is sign-extended from 20 bits on construction.
func Int(i int32) Value {
	const bits = 20
	shifted := i << (32 - bits)
	return Value{kind: KInt, num: uint64(uint32(shifted >> (32 - bits)))}
}

// symbolMask truncates a hash to the spec's 20-bit symbol payload
// (spec.md §3.1, §3.3): two distinct names MAY collide, and the symbol
// table must treat that as a name clash.
const symbolMask = (1 << 20) - 1

// Symbol returns a Value wrapping the 20-bit truncated hash of an interned
// name. Use (*Heap).Intern to obtain symbol hashes.
func Symbol(hash uint32) Value {
	return Value{kind: KSymbol, num: uint64(hash & symbolMask)}
}

// Pair returns a Value referencing the pair whose head/tail cells start at
// idx.
func Pair(idx HeapIndex) Value { return Value{kind: KPair, num: uint64(idx)} }

// Object returns a Value referencing the object (tuple, binary or map node)
// whose header cell is at idx.
func Object(idx HeapIndex) Value { return Value{kind: KObject, num: uint64(idx)} }

func tupleHeader(n int) Value  { return Value{kind: kTupleHeader, num: uint64(uint32(n))} }
func binaryHeader(n int) Value { return Value{kind: kBinaryHeader, num: uint64(uint32(n))} }
func mapHeader(bitmap uint32) Value {
	return Value{kind: kMapHeader, num: uint64(bitmap)}
}
func moved(idx HeapIndex) Value { return Value{kind: kMoved, num: uint64(idx)} }

// Nil is the distinguished empty-list/nil value: a Pair pointing at heap
// index 0 (spec.md §3.1, §3.2).
var Nil = Pair(0)

// Kind reports which alternative of the sum type v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is the nil sentinel.
func (v Value) IsNil() bool { return v.kind == KPair && v.num == 0 }

// AsFloat returns the float64 payload of a KFloat value.
func (v Value) AsFloat() float64 { return math.Float64frombits(v.num) }

// AsInt returns the sign-extended int32 payload of a KInt value.
func (v Value) AsInt() int32 {
	const bits = 20
	shifted := int32(uint32(v.num)) << (32 - bits)
	return shifted >> (32 - bits)
}

// AsSymbolHash returns the 20-bit hash payload of a KSymbol value.
func (v Value) AsSymbolHash() uint32 { return uint32(v.num) & symbolMask }

// AsHeapIndex returns the heap index payload of a KPair or KObject value (or
// the internal header/moved kinds).
func (v Value) AsHeapIndex() HeapIndex { return HeapIndex(v.num) }

func (v Value) headerLen() int { return int(uint32(v.num)) }
func (v Value) bitmap() uint32 { return uint32(v.num) }

// IsTruthy implements the language's truthiness rule: every value is truthy
// except nil and the symbol false.
func (v Value) IsTruthy() bool {
	if v.IsNil() {
		return false
	}
	if v.kind == KSymbol && v.num == falseHash {
		return false
	}
	return true
}

// Identical reports whether a and b are the same immediate value or point at
// the same heap cell; it does not look at heap contents (used by Eq for
// immediates per spec.md §4.6).
func (a Value) Identical(b Value) bool { return a == b }

func (k Kind) String() string {
	switch k {
	case KFloat:
		return "float"
	case KInt:
		return "int"
	case KSymbol:
		return "symbol"
	case KPair:
		return "pair"
	case KObject:
		return "object"
	default:
		return "header"
	}
}
