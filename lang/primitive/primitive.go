// Package primitive implements the canonical primitive table spec.md §4.8
// requires every conforming implementation to provide: frame-0 bindings for
// list/collection access, arithmetic and comparison (also reachable as
// first-class values even where the compiler's own codegen takes an opcode
// fast path for the same operator), type predicates, and the I/O device
// boundary (§6.4).
package primitive

import (
	"math"

	"github.com/dolthub/swiss"

	"github.com/mna/cassette/lang/cerr"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/vm"
)

// order fixes the frame-0 slot assignment: Build and Names both walk this
// same slice, so whatever order appears here is the order compiler.Compile
// must be given as primNames and the order vm.New lays out the primitive
// frame in - the two are locked together by construction, not by a shared
// constant, so keep this the single source of truth for primitive identity.
var order = []string{
	"head", "tail", "#",
	"+", "-", "*", "/", "%", "..",
	"<", "<=", ">", ">=", "==", "!=", "not", "<>", "|", "in",
	"map-get", "map-set", "map-del", "map-keys", "map-values",
	"symbol-name", "substr", "trunc",
	"unwrap", "unwrap!", "ok?",
	"integer?", "float?", "symbol?", "pair?", "tuple?", "binary?", "map?", "function?",
	"panic!",
	"open", "close", "read", "write", "get-param", "set-param",
}

// Names returns the canonical primitive names in frame-0 slot order, the
// slice compiler.Compile expects as its primNames argument.
func Names() []string {
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Build constructs the primitive table in the same frame-0 order Names
// returns, ready to pass to vm.New. gw is the device gateway backing the
// I/O primitives (open/close/read/write); pass NewOSGateway() for a real
// filesystem-backed default, or a test double.
//
// Registration goes through a swiss.Map first (name -> fn) purely to catch a
// duplicate or missing registration by construction - a typo in order or a
// forgotten case below fails loudly here rather than silently shipping a nil
// PrimFn - then Build freezes that map into order's fixed sequence, the same
// append-mostly hash/name-keyed-registry shape lang/heap.SymbolTable already
// uses for the same reason (see DESIGN.md).
func Build(gw Gateway) []vm.Primitive {
	reg := swiss.NewMap[string, vm.PrimFn](uint32(len(order)))
	p := &table{gw: gw}
	for _, e := range p.entries() {
		reg.Put(e.name, e.fn)
	}

	prims := make([]vm.Primitive, len(order))
	for i, name := range order {
		fn, ok := reg.Get(name)
		if !ok {
			panic("primitive: " + name + " listed in order but never registered")
		}
		prims[i] = vm.Primitive{Name: name, Fn: fn}
	}
	return prims
}

type table struct{ gw Gateway }

type regEntry struct {
	name string
	fn   vm.PrimFn
}

func (p *table) entries() []regEntry {
	return []regEntry{
		{"head", primHead}, {"tail", primTail}, {"#", primLen},
		{"+", primAdd}, {"-", primSub}, {"*", primMul}, {"/", primDiv}, {"%", primRem},
		{"..", primRange},
		{"<", primLT}, {"<=", primLE}, {">", primGT}, {">=", primGE},
		{"==", primEq}, {"!=", primNE}, {"not", primNot},
		{"<>", primConcat}, {"|", primCons}, {"in", primIn},
		{"map-get", primMapGet}, {"map-set", primMapSet}, {"map-del", primMapDel},
		{"map-keys", primMapKeys}, {"map-values", primMapValues},
		{"symbol-name", primSymbolName}, {"substr", primSubstr}, {"trunc", primTrunc},
		{"unwrap", primUnwrap}, {"unwrap!", primUnwrapBang}, {"ok?", primOk},
		{"integer?", predicate(func(h *heap.Heap, v heap.Value) bool { return v.Kind() == heap.KInt })},
		{"float?", predicate(func(h *heap.Heap, v heap.Value) bool { return v.Kind() == heap.KFloat })},
		{"symbol?", predicate(func(h *heap.Heap, v heap.Value) bool { return v.Kind() == heap.KSymbol })},
		{"pair?", predicate(func(h *heap.Heap, v heap.Value) bool { return v.Kind() == heap.KPair })},
		{"tuple?", predicate(func(h *heap.Heap, v heap.Value) bool { return h.IsTuple(v) })},
		{"binary?", predicate(func(h *heap.Heap, v heap.Value) bool { return h.IsBinary(v) })},
		{"map?", predicate(func(h *heap.Heap, v heap.Value) bool { return h.IsMap(v) })},
		{"function?", predicate(func(h *heap.Heap, v heap.Value) bool { return h.IsClosure(v) || h.IsPrimitive(v) })},
		{"panic!", primPanic},
		{"open", p.primOpen}, {"close", p.primClose}, {"read", p.primRead}, {"write", p.primWrite},
		{"get-param", p.primGetParam}, {"set-param", p.primSetParam},
	}
}

// args pops argc values off vm's operand stack and returns them in source
// (push) order: out[0] is the first-pushed argument, matching every
// multi-argument call's left-to-right evaluation order (spec.md §5
// "Ordering"). Pop drains the stack top-first, so the loop fills out from
// the end backwards.
func args(vm *vm.VM, argc int) []heap.Value {
	out := make([]heap.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		out[i] = vm.Pop()
	}
	return out
}

func wantArgc(vmach *vm.VM, name string, argc, want int) bool {
	if argc != want {
		for i := 0; i < argc; i++ {
			vmach.Pop()
		}
		vmach.Fail(cerr.ArithmeticError, "%s: wants %d argument(s), got %d", name, want, argc)
		vmach.Push(heap.Nil)
		return false
	}
	return true
}

func primHead(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "head", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	if v.Kind() != heap.KPair || v.IsNil() {
		vmach.Fail(cerr.TypeError, "head: expected a non-empty list")
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(vmach.H.Head(v))
}

func primTail(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "tail", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	if v.Kind() != heap.KPair || v.IsNil() {
		vmach.Fail(cerr.TypeError, "tail: expected a non-empty list")
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(vmach.H.Tail(v))
}

func primLen(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "#", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	h := vmach.H
	switch {
	case v.Kind() == heap.KPair:
		n := 0
		for cur := v; !cur.IsNil(); cur = h.Tail(cur) {
			n++
		}
		vmach.Push(heap.Int(int32(n)))
	case h.IsTuple(v):
		vmach.Push(heap.Int(int32(h.TupleLen(v))))
	case h.IsBinary(v):
		vmach.Push(heap.Int(int32(h.BinaryLen(v))))
	case h.IsMap(v):
		vmach.Push(heap.Int(int32(h.MapLen(v))))
	default:
		vmach.Fail(cerr.TypeError, "#: expected a collection")
		vmach.Push(heap.Nil)
	}
}

func arith2(name string, op func(a, b heap.Value) (heap.Value, *cerr.Error)) vm.PrimFn {
	return func(vmach *vm.VM, argc int) {
		if !wantArgc(vmach, name, argc, 2) {
			return
		}
		a := args(vmach, 2)
		res, cerrv := op(a[0], a[1])
		if cerrv != nil {
			vmach.Fail(cerrv.Kind, "%s", cerrv.Msg)
			vmach.Push(heap.Nil)
			return
		}
		vmach.Push(res)
	}
}

var primAdd = arith2("+", func(a, b heap.Value) (heap.Value, *cerr.Error) {
	if !vm.IsNumber(a) || !vm.IsNumber(b) {
		return heap.Nil, cerr.New(cerr.TypeError, "+: expected numbers")
	}
	if a.Kind() == heap.KInt && b.Kind() == heap.KInt {
		return heap.Int(a.AsInt() + b.AsInt()), nil
	}
	return heap.Float(vm.AsFloat(a) + vm.AsFloat(b)), nil
})

var primSub = arith2("-", func(a, b heap.Value) (heap.Value, *cerr.Error) {
	if !vm.IsNumber(a) || !vm.IsNumber(b) {
		return heap.Nil, cerr.New(cerr.TypeError, "-: expected numbers")
	}
	if a.Kind() == heap.KInt && b.Kind() == heap.KInt {
		return heap.Int(a.AsInt() - b.AsInt()), nil
	}
	return heap.Float(vm.AsFloat(a) - vm.AsFloat(b)), nil
})

var primMul = arith2("*", func(a, b heap.Value) (heap.Value, *cerr.Error) {
	if !vm.IsNumber(a) || !vm.IsNumber(b) {
		return heap.Nil, cerr.New(cerr.TypeError, "*: expected numbers")
	}
	if a.Kind() == heap.KInt && b.Kind() == heap.KInt {
		return heap.Int(a.AsInt() * b.AsInt()), nil
	}
	return heap.Float(vm.AsFloat(a) * vm.AsFloat(b)), nil
})

var primDiv = arith2("/", func(a, b heap.Value) (heap.Value, *cerr.Error) {
	if !vm.IsNumber(a) || !vm.IsNumber(b) {
		return heap.Nil, cerr.New(cerr.TypeError, "/: expected numbers")
	}
	if vm.AsFloat(b) == 0 {
		return heap.Nil, cerr.New(cerr.ArithmeticError, "division by zero")
	}
	return heap.Float(vm.AsFloat(a) / vm.AsFloat(b)), nil
})

var primRem = arith2("%", func(a, b heap.Value) (heap.Value, *cerr.Error) {
	if !vm.IsNumber(a) || !vm.IsNumber(b) {
		return heap.Nil, cerr.New(cerr.TypeError, "%%: expected numbers")
	}
	if a.Kind() == heap.KInt && b.Kind() == heap.KInt {
		if b.AsInt() == 0 {
			return heap.Nil, cerr.New(cerr.ArithmeticError, "modulo by zero")
		}
		return heap.Int(a.AsInt() % b.AsInt()), nil
	}
	fb := vm.AsFloat(b)
	if fb == 0 {
		return heap.Nil, cerr.New(cerr.ArithmeticError, "modulo by zero")
	}
	return heap.Float(vm.Mod(vm.AsFloat(a), fb)), nil
})

// primRange builds the inclusive ascending list [a, a+1, ..., b]; a > b
// yields the empty list rather than a TypeError, so `a .. b` composes
// cleanly with `#`-driven loops over a possibly-empty span.
func primRange(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "..", argc, 2) {
		return
	}
	a := args(vmach, 2)
	lo, hi := a[0], a[1]
	if lo.Kind() != heap.KInt || hi.Kind() != heap.KInt {
		vmach.Fail(cerr.TypeError, "..: expected integers")
		vmach.Push(heap.Nil)
		return
	}
	out := heap.Nil
	for i := hi.AsInt(); i >= lo.AsInt(); i-- {
		out = vmach.H.AllocPair(heap.Int(i), out)
	}
	vmach.Push(out)
}

func cmp2(name string, cmp func(a, b float64) bool) vm.PrimFn {
	return func(vmach *vm.VM, argc int) {
		if !wantArgc(vmach, name, argc, 2) {
			return
		}
		a := args(vmach, 2)
		if !vm.IsNumber(a[0]) || !vm.IsNumber(a[1]) {
			vmach.Fail(cerr.TypeError, "%s: expected numbers", name)
			vmach.Push(heap.Nil)
			return
		}
		vmach.Push(heap.Bool(cmp(vm.AsFloat(a[0]), vm.AsFloat(a[1]))))
	}
}

var primLT = cmp2("<", func(a, b float64) bool { return a < b })
var primLE = cmp2("<=", func(a, b float64) bool { return a <= b })
var primGT = cmp2(">", func(a, b float64) bool { return a > b })
var primGE = cmp2(">=", func(a, b float64) bool { return a >= b })

func primEq(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "==", argc, 2) {
		return
	}
	a := args(vmach, 2)
	vmach.Push(heap.Bool(vmach.H.Equal(a[0], a[1])))
}

func primNE(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "!=", argc, 2) {
		return
	}
	a := args(vmach, 2)
	vmach.Push(heap.Bool(!vmach.H.Equal(a[0], a[1])))
}

func primNot(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "not", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	vmach.Push(heap.Bool(!v.IsTruthy()))
}

// primConcat implements <>: binary-binary concatenates bytes; pair-pair (or
// either side nil) appends the two lists. Anything else is a TypeError.
func primConcat(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "<>", argc, 2) {
		return
	}
	a := args(vmach, 2)
	h := vmach.H
	left, right := a[0], a[1]
	switch {
	case h.IsBinary(left) && h.IsBinary(right):
		buf := append(append([]byte{}, h.BinaryBytes(left)...), h.BinaryBytes(right)...)
		vmach.Push(h.AllocBinary(buf))
	case left.Kind() == heap.KPair && right.Kind() == heap.KPair:
		var items []heap.Value
		for cur := left; !cur.IsNil(); cur = h.Tail(cur) {
			items = append(items, h.Head(cur))
		}
		out := right
		for i := len(items) - 1; i >= 0; i-- {
			out = h.AllocPair(items[i], out)
		}
		vmach.Push(out)
	default:
		vmach.Fail(cerr.TypeError, "<>: expected two binaries or two lists")
		vmach.Push(heap.Nil)
	}
}

func primCons(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "|", argc, 2) {
		return
	}
	a := args(vmach, 2)
	vmach.Push(vmach.H.AllocPair(a[0], a[1]))
}

func primIn(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "in", argc, 2) {
		return
	}
	a := args(vmach, 2)
	elem, coll := a[0], a[1]
	h := vmach.H
	switch {
	case coll.Kind() == heap.KPair:
		for cur := coll; !cur.IsNil(); cur = h.Tail(cur) {
			if h.Equal(h.Head(cur), elem) {
				vmach.Push(heap.True)
				return
			}
		}
		vmach.Push(heap.False)
	case h.IsTuple(coll):
		for i := 0; i < h.TupleLen(coll); i++ {
			if h.Equal(h.TupleGet(coll, i), elem) {
				vmach.Push(heap.True)
				return
			}
		}
		vmach.Push(heap.False)
	case h.IsMap(coll):
		_, ok := h.MapGet(coll, elem)
		vmach.Push(heap.Bool(ok))
	default:
		vmach.Push(heap.False)
	}
}

func primMapGet(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "map-get", argc, 2) {
		return
	}
	a := args(vmach, 2)
	v, ok := vmach.H.MapGet(a[0], a[1])
	if !ok {
		vmach.Fail(cerr.KeyError, "map-get: key not found")
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(v)
}

func primMapSet(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "map-set", argc, 3) {
		return
	}
	a := args(vmach, 3)
	vmach.Push(vmach.H.MapPut(a[0], a[1], a[2]))
}

func primMapDel(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "map-del", argc, 2) {
		return
	}
	a := args(vmach, 2)
	vmach.Push(vmach.H.MapDel(a[0], a[1]))
}

func primMapKeys(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "map-keys", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	vmach.Push(buildList(vmach.H, vmach.H.MapKeys(v)))
}

func primMapValues(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "map-values", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	vmach.Push(buildList(vmach.H, vmach.H.MapValues(v)))
}

func buildList(h *heap.Heap, vals []heap.Value) heap.Value {
	out := heap.Nil
	for i := len(vals) - 1; i >= 0; i-- {
		out = h.AllocPair(vals[i], out)
	}
	return out
}

func primSymbolName(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "symbol-name", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	if v.Kind() != heap.KSymbol {
		vmach.Fail(cerr.TypeError, "symbol-name: expected a symbol")
		vmach.Push(heap.Nil)
		return
	}
	name, ok := vmach.H.Syms.Name(v.AsSymbolHash())
	if !ok {
		vmach.Fail(cerr.EnvError, "symbol-name: symbol has no interned name")
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(vmach.H.NewString(name))
}

// primSubstr extracts str[start:start+length] as a new binary.
func primSubstr(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "substr", argc, 3) {
		return
	}
	a := args(vmach, 3)
	str, start, length := a[0], a[1], a[2]
	if !vmach.H.IsBinary(str) || start.Kind() != heap.KInt || length.Kind() != heap.KInt {
		vmach.Fail(cerr.TypeError, "substr: expected (binary, int, int)")
		vmach.Push(heap.Nil)
		return
	}
	data := vmach.H.BinaryBytes(str)
	s, n := int(start.AsInt()), int(length.AsInt())
	if s < 0 || n < 0 || s+n > len(data) {
		vmach.Fail(cerr.KeyError, "substr: range out of bounds")
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(vmach.H.AllocBinary(append([]byte{}, data[s:s+n]...)))
}

func primTrunc(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "trunc", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	switch v.Kind() {
	case heap.KInt:
		vmach.Push(v)
	case heap.KFloat:
		vmach.Push(heap.Int(int32(math.Trunc(v.AsFloat()))))
	default:
		vmach.Fail(cerr.TypeError, "trunc: expected a number")
		vmach.Push(heap.Nil)
	}
}

// unwrap/unwrap!/ok? operate on the two-slot #[ok?, value] tuple convention
// this implementation uses for fallible primitives that cannot themselves
// set a VM-level error (spec.md does not mandate a concrete result shape;
// a fixed-size tuple is the natural fit since tuples already exist as the
// language's only fixed-arity compound - see DESIGN.md).
func resultParts(vmach *vm.VM, name string, v heap.Value) (ok, val heap.Value, good bool) {
	if !vmach.H.IsTuple(v) || vmach.H.TupleLen(v) != 2 {
		vmach.Fail(cerr.TypeError, "%s: expected a #[ok?, value] result tuple", name)
		vmach.Push(heap.Nil)
		return heap.Nil, heap.Nil, false
	}
	return vmach.H.TupleGet(v, 0), vmach.H.TupleGet(v, 1), true
}

func primUnwrap(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "unwrap", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	_, val, ok := resultParts(vmach, "unwrap", v)
	if !ok {
		return
	}
	vmach.Push(val)
}

func primUnwrapBang(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "unwrap!", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	okv, val, good := resultParts(vmach, "unwrap!", v)
	if !good {
		return
	}
	if !okv.IsTruthy() {
		vmach.Fail(cerr.RuntimeError, "unwrap!: result was not ok")
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(val)
}

func primOk(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "ok?", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	okv, _, good := resultParts(vmach, "ok?", v)
	if !good {
		return
	}
	vmach.Push(heap.Bool(okv.IsTruthy()))
}

func predicate(test func(h *heap.Heap, v heap.Value) bool) vm.PrimFn {
	return func(vmach *vm.VM, argc int) {
		if !wantArgc(vmach, "predicate", argc, 1) {
			return
		}
		v := args(vmach, 1)[0]
		vmach.Push(heap.Bool(test(vmach.H, v)))
	}
}

// primPanic implements explicit panic! (spec.md §7 RuntimeError "explicit
// panic! or primitive failure"): it always fails the VM, using the binary's
// text as the message when the argument is a binary, or a generic message
// otherwise. Per spec.md §6.4 a primitive "returns any value (conventionally
// nil)" on failure, so it still pushes one result to keep the stack balanced.
func primPanic(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "panic!", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	msg := "panic!"
	if vmach.H.IsBinary(v) {
		msg = vmach.H.GoString(v)
	}
	vmach.Fail(cerr.RuntimeError, "%s", msg)
	vmach.Push(heap.Nil)
}
