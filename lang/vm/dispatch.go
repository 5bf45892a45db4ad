package vm

import (
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/cerr"
	"github.com/mna/cassette/lang/heap"
)

func (vm *VM) u8(off int32) int32  { return int32(vm.Chunk.Code[off]) }
func (vm *VM) s8(off int32) int32  { return int32(int8(vm.Chunk.Code[off])) }
func (vm *VM) i32(off int32) int32 {
	b := vm.Chunk.Code[off : off+4]
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// step executes exactly one instruction at vm.pc and advances vm.pc by that
// instruction's length, per spec.md §4.6's dispatch loop.
func (vm *VM) step() {
	op := asm.Op(vm.Chunk.Code[vm.pc])
	argPC := vm.pc + 1
	next := argPC + int32(op.ArgWidth())

	switch op {
	case asm.NOP:

	// -- stack --
	case asm.POP:
		vm.Pop()
	case asm.DUP:
		v := vm.Peek()
		vm.Push(v)
	case asm.SWAP:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(b)
		vm.Push(a)

	// -- literals --
	case asm.NILV:
		vm.Push(heap.Nil)
	case asm.CONST:
		idx := vm.u8(argPC)
		if int(idx) >= len(vm.Chunk.Constants) {
			vm.Fail(cerr.RuntimeError, "constant index %d out of range", idx)
			break
		}
		vm.Push(vm.Chunk.Constants[idx])
	case asm.INT:
		vm.Push(heap.Int(vm.s8(argPC)))
	case asm.STR:
		v := vm.Pop()
		if v.Kind() != heap.KSymbol {
			vm.Fail(cerr.TypeError, "str: expected a symbol")
			break
		}
		name, ok := vm.H.Syms.Name(v.AsSymbolHash())
		if !ok {
			vm.Fail(cerr.EnvError, "str: symbol has no interned name")
			break
		}
		vm.Push(vm.H.NewString(name))

	// -- arithmetic --
	case asm.ADD:
		vm.arith(op)
	case asm.SUB, asm.MUL, asm.DIV, asm.REM:
		vm.arith(op)
	case asm.NEG:
		a := vm.Pop()
		switch a.Kind() {
		case heap.KInt:
			vm.Push(heap.Int(-a.AsInt()))
		case heap.KFloat:
			vm.Push(heap.Float(-a.AsFloat()))
		default:
			vm.Fail(cerr.TypeError, "neg: expected a number")
		}

	// -- comparison --
	case asm.EQ:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(heap.Bool(vm.H.Equal(a, b)))
	case asm.GT:
		vm.compare(func(a, b float64) bool { return a > b })
	case asm.LT:
		vm.compare(func(a, b float64) bool { return a < b })
	case asm.NOT:
		a := vm.Pop()
		vm.Push(heap.Bool(!a.IsTruthy()))

	// -- collections --
	case asm.PAIR:
		head := vm.Pop()
		tail := vm.Pop()
		vm.Push(vm.H.AllocPair(head, tail))
	case asm.TUPLE:
		n := int(vm.u8(argPC))
		vm.Push(vm.H.AllocTuple(n))
	case asm.SET:
		i := int(vm.u8(argPC))
		val := vm.Pop()
		t := vm.Peek()
		if t.Kind() != heap.KObject || i < 0 || i >= vm.H.TupleLen(t) {
			vm.Fail(cerr.KeyError, "set: tuple index %d out of range", i)
			break
		}
		vm.H.TupleSet(t, i, val)
	case asm.GET:
		vm.get()
	case asm.MAPV:
		vm.Push(vm.H.NewMap())
	case asm.PUT:
		key := vm.Pop()
		val := vm.Pop()
		m := vm.Pop()
		vm.Push(vm.H.MapPut(m, key, val))
	case asm.LEN:
		vm.length()
	case asm.IN:
		coll := vm.Pop()
		elem := vm.Pop()
		vm.Push(heap.Bool(vm.contains(coll, elem)))

	// -- environment --
	case asm.EXTEND:
		frame := vm.Pop()
		vm.env = vm.H.AllocPair(frame, vm.env)
	case asm.EXPORT:
		vm.Push(vm.export())
	case asm.DEFINE:
		slot := int(vm.u8(argPC))
		val := vm.Pop()
		frame := vm.H.Head(vm.env)
		if slot < 0 || slot >= vm.H.TupleLen(frame) {
			vm.Fail(cerr.EnvError, "define: slot %d out of range", slot)
			break
		}
		vm.H.TupleSet(frame, slot, val)
	case asm.LOOKUP:
		depth := int(vm.u8(argPC))
		slot := int(vm.u8(argPC + 1))
		frame, ok := vm.frameAt(depth)
		if !ok {
			vm.Fail(cerr.EnvError, "lookup: frame depth %d out of range", depth)
			break
		}
		if slot < 0 || slot >= vm.H.TupleLen(frame) {
			vm.Fail(cerr.EnvError, "lookup: slot %d out of range", slot)
			break
		}
		vm.Push(vm.H.TupleGet(frame, slot))

	// -- control --
	case asm.JUMP:
		rel := vm.i32(argPC)
		next = next + rel
	case asm.BRANCH:
		rel := vm.i32(argPC)
		if vm.Peek().IsTruthy() {
			next = next + rel
		}
	case asm.LINK:
		rel := vm.i32(argPC)
		vm.callStack = append(vm.callStack, callEntry{Env: vm.env, PC: next + rel})
	case asm.APPLY:
		n := int(vm.u8(argPC))
		if jumped := vm.apply(n); jumped && vm.err == nil {
			next = vm.pc
		}
	case asm.RETURN:
		if len(vm.callStack) == 0 {
			vm.halted = true
			return
		}
		top := vm.callStack[len(vm.callStack)-1]
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
		vm.env = top.Env
		next = top.PC
	case asm.HALT:
		vm.halted = true
		return

	// -- closures --
	case asm.LAMBDA:
		arity := vm.Pop()
		entry := vm.Pop()
		if arity.Kind() != heap.KInt || entry.Kind() != heap.KInt {
			vm.Fail(cerr.TypeError, "lambda: malformed closure constants")
			break
		}
		vm.Push(vm.H.AllocClosure(int(arity.AsInt()), entry.AsInt(), vm.env))

	// -- modules --
	case asm.MODULE:
		id := vm.u8(argPC)
		vm.modules[id] = vm.Peek()
	case asm.LOAD:
		id := vm.u8(argPC)
		v, ok := vm.modules[id]
		if !ok {
			vm.Push(heap.Nil)
		} else {
			vm.Push(v)
		}

	// -- register save/restore (compiler.Preserving bookkeeping) --
	case asm.PUSHENV:
		vm.Push(vm.env)
	case asm.POPENV:
		vm.env = vm.Pop()
	case asm.PUSHCONT:
		if len(vm.callStack) == 0 {
			vm.Fail(cerr.StackError, "pushcont: no active call frame")
			break
		}
		top := vm.callStack[len(vm.callStack)-1]
		vm.Push(heap.Int(top.PC))
	case asm.POPCONT:
		v := vm.Pop()
		if len(vm.callStack) == 0 {
			vm.Fail(cerr.StackError, "popcont: no active call frame")
			break
		}
		vm.callStack[len(vm.callStack)-1].PC = v.AsInt()

	default:
		vm.Fail(cerr.RuntimeError, "illegal opcode %s", op)
	}

	if vm.err == nil && !vm.halted {
		vm.pc = next
	}
}

// frameAt walks depth Tails from the innermost frame (depth 0) and returns
// the frame tuple there.
func (vm *VM) frameAt(depth int) (heap.Value, bool) {
	e := vm.env
	for i := 0; i < depth; i++ {
		if e.IsNil() {
			return heap.Nil, false
		}
		e = vm.H.Tail(e)
	}
	if e.IsNil() {
		return heap.Nil, false
	}
	return vm.H.Head(e), true
}

func (vm *VM) arith(op asm.Op) {
	b := vm.Pop()
	a := vm.Pop()
	if vm.err != nil {
		return
	}
	bothInt := a.Kind() == heap.KInt && b.Kind() == heap.KInt
	if !IsNumber(a) || !IsNumber(b) {
		vm.Fail(cerr.TypeError, "%s: expected numbers", op)
		return
	}
	if op == asm.DIV {
		if AsFloat(b) == 0 {
			vm.Fail(cerr.ArithmeticError, "division by zero")
			return
		}
		vm.Push(heap.Float(AsFloat(a) / AsFloat(b)))
		return
	}
	if op == asm.REM {
		ib, ia := b.AsInt(), a.AsInt()
		if bothInt {
			if ib == 0 {
				vm.Fail(cerr.ArithmeticError, "modulo by zero")
				return
			}
			vm.Push(heap.Int(ia % ib))
			return
		}
		fb := AsFloat(b)
		if fb == 0 {
			vm.Fail(cerr.ArithmeticError, "modulo by zero")
			return
		}
		vm.Push(heap.Float(Mod(AsFloat(a), fb)))
		return
	}
	if bothInt {
		switch op {
		case asm.ADD:
			vm.Push(heap.Int(a.AsInt() + b.AsInt()))
		case asm.SUB:
			vm.Push(heap.Int(a.AsInt() - b.AsInt()))
		case asm.MUL:
			vm.Push(heap.Int(a.AsInt() * b.AsInt()))
		}
		return
	}
	fa, fb := AsFloat(a), AsFloat(b)
	switch op {
	case asm.ADD:
		vm.Push(heap.Float(fa + fb))
	case asm.SUB:
		vm.Push(heap.Float(fa - fb))
	case asm.MUL:
		vm.Push(heap.Float(fa * fb))
	}
}

// Mod implements floating-point modulo with the result's sign following a
// (matching Go's integer % and most C-family languages, rather than Euclidean
// mod which always returns a non-negative result).
func Mod(a, b float64) float64 {
	return a - b*float64(int64(a/b))
}

// IsNumber reports whether v is a KInt or KFloat value. Exported so
// lang/primitive's table entries (`+`, `<`, etc., reachable as first-class
// values even though the compiler's own codegen takes the opcode fast path)
// apply the exact same numeric-domain check as the dispatch loop.
func IsNumber(v heap.Value) bool { return v.Kind() == heap.KInt || v.Kind() == heap.KFloat }

// AsFloat coerces a KInt or KFloat value to float64.
func AsFloat(v heap.Value) float64 {
	if v.Kind() == heap.KInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

func (vm *VM) compare(cmp func(a, b float64) bool) {
	b := vm.Pop()
	a := vm.Pop()
	if vm.err != nil {
		return
	}
	if !IsNumber(a) || !IsNumber(b) {
		vm.Fail(cerr.TypeError, "comparison: expected numbers")
		return
	}
	vm.Push(heap.Bool(cmp(AsFloat(a), AsFloat(b))))
}

func (vm *VM) get() {
	idx := vm.Pop()
	coll := vm.Pop()
	if vm.err != nil {
		return
	}
	switch coll.Kind() {
	case heap.KPair:
		n := idx.AsInt()
		cur := coll
		for ; n > 0; n-- {
			if cur.IsNil() {
				vm.Fail(cerr.KeyError, "get: list index out of range")
				return
			}
			cur = vm.H.Tail(cur)
		}
		if cur.IsNil() {
			vm.Fail(cerr.KeyError, "get: list index out of range")
			return
		}
		vm.Push(vm.H.Head(cur))
	case heap.KObject:
		switch {
		case vm.H.IsClosure(coll), vm.H.IsPrimitive(coll):
			vm.Fail(cerr.TypeError, "get: value is not indexable")
		case vm.H.IsTuple(coll):
			i := int(idx.AsInt())
			if i < 0 || i >= vm.H.TupleLen(coll) {
				vm.Fail(cerr.KeyError, "get: tuple index out of range")
				return
			}
			vm.Push(vm.H.TupleGet(coll, i))
		case vm.H.IsBinary(coll):
			i := int(idx.AsInt())
			if i < 0 || i >= vm.H.BinaryLen(coll) {
				vm.Fail(cerr.KeyError, "get: binary index out of range")
				return
			}
			vm.Push(heap.Int(int32(vm.H.BinaryByte(coll, i))))
		default: // map
			v, ok := vm.H.MapGet(coll, idx)
			if !ok {
				vm.Fail(cerr.KeyError, "get: key not found")
				return
			}
			vm.Push(v)
		}
	default:
		vm.Fail(cerr.TypeError, "get: value is not indexable")
	}
}

func (vm *VM) length() {
	v := vm.Pop()
	if vm.err != nil {
		return
	}
	switch v.Kind() {
	case heap.KPair:
		n := 0
		for cur := v; !cur.IsNil(); cur = vm.H.Tail(cur) {
			n++
		}
		vm.Push(heap.Int(int32(n)))
	case heap.KObject:
		switch {
		case vm.H.IsTuple(v):
			vm.Push(heap.Int(int32(vm.H.TupleLen(v))))
		case vm.H.IsBinary(v):
			vm.Push(heap.Int(int32(vm.H.BinaryLen(v))))
		case !vm.H.IsClosure(v) && !vm.H.IsPrimitive(v):
			vm.Push(heap.Int(int32(vm.H.MapLen(v))))
		default:
			vm.Fail(cerr.TypeError, "#: expected a collection")
		}
	default:
		vm.Fail(cerr.TypeError, "#: expected a collection")
	}
}

func (vm *VM) contains(coll, elem heap.Value) bool {
	switch coll.Kind() {
	case heap.KPair:
		for cur := coll; !cur.IsNil(); cur = vm.H.Tail(cur) {
			if vm.H.Equal(vm.H.Head(cur), elem) {
				return true
			}
		}
		return false
	case heap.KObject:
		if vm.H.IsTuple(coll) {
			for i := 0; i < vm.H.TupleLen(coll); i++ {
				if vm.H.Equal(vm.H.TupleGet(coll, i), elem) {
					return true
				}
			}
			return false
		}
		if vm.H.IsBinary(coll) {
			return false
		}
		_, ok := vm.H.MapGet(coll, elem)
		return ok
	}
	return false
}

// export builds a map out of the innermost frame: spec.md's Export opcode
// has no way to learn the frame's binding names at runtime (tuples are
// anonymous slot arrays), so this compiler never actually emits Export -
// module export maps are built directly with Map/Put from the compile-time
// known top-level names instead (see lang/compiler's module support). This
// implementation is kept for a hand-assembled chunk that does emit it: it
// degrades to a map keyed by each slot's 0-based index.
func (vm *VM) export() heap.Value {
	frame := vm.H.Head(vm.env)
	n := vm.H.TupleLen(frame)
	m := vm.H.NewMap()
	for i := 0; i < n; i++ {
		m = vm.H.MapPut(m, heap.Int(int32(i)), vm.H.TupleGet(frame, i))
	}
	return m
}

