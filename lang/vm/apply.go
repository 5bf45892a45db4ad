package vm

import (
	"github.com/mna/cassette/lang/cerr"
)

// apply implements spec.md §4.6's Apply n. The callee is compiled ahead of
// its arguments (see compiler.compileCall), so the operand stack reads
// bottom-to-top as [..., callee, arg0, arg1, ..., argN-1] - the callee sits
// n slots below the top, not on top of it. apply removes just the callee,
// leaving the n arguments exactly where they were: a closure's own
// Tuple;Extend;Define prologue (compileLambda) expects to find them still
// on the stack once execution jumps to its entry pc.
//
// It reports whether it reassigned vm.pc (the closure case) so step's Apply
// case knows whether to let the jump stand or keep the instruction's normal
// fall-through pc.
func (vm *VM) apply(n int) (jumped bool) {
	depth := len(vm.stack)
	if depth < n+1 {
		vm.Fail(cerr.StackError, "stack underflow")
		return false
	}
	calleeIdx := depth - n - 1
	callee := vm.stack[calleeIdx]

	switch {
	case vm.H.IsClosure(callee):
		if arity := vm.H.ClosureArity(callee); arity != n {
			vm.Fail(cerr.ArithmeticError, "apply: closure wants %d arguments, got %d", arity, n)
			return false
		}
		vm.removeCallee(calleeIdx)
		vm.env = vm.H.ClosureEnv(callee)
		vm.pc = vm.H.ClosureEntry(callee)
		return true

	case vm.H.IsPrimitive(callee):
		id := vm.H.PrimitiveID(callee)
		if id < 0 || id >= len(vm.Prims) {
			vm.Fail(cerr.EnvError, "apply: unknown primitive id %d", id)
			return false
		}
		vm.removeCallee(calleeIdx)
		vm.Prims[id].Fn(vm, n)
		return false

	default:
		if n != 1 {
			vm.Fail(cerr.ArithmeticError, "apply: value-as-function takes exactly 1 argument, got %d", n)
			return false
		}
		vm.removeCallee(calleeIdx)
		idx := vm.Pop()
		if vm.err != nil {
			return false
		}
		vm.Push(callee)
		vm.Push(idx)
		vm.get()
		return false
	}
}

// removeCallee deletes the stack slot at i, shifting everything above it
// (the n arguments) down by one so they keep their relative order with the
// callee gone.
func (vm *VM) removeCallee(i int) {
	copy(vm.stack[i:], vm.stack[i+1:])
	vm.stack = vm.stack[:len(vm.stack)-1]
}
