// Package vm implements the stack-based bytecode interpreter described in
// spec.md §4.6: a dispatch loop over a Chunk's code, an operand stack, a
// call stack of saved (env, return-pc) pairs, and the module export cache.
package vm

import (
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/cerr"
	"github.com/mna/cassette/lang/heap"
)

// PrimFn is the shape every primitive function implements (spec.md §6.4):
// it receives the VM (so it can pop its argc arguments and inspect the
// heap) and the argument count, and must pop exactly argc values and push
// exactly one result. A primitive reports failure by calling vm.Fail and
// returning; the dispatch loop checks vm.err immediately afterward.
type PrimFn func(vm *VM, argc int)

// Primitive names one frame-0 slot: Name is both the frame-0 binding
// compileenv.New/compiler.Compile expect and the symbol printed in a
// TypeError/ArithmeticError message.
type Primitive struct {
	Name string
	Fn   PrimFn
}

// callEntry is one saved (env, return-pc) pair, pushed by Link and popped
// by Return.
type callEntry struct {
	Env heap.Value
	PC  int32
}

// VM is one interpreter instance over a single Chunk and Heap. It owns the
// heap outright (spec.md §5 "the heap is owned by the VM and not shared").
type VM struct {
	H     *heap.Heap
	Chunk *asm.Chunk
	Prims []Primitive

	pc        int32
	env       heap.Value
	stack     []heap.Value
	callStack []callEntry
	modules   map[int32]heap.Value

	err      *cerr.Error
	halted   bool
	Interrupt bool // cooperative cancellation flag, checked every dispatch iteration (spec.md §5)

	// InstrBudget, when non-zero, caps how many instructions a single Run
	// call executes before returning control to the host, per spec.md §5's
	// "Run(budget, vm)" driver-loop model. Zero means unlimited (run to
	// completion or error).
	InstrBudget int
}

// New creates a VM ready to execute chunk's code from pc 0, with the
// primitive frame (frame 0) and modules frame (frame 1) already extended
// as the two structural, unconditional frames compiler.Compile assumes are
// always open (see DESIGN.md).
func New(h *heap.Heap, chunk *asm.Chunk, prims []Primitive, moduleThunks []heap.Value) *VM {
	vm := &VM{H: h, Chunk: chunk, Prims: prims, modules: make(map[int32]heap.Value)}

	primFrame := h.AllocTuple(len(prims))
	for i := range prims {
		h.TupleSet(primFrame, i, h.AllocPrimitive(i))
	}
	vm.env = h.AllocPair(primFrame, heap.Nil)

	modFrame := h.AllocTuple(len(moduleThunks))
	for i, th := range moduleThunks {
		h.TupleSet(modFrame, i, th)
	}
	vm.env = h.AllocPair(modFrame, vm.env)

	return vm
}

// Err returns the runtime error that halted the dispatch loop, or nil if
// the VM is still runnable or finished without error.
func (vm *VM) Err() *cerr.Error { return vm.err }

// Halted reports whether Run has reached Halt/Return-past-bottom or a
// runtime error.
func (vm *VM) Halted() bool { return vm.halted }

// Fail sets the VM's runtime error, causing the dispatch loop to stop at
// the next iteration check. It is idempotent: the first failure wins, so a
// primitive that fails and then (incorrectly) pushes a value doesn't mask
// the real cause.
func (vm *VM) Fail(kind cerr.Kind, format string, args ...interface{}) {
	if vm.err != nil {
		return
	}
	vm.err = cerr.New(kind, format, args...)
	vm.err.Trace = vm.trace()
}

func (vm *VM) trace() []cerr.Frame {
	frames := make([]cerr.Frame, len(vm.callStack))
	for i, e := range vm.callStack {
		frames[i] = cerr.Frame{PC: e.PC}
	}
	return frames
}

// Push pushes v onto the operand stack.
func (vm *VM) Push(v heap.Value) { vm.stack = append(vm.stack, v) }

// Pop pops and returns the top of the operand stack, failing with a
// StackError and returning heap.Nil if the stack is empty.
func (vm *VM) Pop() heap.Value {
	if len(vm.stack) == 0 {
		vm.Fail(cerr.StackError, "stack underflow")
		return heap.Nil
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

// Peek returns the top of the operand stack without popping it.
func (vm *VM) Peek() heap.Value {
	if len(vm.stack) == 0 {
		vm.Fail(cerr.StackError, "stack underflow")
		return heap.Nil
	}
	return vm.stack[len(vm.stack)-1]
}

// Run executes instructions until Halt, an implicit return past the bottom
// of the call stack, a runtime error, budget exhaustion, or Interrupt is
// observed. It returns true if execution should be considered finished
// (halted or errored), false if it merely exhausted its budget and may be
// resumed with another Run call (spec.md §5's cooperative driver-loop
// model).
func (vm *VM) Run() bool {
	executed := 0
	for {
		if vm.halted || vm.err != nil || vm.Interrupt {
			return true
		}
		if vm.InstrBudget > 0 && executed >= vm.InstrBudget {
			return false
		}
		if int(vm.pc) < 0 || int(vm.pc) >= len(vm.Chunk.Code) {
			vm.halted = true
			return true
		}
		vm.step()
		executed++

		if vm.H.ShouldCollect() {
			vm.collect()
		}
	}
}

func (vm *VM) collect() {
	// Module keys are fixed once up front: Go randomizes map iteration order
	// between passes, so ranging over vm.modules twice (once to build roots,
	// once to write the remapped values back) could pair a key with another
	// module's value. Collecting into keys first makes both passes walk the
	// same fixed order.
	keys := make([]int32, 0, len(vm.modules))
	for k := range vm.modules {
		keys = append(keys, k)
	}

	roots := make([]heap.Value, 0, len(vm.stack)+len(vm.callStack)+1+len(keys)+len(vm.Chunk.Constants))
	roots = append(roots, vm.stack...)
	roots = append(roots, vm.env)
	for _, e := range vm.callStack {
		roots = append(roots, e.Env)
	}
	for _, k := range keys {
		roots = append(roots, vm.modules[k])
	}
	roots = append(roots, vm.Chunk.Constants...)

	remapped := vm.H.Collect(roots)

	n := len(vm.stack)
	copy(vm.stack, remapped[:n])
	vm.env = remapped[n]
	n++
	for i := range vm.callStack {
		vm.callStack[i].Env = remapped[n]
		n++
	}
	for _, k := range keys {
		vm.modules[k] = remapped[n]
		n++
	}
	copy(vm.Chunk.Constants, remapped[n:])
}
