package heap

// AllocClosure allocates a closure object: the entry pc and captured
// environment `Lambda` pushes per spec.md §4.6 ("pops (body_pc, arity)
// constants and pushes a closure value (body_pc, env)"). Arity rides in the
// header cell the same way tuple/binary length does, so ClosureArity can
// answer an arity mismatch without chasing the env chain.
func (h *Heap) AllocClosure(arity int, entryPC int32, env Value) Value {
	idx := h.push(closureHeader(arity))
	h.push(Value{kind: KInt, num: uint64(uint32(entryPC))})
	h.push(env)
	return Object(idx)
}

func closureHeader(n int) Value { return Value{kind: kClosureHeader, num: uint64(uint32(n))} }

// IsClosure reports whether v is a closure object.
func (h *Heap) IsClosure(v Value) bool {
	return v.kind == KObject && h.cells[v.AsHeapIndex()].kind == kClosureHeader
}

// ClosureArity returns the declared parameter count of closure v.
func (h *Heap) ClosureArity(v Value) int { return h.cells[v.AsHeapIndex()].headerLen() }

// ClosureEntry returns the bytecode offset closure v's body starts at.
func (h *Heap) ClosureEntry(v Value) int32 {
	return int32(uint32(h.cells[v.AsHeapIndex()+1].num))
}

// ClosureEnv returns the environment closure v captured at creation time.
func (h *Heap) ClosureEnv(v Value) Value { return h.cells[v.AsHeapIndex()+2] }

// AllocPrimitive allocates a primitive-function value identified by id, the
// index lang/primitive's registry uses to find the actual Go function: the
// heap only needs to carry enough to let Apply tell "this is a primitive"
// apart from "this is a closure" and route to the right native call.
func (h *Heap) AllocPrimitive(id int) Value {
	idx := h.push(primitiveHeader(id))
	return Object(idx)
}

func primitiveHeader(id int) Value { return Value{kind: kPrimitiveHeader, num: uint64(uint32(id))} }

// IsPrimitive reports whether v is a primitive-function value.
func (h *Heap) IsPrimitive(v Value) bool {
	return v.kind == KObject && h.cells[v.AsHeapIndex()].kind == kPrimitiveHeader
}

// PrimitiveID returns the registry index of primitive value v.
func (h *Heap) PrimitiveID(v Value) int { return h.cells[v.AsHeapIndex()].headerLen() }

// IsCallable reports whether v can appear as the target of Apply: a
// closure, a primitive, or one of the indexable "value as function" forms
// (spec.md §4.6 Apply step 1 and step 5).
func (h *Heap) IsCallable(v Value) bool {
	if h.IsClosure(v) || h.IsPrimitive(v) {
		return true
	}
	switch v.kind {
	case KPair:
		return true
	case KObject:
		if v.AsHeapIndex() == h.emptyMapIdx {
			return true
		}
		switch h.cells[v.AsHeapIndex()].kind {
		case kTupleHeader, kBinaryHeader, kMapHeader:
			return true
		}
	}
	return false
}
