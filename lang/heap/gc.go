package heap

// This file implements the Cheney two-space copying collector described in
// spec.md §4.7. Collect takes the flat list of root values supplied by the
// caller (the VM stack, call stack, registers and module cache, per
// spec.md §3.2) and returns the same roots remapped to their post-collection
// indices; the caller is responsible for writing the remapped values back
// into whatever structure held them (its stack slice, its register fields,
// etc.), since the Heap itself does not know the shape of those structures.
//
// The symbol table is untouched by collection: it stores only
// (hash, name) pairs with no heap-cell references, so unlike the pair/object
// graph it needs no relocation, and the spec's invariant that SymbolName
// stays valid after a cycle holds trivially rather than by re-interning.

// ShouldCollect reports whether the heap has grown past the threshold that
// triggers the next collection.
func (h *Heap) ShouldCollect() bool { return len(h.cells) > h.gcSize }

// Collect runs a full copying collection. roots is the flat list of every
// value reachable directly from a VM root (operand stack, call/link stack,
// env/cont registers, the module export cache, and any chunk constants the
// VM currently holds live); it returns those same values remapped to their
// addresses in the new heap, in the same order.
func (h *Heap) Collect(roots []Value) []Value {
	old := h.cells
	newCells := make([]Value, 0, len(old))
	// indices 0,1: the fixed nil pair; indices 2,3,4: the fixed empty map.
	newCells = append(newCells, Nil, Nil, mapHeader(0), Nil, Nil)
	const newEmptyIdx HeapIndex = 2

	var cp func(Value) Value
	cp = func(v Value) Value {
		switch v.kind {
		case KPair:
			if v.num == 0 {
				return Nil
			}
			idx := v.AsHeapIndex()
			if old[idx].kind == kMoved {
				return Pair(HeapIndex(old[idx].num))
			}
			newIdx := HeapIndex(len(newCells))
			newCells = append(newCells, old[idx], old[idx+1])
			old[idx] = moved(newIdx)
			return Pair(newIdx)

		case KObject:
			idx := v.AsHeapIndex()
			if idx == h.emptyMapIdx {
				return Object(newEmptyIdx)
			}
			if old[idx].kind == kMoved {
				return Object(HeapIndex(old[idx].num))
			}

			hdr := old[idx]
			var span int
			switch hdr.kind {
			case kTupleHeader:
				n := hdr.headerLen()
				if n < 1 {
					n = 1
				}
				span = 1 + n
			case kBinaryHeader:
				span = 1 + (hdr.headerLen()+3)/4
			case kMapHeader:
				if hdr.bitmap() == 0 {
					span = 3
				} else {
					span = 2
				}
			case kClosureHeader:
				span = 3
			default:
				span = 1
			}

			newIdx := HeapIndex(len(newCells))
			newCells = append(newCells, old[idx:idx+HeapIndex(span)]...)
			old[idx] = moved(newIdx)
			return Object(newIdx)

		default:
			// immediates (float, int, symbol) and header/moved cells copy
			// unchanged; this is what makes the generic per-cell scan loop below
			// safe to run over header cells too.
			return v
		}
	}

	remapped := make([]Value, len(roots))
	for i, r := range roots {
		remapped[i] = cp(r)
	}

	// Scan forward over the (growing) to-space, relocating every reachable
	// cell. Binary payload cells are raw packed bytes, not Values, and must be
	// skipped rather than passed through cp.
	for p := 5; p < len(newCells); p++ {
		cell := newCells[p]
		if cell.kind == kBinaryHeader {
			p += (cell.headerLen() + 3) / 4
			continue
		}
		newCells[p] = cp(cell)
	}

	h.cells = newCells
	h.emptyMapIdx = newEmptyIdx
	if h.gcSize < len(newCells)*2 {
		h.gcSize = len(newCells) * 2
	}
	return remapped
}
