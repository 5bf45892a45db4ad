package heap

import "fmt"

// Heap is an ordered, growable sequence of Value cells plus the symbol
// table, implementing the allocation rules of spec.md §3.2. Allocation is
// bump-pointer append; indices 0 and 1 are reserved for the nil pair.
type Heap struct {
	cells       []Value
	Syms        *SymbolTable
	gcSize      int       // live-size threshold that triggers the next collection
	emptyMapIdx HeapIndex // canonical, shared empty-map node
}

// New returns a heap with the nil pair pre-allocated at indices 0 and 1, the
// canonical empty map allocated next, and a fresh symbol table.
func New() *Heap {
	h := &Heap{
		cells:  make([]Value, 2, 256),
		Syms:   NewSymbolTable(),
		gcSize: 1 << 12,
	}
	// nil's head and tail both point back to nil itself.
	h.cells[0] = Nil
	h.cells[1] = Nil
	h.emptyMapIdx = h.push(mapHeader(0))
	h.push(Nil)
	h.push(Nil)
	return h
}

// Len returns the number of live cells currently allocated.
func (h *Heap) Len() int { return len(h.cells) }

func (h *Heap) push(v Value) HeapIndex {
	idx := HeapIndex(len(h.cells))
	h.cells = append(h.cells, v)
	return idx
}

func (h *Heap) cell(idx HeapIndex) Value { return h.cells[idx] }

// -- pairs --

// AllocPair allocates a new cons cell (head, tail) and returns the Pair
// value referencing it.
func (h *Heap) AllocPair(head, tail Value) Value {
	idx := h.push(head)
	h.push(tail)
	return Pair(idx)
}

// Head returns the head of pair v; v must be a KPair value.
func (h *Heap) Head(v Value) Value { return h.cells[v.AsHeapIndex()] }

// Tail returns the tail of pair v; v must be a KPair value.
func (h *Heap) Tail(v Value) Value { return h.cells[v.AsHeapIndex()+1] }

// -- tuples --

// AllocTuple allocates a tuple of n slots, all initialized to Nil, and
// returns the Object value referencing it (spec.md §3.2: at least one slot
// cell is always reserved even for a zero-length tuple).
func (h *Heap) AllocTuple(n int) Value {
	idx := h.push(tupleHeader(n))
	slots := n
	if slots < 1 {
		slots = 1
	}
	for i := 0; i < slots; i++ {
		h.push(Nil)
	}
	return Object(idx)
}

// TupleLen returns the number of slots in the tuple v.
func (h *Heap) TupleLen(v Value) int {
	return h.cells[v.AsHeapIndex()].headerLen()
}

// TupleGet returns slot i of tuple v.
func (h *Heap) TupleGet(v Value, i int) Value {
	return h.cells[v.AsHeapIndex()+1+HeapIndex(i)]
}

// TupleSet assigns slot i of tuple v to x.
func (h *Heap) TupleSet(v Value, i int, x Value) {
	h.cells[v.AsHeapIndex()+1+HeapIndex(i)] = x
}

// -- binaries --

// AllocBinary allocates a binary object from the given bytes, packed
// little-endian 4 bytes per cell (spec.md §3.2).
func (h *Heap) AllocBinary(data []byte) Value {
	idx := h.push(binaryHeader(len(data)))
	n := (len(data) + 3) / 4
	for i := 0; i < n; i++ {
		var b [4]byte
		copy(b[:], data[i*4:])
		h.push(Value{kind: KInt, num: uint64(
			uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24,
		)})
	}
	return Object(idx)
}

// BinaryLen returns the number of bytes in binary v.
func (h *Heap) BinaryLen(v Value) int {
	return h.cells[v.AsHeapIndex()].headerLen()
}

// BinaryBytes returns a fresh copy of the bytes held by binary v.
func (h *Heap) BinaryBytes(v Value) []byte {
	idx := v.AsHeapIndex()
	n := h.cells[idx].headerLen()
	out := make([]byte, n)
	cellIdx := idx + 1
	for i := 0; i < n; i += 4 {
		packed := uint32(h.cells[cellIdx].num)
		cellIdx++
		for j := 0; j < 4 && i+j < n; j++ {
			out[i+j] = byte(packed >> (8 * j))
		}
	}
	return out
}

// BinaryByte returns byte i of binary v.
func (h *Heap) BinaryByte(v Value, i int) byte {
	idx := v.AsHeapIndex()
	cellIdx := idx + 1 + HeapIndex(i/4)
	packed := uint32(h.cells[cellIdx].num)
	return byte(packed >> (8 * (i % 4)))
}

// NewString allocates a binary object from a Go string.
func (h *Heap) NewString(s string) Value { return h.AllocBinary([]byte(s)) }

// GoString reads a binary object back out as a Go string.
func (h *Heap) GoString(v Value) string { return string(h.BinaryBytes(v)) }

// -- structural equality & hashing (used by Eq, map keys, 'in') --

// Equal implements spec.md §4.6 Eq: identity for immediates, structural
// equality for pairs/tuples/binaries/maps.
func (h *Heap) Equal(a, b Value) bool {
	if a.kind != b.kind {
		// an Int and a Float holding the same numeric value are NOT equal,
		// matching the spec's tagged-immediate identity rule for Eq.
		return false
	}
	switch a.kind {
	case KFloat, KInt, KSymbol:
		return a == b
	case KPair:
		if a == b {
			return true
		}
		if a.IsNil() || b.IsNil() {
			return false
		}
		return h.Equal(h.Head(a), h.Head(b)) && h.Equal(h.Tail(a), h.Tail(b))
	case KObject:
		if a == b {
			return true
		}
		ha, hb := h.cells[a.AsHeapIndex()], h.cells[b.AsHeapIndex()]
		if ha.kind != hb.kind {
			return false
		}
		switch ha.kind {
		case kTupleHeader:
			if ha.headerLen() != hb.headerLen() {
				return false
			}
			for i := 0; i < ha.headerLen(); i++ {
				if !h.Equal(h.TupleGet(a, i), h.TupleGet(b, i)) {
					return false
				}
			}
			return true
		case kBinaryHeader:
			return string(h.BinaryBytes(a)) == string(h.BinaryBytes(b))
		case kMapHeader:
			return h.mapEqual(a, b)
		}
	}
	return false
}

// Hash computes a structural hash of v, used for map keys and for 'in' over
// persistent maps. It assumes acyclic structure, which holds for any value
// built purely from literals and language operators.
func (h *Heap) Hash(v Value) uint32 {
	switch v.kind {
	case KFloat:
		return uint32(v.num) ^ uint32(v.num>>32)
	case KInt:
		return uint32(v.num) * 2654435761
	case KSymbol:
		return v.AsSymbolHash() * 40503
	case KPair:
		if v.IsNil() {
			return 0x9e3779b9
		}
		hh := h.Hash(h.Head(v))
		th := h.Hash(h.Tail(v))
		return hh*31 + th
	case KObject:
		hdr := h.cells[v.AsHeapIndex()]
		switch hdr.kind {
		case kTupleHeader:
			acc := uint32(0x1234567)
			for i := 0; i < hdr.headerLen(); i++ {
				acc = acc*33 + h.Hash(h.TupleGet(v, i))
			}
			return acc
		case kBinaryHeader:
			return fold(h.GoString(v))
		case kMapHeader:
			// order-independent so structurally equal maps hash equal
			var acc uint32
			h.mapEach(v, func(k, val Value) {
				acc += h.Hash(k)*31 + h.Hash(val)
			})
			return acc
		}
	}
	panic(fmt.Sprintf("heap: Hash: unreachable kind %v", v.kind))
}
