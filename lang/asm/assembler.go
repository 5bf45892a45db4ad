package asm

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"

	"github.com/mna/cassette/lang/heap"
)

// Instr mirrors compiler.Stmt's shape without importing the compiler
// package (which already imports asm): a real opcode, a literal-push pseudo
// op, or a label definition. compiler.Assemble (in lang/compiler) builds
// these from a Sequence's Stmts; lang/asm never imports lang/compiler, so
// the conversion happens at the call site instead.
type Instr struct {
	Op       Op
	A, B     int32
	Value    heap.Value
	IsValue  bool
	Label    int
	HasLabel bool
	IsLabel  bool
	IsAddr   bool
}

// Push is the pseudo-opcode recognized only by Assemble: "push this literal
// value", resolved to INT (one-byte immediate) or CONST<idx> (pool
// reference) depending on whether it fits. It must not collide with any
// real Op value.
const Push Op = 0xff

// AssembleError reports a malformed instruction stream: a jump or address
// reference to a label that was never defined.
type AssembleError struct {
	Label int
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("asm: reference to undefined label L%d", e.Label)
}

// Assemble turns a flat instruction list into a Chunk, per spec.md §4.5's
// two-pass design: pass one walks the list to find each label's resolved
// byte offset (labels cost zero bytes), pass two emits the real opcode and
// argument bytes, promoting any push whose value doesn't fit a one-byte
// signed immediate into the constant pool, and resolving every label
// reference (LAMBDA body address, JUMP/BRANCH/LINK target) against the
// offsets pass one computed. Symbols referenced by a pooled constant are
// copied into the chunk's symbol table so the VM can re-intern them as it
// loads the chunk (spec.md §3.3, §6.2).
func Assemble(h *heap.Heap, instrs []Instr) (*Chunk, error) {
	offsets := make(map[int]int, 8)
	pos := 0
	for _, in := range instrs {
		if in.IsLabel {
			offsets[in.Label] = pos
			continue
		}
		pos += instrLen(in)
	}

	c := &Chunk{}
	pool := map[uint64]int{} // dedup key (see constKey) -> pool index
	var seenHashes []uint32  // symbols already copied into c.Symbols

	addConst := func(v heap.Value) int {
		key := constKey(v)
		if idx, ok := pool[key]; ok {
			return idx
		}
		idx := len(c.Constants)
		c.Constants = append(c.Constants, v)
		pool[key] = idx
		if v.Kind() == heap.KSymbol {
			seenHashes = internSymbol(h, c, seenHashes, v.AsSymbolHash())
		}
		return idx
	}

	var code []byte
	var firstErr error
	fail := func(label int) {
		if firstErr == nil {
			firstErr = &AssembleError{Label: label}
		}
	}

	pos = 0
	for _, in := range instrs {
		if in.IsLabel {
			continue
		}
		switch {
		case in.Op == Push:
			if in.IsAddr {
				off, ok := offsets[in.Label]
				if !ok {
					fail(in.Label)
					off = 0
				}
				idx := addConst(heap.Int(int32(off)))
				code = append(code, byte(CONST), byte(idx))
			} else if i, ok := smallInt(in.Value); ok {
				code = append(code, byte(INT), byte(int8(i)))
			} else {
				idx := addConst(in.Value)
				code = append(code, byte(CONST), byte(idx))
			}
		case in.HasLabel:
			target, ok := offsets[in.Label]
			if !ok {
				fail(in.Label)
			}
			rel := int32(target - (pos + 5))
			code = append(code, byte(in.Op))
			code = appendI32(code, rel)
		default:
			code = append(code, byte(in.Op))
			switch in.Op.argWidth() {
			case 1:
				code = append(code, byte(in.A))
			case 2:
				code = append(code, byte(in.A), byte(in.B))
			}
		}
		pos += instrLen(in)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	c.Code = code
	return c, nil
}

// instrLen reports the fixed byte length an instruction will occupy,
// independent of how Assemble's second pass eventually resolves its
// operand: a push is always opcode+1 byte (INT immediate or CONST index),
// and a label reference is always opcode+4 bytes (a relative offset), so
// pass one's offsets don't depend on pass two's constant-pool decisions.
func instrLen(in Instr) int {
	switch {
	case in.IsLabel:
		return 0
	case in.Op == Push:
		return 2
	case in.HasLabel:
		return 1 + 4
	default:
		return 1 + in.Op.argWidth()
	}
}

// smallInt reports whether v is a KInt value that fits the one-byte signed
// INT immediate, avoiding a constant-pool entry for common small literals.
func smallInt(v heap.Value) (int32, bool) {
	if v.Kind() != heap.KInt {
		return 0, false
	}
	n := v.AsInt()
	if n >= -128 && n <= 127 {
		return n, true
	}
	return 0, false
}

// constKey derives a dedup key for the constant pool; two Values with the
// same kind and payload bits collapse to the same pool slot. Pair/Object
// values key on heap index, so two structurally-equal but distinct
// allocations get separate pool entries; only immediates (int/float/symbol)
// actually dedup in practice, which covers every literal compile_expr.go
// ever pushes.
func constKey(v heap.Value) uint64 {
	return uint64(v.Kind())<<56 | uint64(rawBits(v))
}

func rawBits(v heap.Value) uint64 {
	switch v.Kind() {
	case heap.KInt:
		return uint64(uint32(v.AsInt()))
	case heap.KFloat:
		return math.Float64bits(v.AsFloat())
	case heap.KSymbol:
		return uint64(v.AsSymbolHash())
	default:
		return uint64(v.AsHeapIndex())
	}
}

// internSymbol copies hash's interned name into c.Symbols the first time
// it's referenced by a constant, returning the updated seen-hash list.
// golang.org/x/exp/slices.Contains does the membership check instead of a
// second map: the list stays short (one entry per distinct symbol the
// program's literals mention), so a linear scan over it costs nothing
// compared to the map it replaces.
func internSymbol(h *heap.Heap, c *Chunk, seen []uint32, hash uint32) []uint32 {
	if slices.Contains(seen, hash) {
		return seen
	}
	name, ok := h.Syms.Name(hash)
	if !ok {
		return seen
	}
	c.Symbols = append(c.Symbols, name)
	return append(seen, hash)
}

func appendI32(b []byte, v int32) []byte {
	u := uint32(v)
	return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}
