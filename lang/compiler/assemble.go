package compiler

import (
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/heap"
)

// Assemble lowers a finished Sequence (as returned by Compile) into a
// loadable asm.Chunk, delegating the actual two-pass label resolution to
// lang/asm so the instruction-stream format is defined in exactly one
// place.
func Assemble(h *heap.Heap, s Sequence) (*asm.Chunk, error) {
	instrs := make([]asm.Instr, len(s.Stmts))
	for i, st := range s.Stmts {
		instrs[i] = asm.Instr{
			Op:       stmtOp(st),
			A:        st.A,
			B:        st.B,
			Value:    st.Value,
			IsValue:  st.IsValue,
			Label:    st.Label,
			HasLabel: st.HasLabel,
			IsLabel:  st.IsLabel,
			IsAddr:   st.IsAddr,
		}
	}
	return asm.Assemble(h, instrs)
}

// stmtOp maps the compiler's opPush pseudo-opcode to asm.Push: both
// packages define the same sentinel value independently so lang/asm does
// not need to import lang/compiler (which imports lang/asm already).
func stmtOp(st Stmt) asm.Op {
	if st.Op == opPush {
		return asm.Push
	}
	return st.Op
}
