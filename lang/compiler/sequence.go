// Package compiler turns the heap-pair AST into instruction sequences, per
// the SICP-derived register-tracking design in spec.md §4.4: every
// compilation function returns a Sequence annotated with the VM registers it
// needs and modifies, and sequences are stitched together with combinators
// that insert register save/restore pairs only where actually necessary.
package compiler

import (
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/heap"
)

// Reg identifies one of the two VM registers a Sequence may read or clobber.
type Reg uint8

const (
	RegEnv Reg = 1 << iota
	RegCont
)

// RegSet is a set of Reg values.
type RegSet uint8

func regSet(regs ...Reg) RegSet {
	var s RegSet
	for _, r := range regs {
		s |= RegSet(r)
	}
	return s
}

func (s RegSet) has(r Reg) bool    { return s&RegSet(r) != 0 }
func (s RegSet) union(o RegSet) RegSet { return s | o }
func (s RegSet) without(o RegSet) RegSet { return s &^ o }

// Stmt is one element of a Sequence's instruction list: a real opcode, a
// literal push (the assembler picks INT vs CONST), a label definition, or
// nothing (labels/refs carry no code bytes, per spec.md §4.5).
type Stmt struct {
	Op       asm.Op
	A, B     int32      // opcode-specific integer arguments
	Value    heap.Value // for opPush: the literal to push
	IsValue  bool
	Label    int  // target label id, valid when HasLabel
	HasLabel bool
	IsLabel  bool // this Stmt defines label Label rather than emitting code
	IsAddr   bool // for opPush with HasLabel: push the label's resolved address, not jump to it
}

// opPush is a pseudo-opcode recognized only by the assembler: "push this
// literal value", resolved to INT (one-byte immediate) or CONST<idx> (pool
// reference) during assembly.
const opPush asm.Op = 0xff

func push(v heap.Value) Stmt        { return Stmt{Op: opPush, Value: v, IsValue: true} }
func op0(o asm.Op) Stmt             { return Stmt{Op: o} }
func op1(o asm.Op, a int32) Stmt    { return Stmt{Op: o, A: a} }
func op2(o asm.Op, a, b int32) Stmt { return Stmt{Op: o, A: a, B: b} }
func jumpTo(o asm.Op, label int) Stmt {
	return Stmt{Op: o, Label: label, HasLabel: true}
}
func labelDef(id int) Stmt { return Stmt{IsLabel: true, Label: id} }

// Sequence is `{needs, modifies, stmts}` from spec.md §4.4.
type Sequence struct {
	Needs, Modifies RegSet
	Stmts           []Stmt
}

func seq(needs, modifies RegSet, stmts ...Stmt) Sequence {
	return Sequence{Needs: needs, Modifies: modifies, Stmts: stmts}
}

func empty() Sequence { return Sequence{} }

// Append concatenates a then b: the combined sequence needs whatever a needs
// plus whatever b needs that a didn't already guarantee by modifying it.
func Append(a, b Sequence) Sequence {
	return Sequence{
		Needs:    a.Needs.union(b.Needs.without(a.Modifies)),
		Modifies: a.Modifies.union(b.Modifies),
		Stmts:    concat(a.Stmts, b.Stmts),
	}
}

func AppendAll(seqs ...Sequence) Sequence {
	out := empty()
	for _, s := range seqs {
		out = Append(out, s)
	}
	return out
}

// Parallel combines two sequences that are never both executed (the two
// branches of an if), so registers are simply unioned with no ordering
// dependency between them.
func Parallel(a, b Sequence) Sequence {
	return Sequence{
		Needs:    a.Needs.union(b.Needs),
		Modifies: a.Modifies.union(b.Modifies),
		Stmts:    concat(a.Stmts, b.Stmts),
	}
}

// TackOn appends out-of-line code (e.g. a lambda body after the jump that
// skips over it) without affecting the register bookkeeping of a: the
// tacked-on code runs in a separate control path, not in sequence with a's
// own needs/modifies.
func TackOn(a, b Sequence) Sequence {
	return Sequence{
		Needs:    a.Needs,
		Modifies: a.Modifies,
		Stmts:    concat(a.Stmts, b.Stmts),
	}
}

// Preserving wraps a with save/restore of every register in regs that a
// modifies and b needs, then appends b. This is the optimization that
// avoids emitting a save/restore pair when it can prove one is unnecessary
// (spec.md §4.4).
func Preserving(regs RegSet, a, b Sequence) Sequence {
	var toSave []Reg
	for _, r := range []Reg{RegEnv, RegCont} {
		if regs.has(r) && a.Modifies.has(r) && b.Needs.has(r) {
			toSave = append(toSave, r)
		}
	}
	if len(toSave) == 0 {
		return Append(a, b)
	}

	wrapped := a
	for _, r := range toSave {
		wrapped = Sequence{
			Needs:    wrapped.Needs.union(regSet(r)),
			Modifies: wrapped.Modifies,
			Stmts:    concat([]Stmt{saveReg(r)}, concat(wrapped.Stmts, []Stmt{restoreReg(r)})),
		}
	}
	return Append(wrapped, b)
}

// saveReg/restoreReg model spec.md's SaveReg/RestoreReg: env and cont are
// saved by pushing their current value on the operand stack, and restored by
// popping back into the register (asm.PUSHENV/POPENV/PUSHCONT/POPCONT).
func saveReg(r Reg) Stmt {
	if r == RegEnv {
		return op0(asm.PUSHENV)
	}
	return op0(asm.PUSHCONT)
}

func restoreReg(r Reg) Stmt {
	if r == RegEnv {
		return op0(asm.POPENV)
	}
	return op0(asm.POPCONT)
}

// Linkage describes what should happen after a value-producing sequence
// finishes, per spec.md §4.4.
type Linkage struct {
	Return bool
	Label  int
	HasRef bool
}

var LinkNext = Linkage{}
var LinkReturn = Linkage{Return: true}

func LinkTo(label int) Linkage { return Linkage{HasRef: true, Label: label} }

// EndWithLinkage appends the code linkage demands after seq's value is on
// the stack.
func EndWithLinkage(linkage Linkage, s Sequence) Sequence {
	switch {
	case linkage.Return:
		return Append(s, seq(regSet(RegCont), regSet(), op0(asm.RETURN)))
	case linkage.HasRef:
		return Append(s, seq(regSet(), regSet(), jumpTo(asm.JUMP, linkage.Label)))
	default:
		return s
	}
}

func concat(a, b []Stmt) []Stmt {
	out := make([]Stmt, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
