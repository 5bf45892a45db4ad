// Package asm implements the bytecode instruction set, the two-pass
// assembler that turns a compiler.Sequence into a linear Chunk, and the
// binary .tape chunk file format (spec.md §4.5, §4.6, §6.2).
package asm

import "fmt"

// Op identifies a VM instruction.
type Op uint8

//nolint:revive
const (
	NOP Op = iota

	// stack
	POP
	DUP
	SWAP

	// literals
	NILV
	CONST // CONST<idx>: push constants[idx]
	INT   // INT<n>: push small int n (one-byte signed immediate)
	STR   // pop symbol, push binary built from its name

	// arithmetic
	ADD
	SUB
	MUL
	DIV
	REM
	NEG

	// comparison
	EQ
	GT
	LT
	NOT

	// collections
	PAIR  // pop head, pop tail, push pair(head, tail)
	TUPLE // TUPLE<n>: allocate an n-slot tuple
	SET   // SET<i>: pop value, set tuple[i] (tuple stays on stack)
	GET   // pop index, pop collection, push elem
	MAPV  // push a fresh empty map
	PUT   // pop key, pop value, pop map, push updated map
	LEN
	IN

	// environment
	EXTEND // pop tuple, push as new frame
	EXPORT // push the innermost frame as a map
	DEFINE // DEFINE<slot>: pop value, write to slot in top frame
	LOOKUP // LOOKUP<depth><slot>: read value

	// control
	JUMP   // JUMP<off>
	BRANCH // BRANCH<off>: branch on truthy, does not pop
	LINK   // LINK<off>: push (env, return-pc)
	APPLY  // APPLY<n>
	RETURN
	HALT

	// closures
	LAMBDA // pops (body_pc, arity) constants, pushes a closure

	// modules
	MODULE // MODULE<id>: cache the top-of-stack export map under id
	LOAD   // LOAD<id>: push the cached export map for id, or Nil

	// register save/restore, emitted by compiler.Preserving around a
	// sub-sequence that clobbers a register a later sub-sequence needs
	// (spec.md §4.4); not part of the VM's visible state, just stack traffic.
	PUSHENV
	POPENV
	PUSHCONT
	POPCONT

	opMax
)

// argWidth reports how many argument bytes follow the opcode byte; every
// width is fixed (JUMP/BRANCH/LINK use a 4-byte relative offset, LOOKUP two
// bytes for depth and slot, and everything else with an argument a single
// byte; only the assembler's Push pseudo-op chooses between INT and a CONST
// pool index - see assembler.go).
func (op Op) argWidth() int {
	switch op {
	case JUMP, BRANCH, LINK:
		return 4
	case CONST, INT, TUPLE, SET, DEFINE, APPLY, MODULE, LOAD:
		return 1
	case LOOKUP:
		return 2
	default:
		return 0
	}
}

// HasArg reports whether op carries at least one argument byte.
func (op Op) HasArg() bool { return op.argWidth() != 0 }

// ArgWidth exposes argWidth to other packages (lang/vm's decode loop,
// lang/compiler's assembler bridge) without making the whole Op internals
// public.
func (op Op) ArgWidth() int { return op.argWidth() }

var opNames = [...]string{
	NOP: "nop", POP: "pop", DUP: "dup", SWAP: "swap",
	NILV: "nil", CONST: "const", INT: "int", STR: "str",
	ADD: "add", SUB: "sub", MUL: "mul", DIV: "div", REM: "rem", NEG: "neg",
	EQ: "eq", GT: "gt", LT: "lt", NOT: "not",
	PAIR: "pair", TUPLE: "tuple", SET: "set", GET: "get",
	MAPV: "map", PUT: "put", LEN: "len", IN: "in",
	EXTEND: "extend", EXPORT: "export", DEFINE: "define", LOOKUP: "lookup",
	JUMP: "jump", BRANCH: "branch", LINK: "link", APPLY: "apply",
	RETURN: "return", HALT: "halt",
	LAMBDA: "lambda",
	MODULE: "module", LOAD: "load",
	PUSHENV: "pushenv", POPENV: "popenv", PUSHCONT: "pushcont", POPCONT: "popcont",
}

func (op Op) String() string {
	if op < opMax {
		if n := opNames[op]; n != "" {
			return n
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}
