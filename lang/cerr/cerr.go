// Package cerr defines the error-kind taxonomy spec.md §7 requires every
// pipeline stage to report through, and the runtime stack-trace shape the
// VM builds by walking its call stack when a runtime error halts the
// dispatch loop.
package cerr

import "fmt"

// Kind identifies which of spec.md §7's error categories an Error belongs
// to. Parse-time errors (ParseError via go/scanner.Error, PartialParse,
// CompileError) already have their own concrete, narrowly-scoped types in
// lang/parser and lang/compiler; Kind exists so lang/report can still
// classify and format any error uniformly without a type switch over every
// package's concrete type, and so lang/vm/lang/primitive - which have no
// natural home of their own for an error type - share one.
type Kind int

const (
	TypeError Kind = iota
	ArithmeticError
	KeyError
	EnvError
	StackError
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case TypeError:
		return "TypeError"
	case ArithmeticError:
		return "ArithmeticError"
	case KeyError:
		return "KeyError"
	case EnvError:
		return "EnvError"
	case StackError:
		return "StackError"
	case RuntimeError:
		return "RuntimeError"
	default:
		return "Error"
	}
}

// Frame is one entry of a runtime stack trace: the return-pc the VM was
// about to jump back to when the error fired, mapped through the chunk's
// file name (source positions are resolved by lang/report, which has
// access to the original source text; the VM itself only knows byte
// offsets).
type Frame struct {
	PC int32
}

// Error is the runtime-side error envelope (spec.md §7's Type/Arithmetic/
// Key/Env/Stack/Runtime kinds): set on the VM when an opcode's effect can't
// complete, causing the dispatch loop to stop at the next iteration.
type Error struct {
	Kind  Kind
	Msg   string
	Trace []Frame
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New constructs an *Error of the given kind with no trace attached yet;
// the VM fills Trace in once it unwinds the call stack (see lang/vm).
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
