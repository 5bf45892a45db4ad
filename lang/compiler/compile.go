package compiler

import (
	"fmt"

	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/compileenv"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/token"
)

// ModuleThunk pairs a project source file's module name with its compiled
// zero-argument thunk body. Nothing in this package builds one: CompileModule
// returns the body Sequence directly, and that body builds its export map
// with Map/Put (it does not emit Export) and caches it with Module/Load.
type ModuleThunk struct {
	Name  string
	Entry Sequence
}

// ctx holds one compilation's mutable state: the heap (for interning and
// literal construction), the compile-time environment, and the label
// allocator.
type ctx struct {
	h        *heap.Heap
	env      *compileenv.Env
	labels   int
	modules  map[string]int // module path -> slot in the reserved modules frame
	firstErr error
}

func (c *ctx) newLabel() int {
	c.labels++
	return c.labels
}

func (c *ctx) fail(pos token.Pos, format string, args ...interface{}) {
	if c.firstErr == nil {
		c.firstErr = &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	}
}

// CompileError reports a spec.md §7 CompileError: undefined variable,
// duplicate module, module not found, arity mismatch, or malformed form.
type CompileError struct {
	Pos token.Pos
	Msg string
}

func (e *CompileError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// Compile compiles a parsed chunk (ast.TagChunk) into a top-level Sequence
// ending with Return, given the ordered list of primitive names (which
// become frame 0, the primitive frame, per spec.md §4.3) and the ordered
// list of module names already known to the project (frame 1, the modules
// frame, each slot holding that module's zero-arg thunk).
func Compile(h *heap.Heap, chunk heap.Value, primNames, moduleNames []string) (Sequence, error) {
	c := &ctx{h: h, env: compileenv.New(primNames), modules: make(map[string]int)}

	modFrame := c.env.Push()
	for i, name := range moduleNames {
		modFrame.Add(name)
		c.modules[name] = i
	}

	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))
	s := c.compileBlockStmts(stmts, LinkReturn)
	if c.firstErr != nil {
		return Sequence{}, c.firstErr
	}
	return s, nil
}

// compileBlock compiles a TagBlock node (field 1 is the stmt list) with its
// own fresh frame.
func (c *ctx) compileBlock(block heap.Value, linkage Linkage) Sequence {
	stmts := ast.ListItems(c.h, ast.Field(c.h, block, 1))
	return c.compileBlockStmts(stmts, linkage)
}

// compileBlockStmts compiles a raw statement list. Per spec.md §4.4, a fresh
// frame is only extended when the block actually binds a name (let/def, or
// an aliased import): binding-free blocks run directly against the
// enclosing frame, keeping compile-time depth in sync with what actually
// runs at run time. def names are pre-bound before any statement compiles,
// to allow mutual recursion within the block; each non-terminal statement
// has its result popped.
func (c *ctx) compileBlockStmts(stmts []heap.Value, linkage Linkage) Sequence {
	bindingCount := 0
	for _, st := range stmts {
		switch tag, _ := ast.TagOf(c.h, st); tag {
		case ast.TagLet, ast.TagDef:
			bindingCount++
		case ast.TagImport:
			if !ast.Field(c.h, st, 2).IsNil() {
				bindingCount++
			}
		}
	}

	var frame *compileenv.Frame
	header := empty()
	if bindingCount > 0 {
		frame = c.env.Push()
		header = seq(regSet(), regSet(RegEnv), op1(asm.TUPLE, int32(bindingCount)), op0(asm.EXTEND))

		// pre-bind every def name so mutual recursion resolves at compile time;
		// 'let'/'import' names are bound to their slot as they're compiled, in
		// source order, matching the runtime Define order.
		for _, st := range stmts {
			if tag, _ := ast.TagOf(c.h, st); tag == ast.TagDef {
				frame.Add(identName(c.h, ast.Field(c.h, st, 1)))
			}
		}
	}

	out := header
	for i, st := range stmts {
		last := i == len(stmts)-1
		stLinkage := LinkNext
		if last {
			stLinkage = linkage
		}
		out = Append(out, c.compileStmt(st, stLinkage, frame, !last))
	}
	if len(stmts) == 0 {
		out = Append(out, EndWithLinkage(linkage, seq(regSet(), regSet(), push(heap.Nil))))
	}
	if bindingCount > 0 {
		c.env.Pop()
	}
	return out
}

// compileStmt compiles one block statement. frame is the block's own
// compile-time frame (already pushed); popResult tells non-terminal
// statements to discard their value.
func (c *ctx) compileStmt(st heap.Value, linkage Linkage, frame *compileenv.Frame, popResult bool) Sequence {
	tag, _ := ast.TagOf(c.h, st)
	switch tag {
	case ast.TagLet:
		return c.compileLet(st, linkage, frame, popResult)
	case ast.TagSet:
		return c.compileSet(st, linkage, popResult)
	case ast.TagDef:
		return c.compileDef(st, linkage, frame, popResult)
	case ast.TagImport:
		return c.compileImport(st, linkage, frame, popResult)
	case ast.TagModuleDecl:
		// module name declarations carry no runtime effect in this compiler;
		// the module-thunk wrapping happens at the project level (see
		// lang/vm.LoadProject), not per-statement.
		return Sequence{}
	case ast.TagExprStmt:
		e := ast.Field(c.h, st, 1)
		s := c.compileExpr(e, linkage)
		if popResult && !linkage.Return && !linkage.HasRef {
			s = Append(s, seq(regSet(), regSet(), op0(asm.POP)))
		}
		return s
	default:
		c.fail(ast.Pos(c.h, st), "malformed statement")
		return Sequence{}
	}
}

func identName(h *heap.Heap, ident heap.Value) string {
	return h.Syms.MustName(ast.Field(h, ident, 1).AsSymbolHash())
}

func (c *ctx) compileLet(st heap.Value, linkage Linkage, frame *compileenv.Frame, popResult bool) Sequence {
	name := identName(c.h, ast.Field(c.h, st, 1))
	valExpr := ast.Field(c.h, st, 2)

	valSeq := c.compileExpr(valExpr, LinkNext)
	slot := frame.Add(name)

	define := seq(regSet(RegEnv), regSet(),
		op1(asm.DEFINE, int32(slot)),
	)
	out := Append(valSeq, define)
	if !popResult {
		out = Append(out, seq(regSet(), regSet(), push(heap.Nil)))
		return EndWithLinkage(linkage, out)
	}
	return out
}

// compileSet resolves the optional rebinding extension `set x = e`
// (spec.md §9 decision): x must already be bound, compile-time, in some
// open frame (an undefined target is a CompileError); the value is
// recomputed and redefined at its existing slot.
func (c *ctx) compileSet(st heap.Value, linkage Linkage, popResult bool) Sequence {
	targetIdent := ast.Field(c.h, st, 1)
	name := identName(c.h, targetIdent)
	depth, slot, err := c.env.Find(name)
	if err != nil {
		c.fail(ast.Pos(c.h, st), "set: %s", err)
	}
	valExpr := ast.Field(c.h, st, 2)
	valSeq := c.compileExpr(valExpr, LinkNext)

	// Define always targets the top frame, so only a target in the innermost
	// frame (depth == 0) can be rebound, with a direct Define; a target found
	// in an outer frame is a compile error.
	var assign Sequence
	if depth == 0 {
		assign = seq(regSet(RegEnv), regSet(), op1(asm.DEFINE, int32(slot)))
	} else {
		// not directly definable without walking the env chain at runtime; the
		// VM's Define always targets the top frame, so re-binding an outer
		// frame's slot is out of scope for this opcode set and is rejected at
		// compile time instead of silently rebinding the wrong frame.
		c.fail(ast.Pos(c.h, st), "set: %q is not in the innermost scope, only local rebinding is supported", name)
		assign = seq(regSet(), regSet(), op0(asm.POP))
	}

	out := Append(valSeq, assign)
	if !popResult {
		out = Append(out, seq(regSet(), regSet(), push(heap.Nil)))
		return EndWithLinkage(linkage, out)
	}
	return out
}

// compileDef desugars `def (f a b) body` to `let f = (a b) -> body`
// (spec.md §4.2's table), reusing frame's pre-bound slot for f so other defs
// in the same block can call it (mutual recursion).
func (c *ctx) compileDef(st heap.Value, linkage Linkage, frame *compileenv.Frame, popResult bool) Sequence {
	name := identName(c.h, ast.Field(c.h, st, 1))
	params := ast.Field(c.h, st, 2)
	body := ast.Field(c.h, st, 3)

	lamSeq := c.compileLambda(params, body, ast.Pos(c.h, st))

	slot := -1
	for i, n := range frame.Names {
		if n == name {
			slot = i
		}
	}
	if slot < 0 {
		slot = frame.Add(name)
	}
	define := seq(regSet(RegEnv), regSet(), op1(asm.DEFINE, int32(slot)))
	out := Append(lamSeq, define)
	if !popResult {
		out = Append(out, seq(regSet(), regSet(), push(heap.Nil)))
		return EndWithLinkage(linkage, out)
	}
	return out
}

// compileImport compiles `import M [as A | as *]` (spec.md §4.4): M must
// already be a known project module (registered in the modules frame before
// compilation starts, see Compile's moduleNames parameter).
func (c *ctx) compileImport(st heap.Value, linkage Linkage, frame *compileenv.Frame, popResult bool) Sequence {
	path := c.h.GoString(ast.Field(c.h, st, 1))
	aliasNode := ast.Field(c.h, st, 2)

	idx, ok := c.modules[path]
	if !ok {
		c.fail(ast.Pos(c.h, st), "import: module %q not found in project", path)
		idx = 0
	}
	modDepth := c.env.Depth() - 2 // the modules frame sits just above the primitive frame
	lookupThunk := seq(regSet(), regSet(), op2(asm.LOOKUP, int32(modDepth), int32(idx)))
	call := seq(regSet(RegEnv), regSet(RegEnv), op1(asm.APPLY, 0))
	exports := Append(lookupThunk, call)

	if aliasNode.IsNil() {
		// 'as *' (spec.md §4.4): import every export name known... at compile
		// time we do not track per-module export name lists, so '*' imports are
		// bound through a single frame slot holding the export map itself, and
		// member access (M.export) resolves it dynamically via TagDot/GET at
		// each use site rather than per-name compile-time bindings. This is a
		// deliberate, documented narrowing of the wildcard form (see DESIGN.md).
		slot := frame.Add("*")
		define := seq(regSet(RegEnv), regSet(), op1(asm.DEFINE, int32(slot)))
		out := Append(exports, define)
		if !popResult {
			out = Append(out, seq(regSet(), regSet(), push(heap.Nil)))
			return EndWithLinkage(linkage, out)
		}
		return out
	}

	// Bare `import M` (aliasNode carries M's own name, set by the parser) and
	// `import M as A` both land here: the export map is bound under a single
	// name, matching original_source/src/rec/compile.c's CompileImport, which
	// always Defines a variable rather than discarding the result.
	aliasName := identName(c.h, aliasNode)
	slot := frame.Add(aliasName)
	define := seq(regSet(RegEnv), regSet(), op1(asm.DEFINE, int32(slot)))
	out := Append(exports, define)
	if !popResult {
		out = Append(out, seq(regSet(), regSet(), push(heap.Nil)))
		return EndWithLinkage(linkage, out)
	}
	return out
}
