package compiler

import (
	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/compileenv"
	"github.com/mna/cassette/lang/heap"
)

// CompileModule compiles a project file as an importable module's thunk
// body (spec.md §4.4 "module M (in a named file)"): every top-level
// def/let/aliased-import name still in scope at the end of the file becomes
// one entry of the exported map, built directly with Map/Put from the
// compile-time frame's own Names rather than the opcode table's Export
// (lang/vm's EXPORT opcode cannot recover binding names from an anonymous
// runtime frame tuple - see DESIGN.md).
//
// The body is wrapped in a Load<id>/Module<id> guard implementing spec.md
// §4.4's memoization ("the first run of a module thunk allocates the
// export map and caches it; subsequent imports lookup the cache"): moduleID
// both selects the modules-frame slot the thunk itself occupies (so
// lang/vm.LoadProject's DEFINE<moduleID> and this function's cache id
// always agree) and the VM-level module cache key Module/Load read and
// write.
//
// The returned Sequence is a lambda BODY, not a standalone program: it ends
// with Return and expects its caller (lang/vm.LoadProject) to wrap it with
// the usual Push<addr>;Push<arity>;Lambda header before splicing it into the
// combined chunk.
func CompileModule(h *heap.Heap, chunk heap.Value, primNames, moduleNames []string, moduleID int) (Sequence, error) {
	c := &ctx{h: h, env: compileenv.New(primNames), modules: make(map[string]int)}

	modFrame := c.env.Push()
	for i, name := range moduleNames {
		modFrame.Add(name)
		c.modules[name] = i
	}

	stmts := ast.ListItems(h, ast.Field(h, chunk, 1))

	bindingCount := 0
	for _, st := range stmts {
		switch tag, _ := ast.TagOf(h, st); tag {
		case ast.TagLet, ast.TagDef:
			bindingCount++
		case ast.TagImport:
			if !ast.Field(h, st, 2).IsNil() {
				bindingCount++
			}
		}
	}

	// A frame is only opened (and Extended at runtime) when the file
	// actually binds a name, exactly like compileBlockStmts: a binding-free
	// file runs directly against the modules frame, keeping compile-time
	// depth in sync with what actually executes.
	var frame *compileenv.Frame
	header := empty()
	if bindingCount > 0 {
		frame = c.env.Push()
		header = seq(regSet(), regSet(RegEnv), op1(asm.TUPLE, int32(bindingCount)), op0(asm.EXTEND))
		for _, st := range stmts {
			if tag, _ := ast.TagOf(h, st); tag == ast.TagDef {
				frame.Add(identName(h, ast.Field(h, st, 1)))
			}
		}
	}

	body := header
	for _, st := range stmts {
		if tag, _ := ast.TagOf(h, st); tag == ast.TagModuleDecl {
			continue
		}
		body = Append(body, c.compileStmt(st, LinkNext, frame, true))
	}

	var exportNames []string
	if frame != nil {
		exportNames = append([]string(nil), frame.Names...)
		c.env.Pop() // the file's own top frame, only opened when bindingCount > 0
	}
	c.env.Pop() // the modules frame pushed above

	if c.firstErr != nil {
		return Sequence{}, c.firstErr
	}

	buildExport := seq(regSet(), regSet(), op0(asm.MAPV))
	for i, name := range exportNames {
		sym, _ := h.Syms.Intern(name)
		lookup := seq(regSet(), regSet(), op2(asm.LOOKUP, 0, int32(i)))
		key := seq(regSet(), regSet(), push(sym))
		put := seq(regSet(), regSet(), op0(asm.PUT))
		buildExport = Append(buildExport, Append(lookup, Append(key, put)))
	}

	cacheHit := c.newLabel()

	full := seq(regSet(), regSet(), op1(asm.LOAD, int32(moduleID)))
	full = Append(full, seq(regSet(), regSet(), jumpTo(asm.BRANCH, cacheHit)))
	full = Append(full, seq(regSet(), regSet(), op0(asm.POP)))
	full = Append(full, body)
	full = Append(full, buildExport)
	full = Append(full, seq(regSet(), regSet(), op1(asm.MODULE, int32(moduleID))))
	full = Append(full, seq(regSet(), regSet(), labelDef(cacheHit)))
	full = Append(full, seq(regSet(RegCont), regSet(), op0(asm.RETURN)))

	return full, nil
}
