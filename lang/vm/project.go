package vm

import (
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/compiler"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/parser"
)

// ModuleSource is one project file destined to become an importable module
// (spec.md §4.4): Name is the string every `import "Name"` statement in the
// project refers to it by.
type ModuleSource struct {
	Name     string
	Filename string
	Src      []byte
}

// LoadProject parses and compiles an entire project - the entry file plus
// every additional module source (extra command-line files and any
// CASSETTE_STDLIB directory, per spec.md §6.1) - into a single Chunk and
// returns a VM ready to Run it from pc 0.
//
// Every module thunk's closure is built by bytecode the combined program
// runs before anything else (one Push<addr>;Push<0>;Lambda;Define<id> burst
// per module), not by lang/vm constructing heap.Value closures directly in
// Go: a thunk's captured environment must be the exact (modules-frame,
// primitive-frame) pair the rest of the program starts with (compileImport's
// `modDepth := c.env.Depth() - 2` arithmetic assumes it), and at the moment
// this function runs, that pair does not exist yet - only New, building the
// VM, can allocate it. Running Define<id> before any frame is Extended
// writes directly into the modules frame (the VM's literal innermost frame
// at that point), which is exactly the slot compileImport's Lookup<depth><id>
// expects to read the thunk from.
func LoadProject(h *heap.Heap, prims []Primitive, mainFilename string, mainSrc []byte, modules []ModuleSource) (*VM, error) {
	chunk, numModules, err := BuildProject(h, prims, mainFilename, mainSrc, modules)
	if err != nil {
		return nil, err
	}
	return New(h, chunk, prims, make([]heap.Value, numModules)), nil
}

// BuildProject is LoadProject's compile-only half: it parses and compiles
// the entry file plus every module source into one linked Chunk, without
// building a VM to run it. internal/maincmd's compile command (the `-c`
// flag, spec.md §6.1/§6.2) uses this directly to write a .tape file without
// also constructing and discarding a VM; LoadProject itself calls this then
// wraps the result with New.
func BuildProject(h *heap.Heap, prims []Primitive, mainFilename string, mainSrc []byte, modules []ModuleSource) (*asm.Chunk, int, error) {
	primNames := make([]string, len(prims))
	for i, p := range prims {
		primNames[i] = p.Name
	}
	moduleNames := make([]string, len(modules))
	for i, m := range modules {
		moduleNames[i] = m.Name
	}

	mainAST, err := parser.Parse(h, mainFilename, mainSrc)
	if err != nil {
		return nil, 0, err
	}
	mainSeq, err := compiler.Compile(h, mainAST, primNames, moduleNames)
	if err != nil {
		return nil, 0, err
	}

	moduleSeqs := make([]compiler.Sequence, len(modules))
	for i, m := range modules {
		modAST, err := parser.Parse(h, m.Filename, m.Src)
		if err != nil {
			return nil, 0, err
		}
		seq, err := compiler.CompileModule(h, modAST, primNames, moduleNames, i)
		if err != nil {
			return nil, 0, err
		}
		moduleSeqs[i] = seq
	}

	chunk, err := linkProject(h, mainSeq, moduleSeqs)
	if err != nil {
		return nil, 0, err
	}
	return chunk, len(modules), nil
}

// linkProject splices the main program and every module thunk body into one
// flat instruction stream and assembles it into a Chunk. Each input
// Sequence was produced by its own independent compiler.ctx, so their label
// ids all start at 0 and would collide if concatenated as-is; renumberLabels
// gives each one a disjoint range before splicing.
func linkProject(h *heap.Heap, mainSeq compiler.Sequence, moduleSeqs []compiler.Sequence) (*asm.Chunk, error) {
	nextLabel := 0
	bodyLabel := make([]int, len(moduleSeqs))
	for i := range moduleSeqs {
		bodyLabel[i] = nextLabel
		nextLabel++
	}

	mainSeq, nextLabel = renumberLabels(mainSeq, nextLabel)
	renumbered := make([]compiler.Sequence, len(moduleSeqs))
	for i, s := range moduleSeqs {
		renumbered[i], nextLabel = renumberLabels(s, nextLabel)
	}

	var all []compiler.Stmt
	for i := range moduleSeqs {
		all = append(all,
			compiler.Stmt{Op: asm.Push, Label: bodyLabel[i], HasLabel: true, IsAddr: true},
			compiler.Stmt{Op: asm.Push, Value: heap.Int(0), IsValue: true},
			compiler.Stmt{Op: asm.LAMBDA},
			compiler.Stmt{Op: asm.DEFINE, A: int32(i)},
		)
	}
	all = append(all, mainSeq.Stmts...)
	all = append(all, compiler.Stmt{Op: asm.HALT})
	for i, s := range renumbered {
		all = append(all, compiler.Stmt{IsLabel: true, Label: bodyLabel[i]})
		all = append(all, s.Stmts...)
	}

	return compiler.Assemble(h, compiler.Sequence{Stmts: all})
}

// renumberLabels offsets every label id a Sequence defines or references by
// base, so a later Sequence's labels (also starting from 0 in its own ctx)
// can be spliced in after it without colliding. It returns the next unused
// label id, for the following renumberLabels call to start from.
func renumberLabels(s compiler.Sequence, base int) (compiler.Sequence, int) {
	next := base
	out := make([]compiler.Stmt, len(s.Stmts))
	for i, st := range s.Stmts {
		if st.IsLabel || st.HasLabel {
			st.Label += base
			if st.Label >= next {
				next = st.Label + 1
			}
		}
		out[i] = st
	}
	return compiler.Sequence{Needs: s.Needs, Modifies: s.Modifies, Stmts: out}, next
}
