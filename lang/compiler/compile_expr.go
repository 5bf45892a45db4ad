package compiler

import (
	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/token"
)

// compileExpr dispatches on node's tag and returns a Sequence that leaves
// its value on the operand stack, threaded through linkage the way spec.md
// §4.4 describes: control-transferring forms (if/cond/do/and/or/call) decide
// for themselves how their branches end, everything else computes a bare
// value and lets EndWithLinkage apply the requested linkage uniformly.
func (c *ctx) compileExpr(node heap.Value, linkage Linkage) Sequence {
	tag, ok := ast.TagOf(c.h, node)
	if !ok {
		c.fail(ast.Pos(c.h, node), "malformed expression")
		return empty()
	}
	switch tag {
	case ast.TagIf:
		return c.compileIf(node, linkage)
	case ast.TagCond:
		return c.compileCond(node, linkage)
	case ast.TagDo:
		return c.compileBlock(ast.Field(c.h, node, 1), linkage)
	case ast.TagAnd:
		return c.compileAnd(node, linkage)
	case ast.TagOr:
		return c.compileOr(node, linkage)
	case ast.TagCall:
		return c.compileCall(node, linkage)
	case ast.TagLambda:
		return EndWithLinkage(linkage, c.compileLambda(ast.Field(c.h, node, 1), ast.Field(c.h, node, 2), ast.Pos(c.h, node)))
	default:
		return EndWithLinkage(linkage, c.compileBareExpr(node, tag))
	}
}

// compileBareExpr compiles the forms that just produce a value with no
// internal control-flow fork.
func (c *ctx) compileBareExpr(node heap.Value, tag ast.Tag) Sequence {
	switch tag {
	case ast.TagInt, ast.TagFloat, ast.TagString, ast.TagBoolLit, ast.TagSymbolLit:
		return seq(regSet(), regSet(), push(ast.Field(c.h, node, 1)))
	case ast.TagNilLit:
		return seq(regSet(), regSet(), op0(asm.NILV))
	case ast.TagIdent:
		return c.compileIdent(node)
	case ast.TagList:
		return c.compileListLit(node)
	case ast.TagTupleLit:
		return c.compileTupleLit(node)
	case ast.TagMapLit:
		return c.compileMapLit(node)
	case ast.TagIndex:
		return c.compileIndex(node)
	case ast.TagDot:
		return c.compileDot(node)
	case ast.TagUnary:
		return c.compileUnary(node)
	case ast.TagBinary:
		return c.compileBinary(node)
	default:
		c.fail(ast.Pos(c.h, node), "cannot compile %s here", tag)
		return empty()
	}
}

func (c *ctx) compileIdent(node heap.Value) Sequence {
	name := identName(c.h, node)
	depth, slot, err := c.env.Find(name)
	if err != nil {
		c.fail(ast.Pos(c.h, node), "%s", err)
		return seq(regSet(), regSet(), op0(asm.NILV))
	}
	return seq(regSet(RegEnv), regSet(), op2(asm.LOOKUP, int32(depth), int32(slot)))
}

// compileListLit builds a cassette list (nil-terminated Pair chain) from the
// last item backward: Nil, then for each item from last to first, compile
// it and Pair it onto the accumulated tail (spec.md §4.4).
func (c *ctx) compileListLit(node heap.Value) Sequence {
	items := ast.ListItems(c.h, ast.Field(c.h, node, 1))
	out := seq(regSet(), regSet(), op0(asm.NILV))
	for i := len(items) - 1; i >= 0; i-- {
		out = Append(out, c.compileExpr(items[i], LinkNext))
		out = Append(out, seq(regSet(), regSet(), op0(asm.PAIR)))
	}
	return out
}

func (c *ctx) compileTupleLit(node heap.Value) Sequence {
	items := ast.ListItems(c.h, ast.Field(c.h, node, 1))
	out := seq(regSet(), regSet(), op1(asm.TUPLE, int32(len(items))))
	for i, item := range items {
		out = Append(out, c.compileExpr(item, LinkNext))
		out = Append(out, seq(regSet(), regSet(), op1(asm.SET, int32(i))))
	}
	return out
}

// compileMapLit matches spec.md §4.4's "Map" form: Map, then per entry
// compile the value before the key (so Put pops key, then value, then map).
func (c *ctx) compileMapLit(node heap.Value) Sequence {
	kvs := ast.ListItems(c.h, ast.Field(c.h, node, 1))
	out := seq(regSet(), regSet(), op0(asm.MAPV))
	for i := 0; i+1 < len(kvs); i += 2 {
		k, v := kvs[i], kvs[i+1]
		out = Append(out, c.compileExpr(v, LinkNext))
		out = Append(out, c.compileExpr(k, LinkNext))
		out = Append(out, seq(regSet(), regSet(), op0(asm.PUT)))
	}
	return out
}

func (c *ctx) compileIndex(node heap.Value) Sequence {
	base := ast.Field(c.h, node, 1)
	idx := ast.Field(c.h, node, 2)
	out := c.compileExpr(base, LinkNext)
	out = Append(out, c.compileExpr(idx, LinkNext))
	out = Append(out, seq(regSet(), regSet(), op0(asm.GET)))
	return out
}

func (c *ctx) compileDot(node heap.Value) Sequence {
	base := ast.Field(c.h, node, 1)
	nameSym := ast.Field(c.h, node, 2)
	out := c.compileExpr(base, LinkNext)
	out = Append(out, seq(regSet(), regSet(), push(nameSym)))
	out = Append(out, seq(regSet(), regSet(), op0(asm.GET)))
	return out
}

func (c *ctx) compileUnary(node heap.Value) Sequence {
	opName := c.h.Syms.MustName(ast.Field(c.h, node, 1).AsSymbolHash())
	operand := ast.Field(c.h, node, 2)
	out := c.compileExpr(operand, LinkNext)
	switch opName {
	case "-":
		return Append(out, seq(regSet(), regSet(), op0(asm.NEG)))
	case "not":
		return Append(out, seq(regSet(), regSet(), op0(asm.NOT)))
	default:
		c.fail(ast.Pos(c.h, node), "unknown unary operator %q", opName)
		return out
	}
}

// compileBinary maps each operator symbol to its opcode. '..' is not an
// opcode: it is the range primitive (spec.md §4.8), compiled as a call into
// the primitive frame. '<=' and '>=' are synthesized from GT/LT plus NOT
// since the instruction set only has one comparison direction each way.
func (c *ctx) compileBinary(node heap.Value) Sequence {
	opName := c.h.Syms.MustName(ast.Field(c.h, node, 1).AsSymbolHash())
	left := ast.Field(c.h, node, 2)
	right := ast.Field(c.h, node, 3)
	pos := ast.Pos(c.h, node)

	if opName == ".." {
		return c.compilePrimitiveCallByName(pos, "..",
			c.compileExpr(left, LinkNext),
			c.compileExpr(right, LinkNext))
	}

	out := Append(c.compileExpr(left, LinkNext), c.compileExpr(right, LinkNext))
	switch opName {
	case "+":
		return Append(out, seq(regSet(), regSet(), op0(asm.ADD)))
	case "-":
		return Append(out, seq(regSet(), regSet(), op0(asm.SUB)))
	case "*":
		return Append(out, seq(regSet(), regSet(), op0(asm.MUL)))
	case "/":
		return Append(out, seq(regSet(), regSet(), op0(asm.DIV)))
	case "%":
		return Append(out, seq(regSet(), regSet(), op0(asm.REM)))
	case "==":
		return Append(out, seq(regSet(), regSet(), op0(asm.EQ)))
	case "!=":
		return Append(out, seq(regSet(), regSet(), op0(asm.EQ), op0(asm.NOT)))
	case "<":
		return Append(out, seq(regSet(), regSet(), op0(asm.LT)))
	case ">":
		return Append(out, seq(regSet(), regSet(), op0(asm.GT)))
	case "<=":
		return Append(out, seq(regSet(), regSet(), op0(asm.GT), op0(asm.NOT)))
	case ">=":
		return Append(out, seq(regSet(), regSet(), op0(asm.LT), op0(asm.NOT)))
	case "in":
		return Append(out, seq(regSet(), regSet(), op0(asm.IN)))
	case "|":
		// stack is [left, right]; PAIR wants [head, tail] = [left, right]
		// popped top-first, so swap to put left on top before consing.
		return Append(out, seq(regSet(), regSet(), op0(asm.SWAP), op0(asm.PAIR)))
	default:
		c.fail(pos, "unknown binary operator %q", opName)
		return out
	}
}

// compilePrimitiveCallByName looks up name in the primitive frame (frame 0)
// and applies it to the already-compiled argument sequences, in order.
func (c *ctx) compilePrimitiveCallByName(pos token.Pos, name string, argSeqs ...Sequence) Sequence {
	depth, slot, err := c.env.Find(name)
	var out Sequence
	if err != nil {
		c.fail(pos, "unknown primitive %q", name)
		out = seq(regSet(), regSet(), op0(asm.NILV))
	} else {
		out = seq(regSet(RegEnv), regSet(), op2(asm.LOOKUP, int32(depth), int32(slot)))
	}
	for _, a := range argSeqs {
		out = Append(out, a)
	}
	out = Append(out, seq(regSet(RegEnv), regSet(), op1(asm.APPLY, int32(len(argSeqs)))))
	return out
}

// mergeBranches wires a truthy/falsy fork into a single Sequence. When
// linkage already transfers control on its own (Return or a jump-to-label),
// each side just ends with that same linkage and no merge point is needed;
// otherwise both sides fall through to a shared label with the result on
// the stack.
func (c *ctx) mergeBranches(branch Stmt, trueSeq, falseSeq Sequence, linkage Linkage) Sequence {
	out := Append(seq(regSet(), regSet(), branch), falseSeq)
	if linkage.Return || linkage.HasRef {
		out = Append(out, seq(regSet(), regSet(), labelDef(branch.Label)))
		out = Append(out, trueSeq)
		return out
	}
	afterLabel := c.newLabel()
	out = Append(out, seq(regSet(), regSet(), jumpTo(asm.JUMP, afterLabel)))
	out = Append(out, seq(regSet(), regSet(), labelDef(branch.Label)))
	out = Append(out, trueSeq)
	out = Append(out, seq(regSet(), regSet(), labelDef(afterLabel)))
	return out
}

// branchLinkageFor returns the linkage the two forked branches of a
// conditional should be compiled with: pass the outer linkage through
// unchanged when it already transfers control by itself, otherwise fall
// through to LinkNext and let mergeBranches supply the shared label.
func branchLinkageFor(linkage Linkage) Linkage {
	if linkage.Return || linkage.HasRef {
		return linkage
	}
	return LinkNext
}

func (c *ctx) compileIf(node heap.Value, linkage Linkage) Sequence {
	condExpr := ast.Field(c.h, node, 1)
	conseq := ast.Field(c.h, node, 2)
	altNode := ast.Field(c.h, node, 3)

	condSeq := c.compileExpr(condExpr, LinkNext)
	trueLabel := c.newLabel()
	branch := jumpTo(asm.BRANCH, trueLabel)

	branchLinkage := branchLinkageFor(linkage)

	var altSeq Sequence
	if altNode.IsNil() {
		altSeq = Append(seq(regSet(), regSet(), op0(asm.POP)), seq(regSet(), regSet(), push(heap.Nil)))
		altSeq = EndWithLinkage(branchLinkage, altSeq)
	} else {
		altSeq = Append(seq(regSet(), regSet(), op0(asm.POP)), c.compileBlock(altNode, branchLinkage))
	}
	conseqSeq := Append(seq(regSet(), regSet(), op0(asm.POP)), c.compileBlock(conseq, branchLinkage))

	merged := c.mergeBranches(branch, conseqSeq, altSeq, linkage)
	return Append(condSeq, merged)
}

// compileCond desugars the clause list into the right-nested if-chain
// spec.md §4.2 describes, recursively: each predicate that fails falls
// through (with the stale cond value popped) into the remaining clauses.
func (c *ctx) compileCond(node heap.Value, linkage Linkage) Sequence {
	clauses := ast.ListItems(c.h, ast.Field(c.h, node, 1))
	elseBody := ast.Field(c.h, node, 2)
	return c.compileCondClauses(clauses, elseBody, linkage)
}

func (c *ctx) compileCondClauses(clauses []heap.Value, elseBody heap.Value, linkage Linkage) Sequence {
	if len(clauses) == 0 {
		if elseBody.IsNil() {
			return EndWithLinkage(linkage, seq(regSet(), regSet(), push(heap.Nil)))
		}
		return c.compileExpr(elseBody, linkage)
	}
	clause := clauses[0]
	pred := c.h.Head(clause)
	body := c.h.Tail(clause)

	condSeq := c.compileExpr(pred, LinkNext)
	trueLabel := c.newLabel()
	branch := jumpTo(asm.BRANCH, trueLabel)

	branchLinkage := branchLinkageFor(linkage)

	restSeq := Append(seq(regSet(), regSet(), op0(asm.POP)), c.compileCondClauses(clauses[1:], elseBody, branchLinkage))
	trueSeq := Append(seq(regSet(), regSet(), op0(asm.POP)), c.compileExpr(body, branchLinkage))

	merged := c.mergeBranches(branch, trueSeq, restSeq, linkage)
	return Append(condSeq, merged)
}

// compileAnd short-circuits: BRANCH does not pop, so the falsy path simply
// keeps the left value as the overall result with no extra instructions.
func (c *ctx) compileAnd(node heap.Value, linkage Linkage) Sequence {
	left := ast.Field(c.h, node, 1)
	right := ast.Field(c.h, node, 2)

	condSeq := c.compileExpr(left, LinkNext)
	trueLabel := c.newLabel()
	branch := jumpTo(asm.BRANCH, trueLabel)

	branchLinkage := branchLinkageFor(linkage)
	falseSeq := EndWithLinkage(branchLinkage, empty())
	trueSeq := Append(seq(regSet(), regSet(), op0(asm.POP)), c.compileExpr(right, branchLinkage))

	merged := c.mergeBranches(branch, trueSeq, falseSeq, linkage)
	return Append(condSeq, merged)
}

// compileOr mirrors compileAnd: the truthy path keeps the retained left
// value, the falsy path pops it and evaluates the right operand.
func (c *ctx) compileOr(node heap.Value, linkage Linkage) Sequence {
	left := ast.Field(c.h, node, 1)
	right := ast.Field(c.h, node, 2)

	condSeq := c.compileExpr(left, LinkNext)
	trueLabel := c.newLabel()
	branch := jumpTo(asm.BRANCH, trueLabel)

	branchLinkage := branchLinkageFor(linkage)
	trueSeq := EndWithLinkage(branchLinkage, empty())
	falseSeq := Append(seq(regSet(), regSet(), op0(asm.POP)), c.compileExpr(right, branchLinkage))

	merged := c.mergeBranches(branch, trueSeq, falseSeq, linkage)
	return Append(condSeq, merged)
}

// compileCall compiles a call expression, choosing between three shapes:
// a primitive-frame call (no LINK needed - primitives never jump into
// compiled bytecode, so there is no return address to save), a tail call
// (no LINK either - the callee's own RETURN will return to whoever called
// the current function), and the general non-tail call, which LINKs a
// resume label before APPLY and picks the result back up after it.
func (c *ctx) compileCall(node heap.Value, linkage Linkage) Sequence {
	callee := ast.Field(c.h, node, 1)
	args := ast.ListItems(c.h, ast.Field(c.h, node, 2))

	if tag, ok := ast.TagOf(c.h, callee); ok && tag == ast.TagIdent {
		name := identName(c.h, callee)
		if depth, _, err := c.env.Find(name); err == nil && depth == c.env.Depth()-1 {
			return c.compilePrimitiveApply(callee, args, linkage)
		}
	}

	calleeSeq := c.compileExpr(callee, LinkNext)
	out := calleeSeq
	for _, a := range args {
		out = Append(out, c.compileExpr(a, LinkNext))
	}

	if linkage.Return {
		out = Append(out, seq(regSet(RegEnv, RegCont), regSet(RegEnv, RegCont), op1(asm.APPLY, int32(len(args)))))
		return out
	}

	resumeLabel := c.newLabel()
	link := seq(regSet(RegEnv, RegCont), regSet(RegCont), jumpTo(asm.LINK, resumeLabel))
	apply := seq(regSet(RegEnv, RegCont), regSet(RegEnv, RegCont), op1(asm.APPLY, int32(len(args))))
	out = Append(out, link)
	out = Append(out, apply)
	out = Append(out, seq(regSet(), regSet(), labelDef(resumeLabel)))
	return EndWithLinkage(linkage, out)
}

func (c *ctx) compilePrimitiveApply(callee heap.Value, args []heap.Value, linkage Linkage) Sequence {
	out := c.compileExpr(callee, LinkNext)
	for _, a := range args {
		out = Append(out, c.compileExpr(a, LinkNext))
	}
	out = Append(out, seq(regSet(RegEnv), regSet(), op1(asm.APPLY, int32(len(args)))))
	return EndWithLinkage(linkage, out)
}

// compileLambda compiles a (params, body) pair per spec.md §4.4's "-> (params)
// body" form: Const body-addr; Const num_params; Lambda; Jump skip creates
// the closure and jumps over the inline body (our JUMP takes a label
// directly rather than the spec's literal Const<after>;Jump pair, since the
// assembler resolves label-relative jumps itself - see DESIGN.md). At the
// body label, arguments arrive still sitting on the operand stack in source
// order; Tuple<n>;Extend allocates the frame and Define<slot>, emitted from
// the last slot down to the first, drains them back into source-order
// positions (the last-pushed argument is popped first). A zero-arity lambda
// skips the frame entirely, both at compile time and at run time, so lookup
// depths inside its body stay in sync with what actually ran.
func (c *ctx) compileLambda(params, body heap.Value, pos token.Pos) Sequence {
	names := ast.ListItems(c.h, params)
	n := len(names)

	if n > 0 {
		frame := c.env.Push()
		for _, p := range names {
			frame.Add(identName(c.h, p))
		}
	}
	bodySeq := c.compileExpr(body, LinkReturn)
	if n > 0 {
		c.env.Pop()
	}

	bodyLabel := c.newLabel()
	skipLabel := c.newLabel()

	header := seq(regSet(), regSet(),
		Stmt{Op: opPush, Label: bodyLabel, HasLabel: true, IsAddr: true},
		push(heap.Int(int32(n))),
		op0(asm.LAMBDA),
		jumpTo(asm.JUMP, skipLabel),
	)

	var prologue Sequence
	if n > 0 {
		prologue = seq(regSet(), regSet(RegEnv), op1(asm.TUPLE, int32(n)), op0(asm.EXTEND))
		for slot := n - 1; slot >= 0; slot-- {
			prologue = Append(prologue, seq(regSet(RegEnv), regSet(), op1(asm.DEFINE, int32(slot))))
		}
	} else {
		prologue = empty()
	}

	out := header
	out = TackOn(out, seq(regSet(), regSet(), labelDef(bodyLabel)))
	out = TackOn(out, prologue)
	out = TackOn(out, bodySeq)
	out = TackOn(out, seq(regSet(), regSet(), labelDef(skipLabel)))
	return out
}
