package parser

import (
	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/token"
)

// precedence levels, low to high, per spec.md §4.2's table.
const (
	precLowest = iota
	precLambda
	precOr
	precAnd
	precEquality
	precComparison
	precIn
	precPipe
	precAdditive
	precMultiplicative
	precUnary
	precAccess
)

func infixPrec(tok token.Token) int {
	switch tok {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQEQ, token.BANGEQ:
		return precEquality
	case token.LT, token.LE, token.GT, token.GE:
		return precComparison
	case token.IN:
		return precIn
	case token.PIPE:
		return precPipe
	case token.PLUS, token.MINUS, token.DOTDOT:
		return precAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiplicative
	default:
		return precLowest
	}
}

// rightAssoc reports whether tok's infix operator associates to the right,
// used by '|' (cons): `a | b | c` means `a | (b | c)`.
func rightAssoc(tok token.Token) bool { return tok == token.PIPE }

// startsAtom reports whether tok can begin a primary expression, used both
// to resume parsing after an infix operator and to recognize a juxtaposed
// call argument (spec.md §4.2: `f x y z` is `(f x y z)`).
func startsAtom(tok token.Token) bool {
	switch tok {
	case token.IDENT, token.INT, token.FLOAT, token.STRING, token.SYM,
		token.TRUE, token.FALSE, token.NIL,
		token.LPAREN, token.LBRACK, token.LBRACE, token.HASH, token.BACKSLASH,
		token.IF, token.COND, token.DO, token.NOT, token.MINUS:
		return true
	default:
		return false
	}
}

// parseExpr parses an expression whose infix operators bind at least as
// tightly as minPrec.
func (p *parser) parseExpr(minPrec int) heap.Value {
	left := p.parseUnary()

	for {
		prec := infixPrec(p.tok)
		if prec == precLowest || prec < minPrec {
			break
		}
		opTok := p.tok
		opPos := p.val.Pos
		left = p.parseInfixRHS(left, opTok, opPos, prec)
	}

	if minPrec <= precLambda && p.tok == token.ARROW {
		return p.parseLambdaFrom(left)
	}
	return left
}

func (p *parser) parseInfixRHS(left heap.Value, opTok token.Token, opPos token.Pos, prec int) heap.Value {
	p.advance()
	nextMin := prec + 1
	if rightAssoc(opTok) {
		nextMin = prec
	}
	right := p.parseExpr(nextMin)

	switch opTok {
	case token.AND:
		return ast.New(p.heap, ast.TagAnd, opPos, left, right)
	case token.OR:
		return ast.New(p.heap, ast.TagOr, opPos, left, right)
	default:
		op, _ := p.heap.Syms.Intern(opTok.String())
		return ast.New(p.heap, ast.TagBinary, opPos, op, left, right)
	}
}

// parseLambdaFrom treats an already-parsed parenthesized param list (or bare
// identifier) as the parameter list of a `params -> body` lambda.
func (p *parser) parseLambdaFrom(params heap.Value) heap.Value {
	pos := p.val.Pos
	p.expect(token.ARROW)
	body := p.parseExpr(precLambda)
	return ast.New(p.heap, ast.TagLambda, pos, toParamList(p.heap, params), body)
}

// toParamList coerces a parsed primary (an ident, or a parenthesized tuple of
// idents) into the list-of-idents shape a lambda/def parameter list needs.
func toParamList(h *heap.Heap, v heap.Value) heap.Value {
	if tag, ok := ast.TagOf(h, v); ok {
		switch tag {
		case ast.TagIdent:
			return ast.List(h, []heap.Value{v})
		case ast.TagTupleLit:
			return ast.Field(h, v, 1)
		}
	}
	return ast.List(h, nil)
}

func (p *parser) parseUnary() heap.Value {
	pos := p.val.Pos
	switch p.tok {
	case token.MINUS:
		p.advance()
		operand := p.parseUnary()
		sym, _ := p.heap.Syms.Intern("-")
		return ast.New(p.heap, ast.TagUnary, pos, sym, operand)
	case token.NOT:
		p.advance()
		operand := p.parseUnary()
		sym, _ := p.heap.Syms.Intern("not")
		return ast.New(p.heap, ast.TagUnary, pos, sym, operand)
	case token.BACKSLASH:
		return p.parseBackslashLambda()
	default:
		return p.parseCallOrPostfix()
	}
}

func (p *parser) parseBackslashLambda() heap.Value {
	pos := p.val.Pos
	p.advance() // consume '\'
	var params []heap.Value
	for p.tok == token.IDENT {
		params = append(params, p.parseIdent())
	}
	p.expect(token.ARROW)
	body := p.parseExpr(precLambda)
	return ast.New(p.heap, ast.TagLambda, pos, ast.List(p.heap, params), body)
}

// parseCallOrPostfix parses a primary expression, then greedily applies
// postfix forms: '.' member access, '[' indexing, and juxtaposed call
// arguments (spec.md §4.2).
func (p *parser) parseCallOrPostfix() heap.Value {
	pos := p.val.Pos
	e := p.parsePrimary()

	for {
		switch {
		case p.tok == token.DOT:
			p.advance()
			name := p.parseIdent()
			e = ast.New(p.heap, ast.TagDot, pos, e, ast.Field(p.heap, name, 1))

		case p.tok == token.LBRACK:
			p.advance()
			idx := p.parseExpr(precLowest)
			p.expect(token.RBRACK)
			e = ast.New(p.heap, ast.TagIndex, pos, e, idx)

		case p.tok == token.LPAREN && isCallable(p.heap, e):
			p.advance()
			args := p.parseArgList(token.RPAREN)
			p.expect(token.RPAREN)
			e = ast.New(p.heap, ast.TagCall, pos, e, ast.List(p.heap, args))

		case isCallable(p.heap, e) && startsAtom(p.tok) && p.tok != token.IF &&
			p.tok != token.COND && p.tok != token.DO:
			var args []heap.Value
			for startsAtom(p.tok) && p.tok != token.IF && p.tok != token.COND && p.tok != token.DO {
				args = append(args, p.parseUnary())
			}
			e = ast.New(p.heap, ast.TagCall, pos, e, ast.List(p.heap, args))

		default:
			return e
		}
	}
}

// isCallable restricts juxtaposition/call postfix parsing to forms that can
// plausibly be callables (identifiers and other call/index/dot chains),
// keeping `3 4` from misparsing as a call and `-1` from being misread as a
// one-argument application of unary minus.
func isCallable(h *heap.Heap, e heap.Value) bool {
	tag, ok := ast.TagOf(h, e)
	if !ok {
		return false
	}
	switch tag {
	case ast.TagIdent, ast.TagCall, ast.TagIndex, ast.TagDot, ast.TagLambda:
		return true
	default:
		return false
	}
}

func (p *parser) parseArgList(end token.Token) []heap.Value {
	var args []heap.Value
	for p.tok != end && p.tok != token.EOF {
		args = append(args, p.parseExpr(precLowest))
		if p.tok != token.COMMA {
			break
		}
		p.advance()
	}
	return args
}

// parseMapKey parses a map-literal key (spec.md §4.2's `{k: v, ...}`
// literal). A bare identifier key is a symbol, not a variable lookup,
// matching compileDot's own symbol-based field access and
// original_source/src/rec/parse.c:732's ParseAccess convention ({a: 1}.a
// must look up the same symbol the literal bound it under). Any other key
// form (int, string, symbol literal, or a parenthesized/computed
// expression) is an ordinary expression.
func (p *parser) parseMapKey() heap.Value {
	if p.tok == token.IDENT {
		pos := p.val.Pos
		name := p.val.Raw
		p.advance()
		sym, _ := p.heap.Syms.Intern(name)
		return ast.New(p.heap, ast.TagSymbolLit, pos, sym)
	}
	return p.parseExpr(precLowest)
}

func (p *parser) parsePrimary() heap.Value {
	pos := p.val.Pos
	switch p.tok {
	case token.INT:
		v := p.val
		p.advance()
		return ast.New(p.heap, ast.TagInt, pos, heap.Int(v.Int))

	case token.FLOAT:
		v := p.val
		p.advance()
		return ast.New(p.heap, ast.TagFloat, pos, heap.Float(v.Float))

	case token.STRING:
		v := p.val
		p.advance()
		return ast.New(p.heap, ast.TagString, pos, p.heap.NewString(v.String))

	case token.SYM:
		v := p.val
		p.advance()
		sym, _ := p.heap.Syms.Intern(v.String)
		return ast.New(p.heap, ast.TagSymbolLit, pos, sym)

	case token.TRUE:
		p.advance()
		return ast.New(p.heap, ast.TagBoolLit, pos, heap.True)

	case token.FALSE:
		p.advance()
		return ast.New(p.heap, ast.TagBoolLit, pos, heap.False)

	case token.NIL:
		p.advance()
		return ast.New(p.heap, ast.TagNilLit, pos)

	case token.IDENT:
		return p.parseIdent()

	case token.LBRACK:
		p.advance()
		items := p.parseArgList(token.RBRACK)
		p.expect(token.RBRACK)
		return ast.New(p.heap, ast.TagList, pos, ast.List(p.heap, items))

	case token.LBRACE:
		p.advance()
		var pairs []heap.Value
		for p.tok != token.RBRACE && p.tok != token.EOF {
			k := p.parseMapKey()
			p.expect(token.COLON)
			v := p.parseExpr(precLowest)
			pairs = append(pairs, k, v)
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
		p.expect(token.RBRACE)
		return ast.New(p.heap, ast.TagMapLit, pos, ast.List(p.heap, pairs))

	case token.HASH:
		p.advance()
		p.expect(token.LBRACK)
		items := p.parseArgList(token.RBRACK)
		p.expect(token.RBRACK)
		return ast.New(p.heap, ast.TagTupleLit, pos, ast.List(p.heap, items))

	case token.LPAREN:
		p.advance()
		if p.tok == token.RPAREN {
			p.advance()
			return ast.New(p.heap, ast.TagTupleLit, pos, ast.List(p.heap, nil))
		}
		first := p.parseExpr(precLowest)
		if p.tok == token.COMMA {
			items := []heap.Value{first}
			for p.tok == token.COMMA {
				p.advance()
				items = append(items, p.parseExpr(precLowest))
			}
			p.expect(token.RPAREN)
			return ast.New(p.heap, ast.TagTupleLit, pos, ast.List(p.heap, items))
		}
		p.expect(token.RPAREN)
		return first

	case token.IF:
		return p.parseIf()

	case token.COND:
		return p.parseCond()

	case token.DO:
		return p.parseDo()

	default:
		p.errorf("unexpected %s", p.tok)
		p.advance()
		return ast.New(p.heap, ast.TagNilLit, pos)
	}
}

func (p *parser) parseIf() heap.Value {
	pos := p.val.Pos
	p.advance() // 'if'
	cond := p.parseExpr(precLowest)
	p.expect(token.DO)
	p.depth++
	conseq := p.parseBlock()
	var alt heap.Value = heap.Nil
	if p.tok == token.ELSE {
		p.advance()
		alt = p.parseBlock()
	}
	p.depth--
	p.expect(token.END)
	return ast.New(p.heap, ast.TagIf, pos, cond, conseq, alt)
}

// parseCond parses `cond`, then newline-separated `pred -> body` clauses and
// an optional `else a` clause (an arrow after else is also accepted), then
// `end`, into a TagCond node listing (pred . body) pairs plus the else
// body; the compiler
// builds the right-nested if-chain spec.md §4.2 describes directly from this
// list, so the AST retains the original clause order for Print.
func (p *parser) parseCond() heap.Value {
	pos := p.val.Pos
	p.advance() // 'cond'
	p.depth++
	p.skipNewlines()
	var clauses []heap.Value
	var elseBody heap.Value = heap.Nil
	for p.tok != token.END && p.tok != token.EOF {
		if p.tok == token.ELSE {
			p.advance()
			if p.tok == token.ARROW {
				p.advance()
			}
			elseBody = p.parseExpr(precLowest)
			p.skipNewlines()
			continue
		}
		pred := p.parseExpr(precLowest)
		p.expect(token.ARROW)
		body := p.parseExpr(precLowest)
		clauses = append(clauses, p.heap.AllocPair(pred, body))
		p.skipNewlines()
	}
	p.depth--
	p.expect(token.END)
	return ast.New(p.heap, ast.TagCond, pos, ast.List(p.heap, clauses), elseBody)
}

func (p *parser) parseDo() heap.Value {
	pos := p.val.Pos
	p.advance() // 'do'
	p.depth++
	body := p.parseBlock()
	p.depth--
	p.expect(token.END)
	return ast.New(p.heap, ast.TagDo, pos, body)
}
