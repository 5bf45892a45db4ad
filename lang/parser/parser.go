// Package parser implements a Pratt (precedence-climbing) parser that turns
// source text into the heap-pair AST defined by lang/ast (spec.md §4.2).
package parser

import (
	"fmt"

	"github.com/mna/cassette/lang/ast"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/scanner"
	"github.com/mna/cassette/lang/token"
)

// PartialParse is returned by Parse when the input ended in the middle of a
// construct (an unterminated block, an unclosed bracket) rather than with a
// genuine syntax error elsewhere - the distinction a REPL needs to decide
// whether to keep reading more lines or report the error (spec.md §6.1).
type PartialParse struct {
	Err error
}

func (p *PartialParse) Error() string { return p.Err.Error() }
func (p *PartialParse) Unwrap() error { return p.Err }

// parser holds the mutable state of a single parse.
type parser struct {
	filename string
	heap     *heap.Heap
	scan     scanner.Scanner
	errors   scanner.ErrorList

	tok token.Token
	val token.Value

	// depth counts the do/if/cond/def blocks currently open while their
	// bodies are being parsed.
	depth int
}

// Parse parses a single chunk of source, returning the chunk node (tag
// ast.TagChunk) on success. h is used both to allocate AST nodes and to
// intern identifier/symbol names encountered in src.
func Parse(h *heap.Heap, filename string, src []byte) (heap.Value, error) {
	var p parser
	p.filename = filename
	p.heap = h
	p.scan.Init(filename, src, p.errors.Add)
	p.advance()

	startPos := p.val.Pos
	var stmts []heap.Value
	for p.tok != token.EOF {
		stmts = append(stmts, p.parseStmt())
	}
	p.errors.Sort()
	if err := p.errors.Err(); err != nil {
		// an error reported at the EOF token's position means the input ended
		// in the middle of a construct
		eofLine, eofCol := p.val.Pos.LineCol()
		for _, e := range p.errors {
			if e.Pos.Line == eofLine && e.Pos.Column == eofCol {
				return heap.Nil, &PartialParse{Err: err}
			}
		}
		return heap.Nil, err
	}
	return ast.New(h, ast.TagChunk, startPos, ast.List(h, stmts)), nil
}

func (p *parser) advance() {
	p.tok = p.scan.Scan(&p.val)
}

func (p *parser) at(t token.Token) bool { return p.tok == t }

func (p *parser) expect(t token.Token) token.Value {
	v := p.val
	if p.tok != t {
		p.errorf("expected %s, got %s", t, p.tok)
		return v
	}
	p.advance()
	return v
}

func (p *parser) errorf(format string, args ...interface{}) {
	p.scan.ReportAt(p.val.Pos, fmt.Sprintf(format, args...))
}

// skipNewlines consumes any run of statement-separator newlines; the
// grammar treats NEWLINE as insignificant except as a statement separator.
func (p *parser) skipNewlines() {
	for p.tok == token.NEWLINE {
		p.advance()
	}
}

func blockEnd(t token.Token) bool {
	switch t {
	case token.END, token.ELSE, token.EOF:
		return true
	default:
		return false
	}
}

// parseBlock parses statements until a block-ending token is seen, without
// consuming it.
func (p *parser) parseBlock() heap.Value {
	startPos := p.val.Pos
	p.skipNewlines()
	var stmts []heap.Value
	for !blockEnd(p.tok) {
		stmts = append(stmts, p.parseStmt())
		p.skipNewlines()
	}
	return ast.New(p.heap, ast.TagBlock, startPos, ast.List(p.heap, stmts))
}

func (p *parser) parseStmt() heap.Value {
	pos := p.val.Pos
	switch p.tok {
	case token.LET:
		p.advance()
		name := p.parseIdent()
		p.expect(token.EQ)
		val := p.parseExpr(precLowest)
		p.endStmt()
		return ast.New(p.heap, ast.TagLet, pos, name, val)

	case token.DEF:
		p.advance()
		name := p.parseIdent()
		params := p.parseParams()
		p.expect(token.DO)
		p.depth++
		body := p.parseBlock()
		p.depth--
		p.expect(token.END)
		p.endStmt()
		return ast.New(p.heap, ast.TagDef, pos, name, params, body)

	case token.IMPORT:
		p.advance()
		path := p.expect(token.STRING)
		// Default binding, absent an 'as' clause, is the module's own name
		// (original_source/src/rec/parse.c's ParseImport: `import Foo` ->
		// `[import [Foo Foo]]`). 'as *' is the splat form and is encoded as a
		// nil alias (`import Foo as * -> [import [Foo nil]]`); compileImport
		// reads that nil to mean "define every export in the caller frame"
		// rather than "bind nothing".
		sym, _ := p.heap.Syms.Intern(path.String)
		alias := ast.New(p.heap, ast.TagIdent, pos, sym)
		if p.tok == token.AS {
			p.advance()
			if p.tok == token.STAR {
				p.advance()
				alias = heap.Nil
			} else {
				alias = p.parseIdent()
			}
		}
		p.endStmt()
		return ast.New(p.heap, ast.TagImport, pos, p.heap.NewString(path.String), alias)

	case token.MODULE:
		p.advance()
		var names []heap.Value
		names = append(names, p.parseIdent())
		for p.tok == token.COMMA {
			p.advance()
			names = append(names, p.parseIdent())
		}
		p.endStmt()
		return ast.New(p.heap, ast.TagModuleDecl, pos, ast.List(p.heap, names))

	default:
		// plain identifiers followed by '=' are not assignment in this
		// language: 'set' is the only rebinding form, and any other statement
		// is an expression statement.
		if isSetStmt(p) {
			p.advance() // consume "set" (an IDENT whose literal is "set")
			target := p.parseIdent()
			p.expect(token.EQ)
			val := p.parseExpr(precLowest)
			p.endStmt()
			return ast.New(p.heap, ast.TagSet, pos, target, val)
		}
		return p.parseExprStmt()
	}
}

// isSetStmt recognizes "set <ident> = ...": 'set' is not a reserved keyword
// in the scanner (it is parsed as an ordinary identifier), so the parser
// recognizes it on the identifier's literal text alone; the target name and
// '=' are then required by parseStmt.
func isSetStmt(p *parser) bool {
	return p.tok == token.IDENT && p.val.Raw == "set"
}

func (p *parser) parseExprStmt() heap.Value {
	pos := p.val.Pos
	e := p.parseExpr(precLowest)
	p.endStmt()
	return ast.New(p.heap, ast.TagExprStmt, pos, e)
}

// endStmt consumes the statement separator: a newline, or (silently) the
// start of a block-ending token/EOF. ';' is not a statement separator in
// this grammar: the scanner treats it as a line-comment starter.
func (p *parser) endStmt() {
	if p.tok == token.NEWLINE {
		p.advance()
		p.skipNewlines()
		return
	}
	if blockEnd(p.tok) {
		return
	}
	p.errorf("expected end of statement, got %s", p.tok)
}

func (p *parser) parseIdent() heap.Value {
	pos := p.val.Pos
	name := p.val.Raw
	if p.tok != token.IDENT {
		p.errorf("expected identifier, got %s", p.tok)
	} else {
		p.advance()
	}
	sym, _ := p.heap.Syms.Intern(name)
	return ast.New(p.heap, ast.TagIdent, pos, sym)
}

func (p *parser) parseParams() heap.Value {
	p.expect(token.LPAREN)
	var params []heap.Value
	for p.tok != token.RPAREN && p.tok != token.EOF {
		params = append(params, p.parseIdent())
		if p.tok != token.COMMA {
			break
		}
		p.advance()
	}
	p.expect(token.RPAREN)
	return ast.List(p.heap, params)
}
