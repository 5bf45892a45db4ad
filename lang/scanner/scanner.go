// Some of the scanner package's error-accumulation idiom is adapted from the
// Go source code: https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner implements the lexer for the cassette language: it turns a
// UTF-8 source buffer into a stream of tokens, never panicking on malformed
// input (see spec.md §4.1).
package scanner

import (
	"context"
	"fmt"
	gotoken "go/token"
	goscanner "go/scanner"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mna/cassette/lang/token"
)

type (
	// Error and ErrorList reuse the standard library's go/scanner
	// position-sorted error accumulation, keyed by filename/line/column
	// instead of a byte offset.
	Error     = goscanner.Error
	ErrorList = goscanner.ErrorList
)

// PrintError prints a scanner, parser or compiler ErrorList (or any error) to
// w, one error per line.
var PrintError = goscanner.PrintError

// TokenAndValue combines the token type with the token value type.
type TokenAndValue struct {
	Token token.Token
	Value token.Value
}

// ScanFiles tokenizes each named source file in turn and returns the token
// stream per file, in the same order as files. The returned error, if
// non-nil, implements Unwrap() []error (it is a go/scanner.ErrorList).
func ScanFiles(_ context.Context, files ...string) ([][]TokenAndValue, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var (
		s      Scanner
		tokVal token.Value
		el     ErrorList
	)

	tokensByFile := make([][]TokenAndValue, len(files))
	for i, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			el.Add(gotoken.Position{Filename: file}, err.Error())
			continue
		}

		s.Init(file, b, el.Add)
		for {
			tok := s.Scan(&tokVal)
			tokensByFile[i] = append(tokensByFile[i], TokenAndValue{Token: tok, Value: tokVal})
			if tok == token.EOF {
				break
			}
		}
	}
	el.Sort()
	return tokensByFile, el.Err()
}

// Scanner tokenizes a single source file for the parser to consume.
type Scanner struct {
	// immutable state after Init
	filename string
	src      []byte
	err      func(pos gotoken.Position, msg string)

	// mutable scanning state
	sb          strings.Builder // writes to Builder never fail, so errors are ignored
	invalidByte byte            // when cur==RuneError due to failed utf8 decode, this is the invalid byte
	cur         rune            // current character
	off         int             // byte offset of cur
	roff        int             // reading offset (position after current character)
	line, col   int             // 1-based line/column of cur
}

// Init initializes the scanner to tokenize a new file.
func (s *Scanner) Init(filename string, src []byte, errHandler func(gotoken.Position, string)) {
	s.filename = filename
	s.src = src
	s.err = errHandler

	s.sb.Reset()
	s.invalidByte = 0
	s.cur = ' '
	s.off = 0
	s.roff = 0
	s.line = 1
	s.col = 0

	s.advance()
}

// peek returns the byte following the most recently read character without
// advancing the scanner. It returns 0 at EOF.
func (s *Scanner) peek() byte {
	if s.roff < len(s.src) {
		return s.src[s.roff]
	}
	return 0
}

// advance reads the next Unicode char into s.cur; s.cur < 0 means EOF.
func (s *Scanner) advance() {
	if s.cur == '\n' {
		s.line++
		s.col = 0
	}

	if s.roff >= len(s.src) {
		s.off = len(s.src)
		s.cur = -1
		return
	}

	s.off = s.roff
	s.col++

	s.invalidByte = 0
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.roff:])
		if r == utf8.RuneError && w == 1 {
			s.error(s.off, "illegal UTF-8 encoding")
			s.invalidByte = s.src[s.roff]
		}
	}
	s.roff += w
	s.cur = r
}

func (s *Scanner) pos() token.Pos { return token.MakePos(s.line, s.col) }

func (s *Scanner) error(_ int, msg string) {
	if s.err != nil {
		l, c := s.pos().LineCol()
		s.err(gotoken.Position{Filename: s.filename, Line: l, Column: c}, msg)
	}
}

func (s *Scanner) errorf(off int, format string, args ...any) {
	s.error(off, fmt.Sprintf(format, args...))
}

// ReportAt reports msg at pos through the same error handler given to Init.
// It lets a caller built on top of the scanner (the parser, chiefly) report
// errors using the same position encoding and sink without reimplementing
// the go/token.Position conversion.
func (s *Scanner) ReportAt(pos token.Pos, msg string) {
	if s.err == nil {
		return
	}
	l, c := pos.LineCol()
	s.err(gotoken.Position{Filename: s.filename, Line: l, Column: c}, msg)
}

// advanceIf advances past the current character if it equals any of matches,
// and reports whether it did.
func (s *Scanner) advanceIf(matches ...byte) bool {
	for _, m := range matches {
		if rune(m) == s.cur {
			s.advance()
			return true
		}
	}
	return false
}

// Scan returns the next token in the source file.
func (s *Scanner) Scan(tokVal *token.Value) (tok token.Token) {
	s.skipWhitespaceAndComments()

	pos := s.pos()
	start := s.off

	switch cur := s.cur; {
	case isLetter(cur):
		lit := s.ident()
		tok = token.LookupIdent(lit)
		*tokVal = token.Value{Raw: lit, Pos: pos}

	case isDecimal(cur) || (cur == '.' && isDecimal(rune(s.peek()))):
		var base int
		var lit string
		tok, base, lit = s.number()
		*tokVal = token.Value{Raw: lit, Pos: pos}
		if tok == token.INT {
			v, err := parseInt(lit, base)
			if err != nil {
				s.error(start, "integer literal value out of range")
			}
			tokVal.Int = v
		} else if tok == token.FLOAT {
			v, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				s.error(start, "float literal value out of range")
			}
			tokVal.Float = v
		}

	default:
		s.advance() // always make progress
		switch cur {
		case '\n':
			tok = token.NEWLINE
			*tokVal = token.Value{Raw: "\n", Pos: pos}

		case '=':
			tok = token.EQ
			if s.advanceIf('=') {
				tok = token.EQEQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '!':
			tok = token.ILLEGAL
			if s.advanceIf('=') {
				tok = token.BANGEQ
			} else {
				s.errorf(start, "illegal character %#U, did you mean '!='?", cur)
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '"':
			tok = token.STRING
			lit, val := s.shortString()
			*tokVal = token.Value{Raw: lit, Pos: pos, String: val}

		case ':':
			if isLetter(s.cur) {
				tok = token.SYM
				lit := s.ident()
				*tokVal = token.Value{Raw: ":" + lit, Pos: pos, String: lit}
			} else {
				tok = token.COLON
				*tokVal = token.Value{Raw: tok.String(), Pos: pos}
			}

		case '(', ')', '[', ']', '{', '}', ',', ';':
			tok = punctFor(cur)
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '#':
			tok = token.HASH
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '\\':
			tok = token.BACKSLASH
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '+', '*', '%', '|':
			tok = punctFor(cur)
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '-':
			tok = token.MINUS
			if s.advanceIf('>') {
				tok = token.ARROW
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '/':
			tok = token.SLASH
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '<':
			tok = token.LT
			if s.advanceIf('=') {
				tok = token.LE
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '>':
			tok = token.GT
			if s.advanceIf('=') {
				tok = token.GE
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '.':
			tok = token.DOT
			if s.advanceIf('.') {
				tok = token.DOTDOT
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case -1:
			tok = token.EOF
			*tokVal = token.Value{Raw: "", Pos: pos}

		default:
			if cur == utf8.RuneError && s.invalidByte > 0 {
				cur = rune(s.invalidByte)
				s.invalidByte = 0
			}
			s.errorf(start, "illegal character %#U", cur)
			tok = token.ILLEGAL
			*tokVal = token.Value{Raw: string(cur), Pos: pos}
		}
	}
	return tok
}

func punctFor(r rune) token.Token {
	switch r {
	case '(':
		return token.LPAREN
	case ')':
		return token.RPAREN
	case '[':
		return token.LBRACK
	case ']':
		return token.RBRACK
	case '{':
		return token.LBRACE
	case '}':
		return token.RBRACE
	case ',':
		return token.COMMA
	case ';':
		return token.SEMI
	case '+':
		return token.PLUS
	case '*':
		return token.STAR
	case '%':
		return token.PERCENT
	case '|':
		return token.PIPE
	}
	return token.ILLEGAL
}

func (s *Scanner) ident() string {
	start := s.off
	for isLetter(s.cur) || isDigit(s.cur) {
		s.advance()
	}
	return string(s.src[start:s.off])
}

// skipWhitespaceAndComments skips spaces and tabs (but not newlines, which
// are significant tokens) and ';' line comments.
func (s *Scanner) skipWhitespaceAndComments() {
	for {
		switch {
		case s.cur == ' ' || s.cur == '\t' || s.cur == '\r':
			s.advance()
		case s.cur == ';':
			for s.cur != '\n' && s.cur != -1 {
				s.advance()
			}
		default:
			return
		}
	}
}

func isLetter(rn rune) bool {
	return 'a' <= rn && rn <= 'z' ||
		'A' <= rn && rn <= 'Z' ||
		rn == '_' ||
		rn >= utf8.RuneSelf && unicode.IsLetter(rn)
}

func isDigit(rn rune) bool {
	return '0' <= rn && rn <= '9' ||
		rn >= utf8.RuneSelf && unicode.IsDigit(rn)
}
