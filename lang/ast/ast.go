// Package ast defines the abstract syntax tree produced by lang/parser.
//
// Per spec.md §3.6, nodes are not a typed Go struct hierarchy: every node is
// itself a heap value, a pair whose head is an interned tag symbol and whose
// tail is a tuple payload. Field 0 of the payload is always the node's
// source position; the remaining fields are tag-specific, either leaf
// values, nested nodes, or (for lists of children, e.g. a block's
// statements or a call's arguments) a cassette list built from Pair cells.
//
// This keeps the AST itself a first-class cassette value: a `quote`-style
// primitive or a macro system, should one ever be added, walks the same
// pairs and tuples the compiler does, with no separate reflection layer.
package ast

import (
	"fmt"

	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/token"
)

// Tag identifies the production a node represents.
type Tag uint8

const (
	TagChunk Tag = iota
	TagBlock

	// statements
	TagLet
	TagSet
	TagDef
	TagImport
	TagModuleDecl
	TagExprStmt

	// expressions
	TagIdent
	TagInt
	TagFloat
	TagString
	TagSymbolLit
	TagNilLit
	TagBoolLit
	TagList
	TagTupleLit
	TagMapLit
	TagLambda
	TagCall
	TagIndex
	TagDot
	TagUnary
	TagBinary
	TagAnd
	TagOr
	TagIf
	TagCond
	TagDo
)

var tagNames = [...]string{
	TagChunk:      "chunk",
	TagBlock:      "block",
	TagLet:        "let",
	TagSet:        "set",
	TagDef:        "def",
	TagImport:     "import",
	TagModuleDecl: "module",
	TagExprStmt:   "expr-stmt",
	TagIdent:      "ident",
	TagInt:        "int",
	TagFloat:      "float",
	TagString:     "string",
	TagSymbolLit:  "symbol",
	TagNilLit:     "nil",
	TagBoolLit:    "bool",
	TagList:       "list",
	TagTupleLit:   "tuple",
	TagMapLit:     "map",
	TagLambda:     "lambda",
	TagCall:       "call",
	TagIndex:      "index",
	TagDot:        "dot",
	TagUnary:      "unary",
	TagBinary:     "binary",
	TagAnd:        "and",
	TagOr:         "or",
	TagIf:         "if",
	TagCond:       "cond",
	TagDo:         "do",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) && tagNames[t] != "" {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", t)
}

// New allocates a node of the given tag at pos, with fields as its
// tag-specific payload (field 0 is always reserved for pos).
func New(h *heap.Heap, tag Tag, pos token.Pos, fields ...heap.Value) heap.Value {
	payload := h.AllocTuple(len(fields) + 1)
	h.TupleSet(payload, 0, posValue(pos))
	for i, f := range fields {
		h.TupleSet(payload, i+1, f)
	}
	sym, _ := h.Syms.Intern(tag.String())
	return h.AllocPair(sym, payload)
}

func posValue(p token.Pos) heap.Value { return heap.Float(float64(p)) }

// Pos returns the source position a node was built at.
func Pos(h *heap.Heap, node heap.Value) token.Pos {
	payload := h.Tail(node)
	return token.Pos(uint32(h.TupleGet(payload, 0).AsFloat()))
}

// TagOf returns the tag of node, looking the interned head symbol back up in
// the heap's symbol table.
func TagOf(h *heap.Heap, node heap.Value) (Tag, bool) {
	name, ok := h.Syms.Name(h.Head(node).AsSymbolHash())
	if !ok {
		return 0, false
	}
	for t, n := range tagNames {
		if n == name {
			return Tag(t), true
		}
	}
	return 0, false
}

// Field returns payload field i (1-based: field 0 is the reserved position,
// so Field(h, node, 1) is the first tag-specific field).
func Field(h *heap.Heap, node heap.Value, i int) heap.Value {
	return h.TupleGet(h.Tail(node), i)
}

// NumFields returns the number of tag-specific fields (excluding position).
func NumFields(h *heap.Heap, node heap.Value) int {
	return h.TupleLen(h.Tail(node)) - 1
}

// List builds a cassette list (nil-terminated chain of pairs) from items, in
// order, for use as a node field holding a sequence of children.
func List(h *heap.Heap, items []heap.Value) heap.Value {
	out := heap.Nil
	for i := len(items) - 1; i >= 0; i-- {
		out = h.AllocPair(items[i], out)
	}
	return out
}

// ListItems reads a cassette list built by List back into a Go slice.
func ListItems(h *heap.Heap, list heap.Value) []heap.Value {
	var out []heap.Value
	for !list.IsNil() {
		out = append(out, h.Head(list))
		list = h.Tail(list)
	}
	return out
}
