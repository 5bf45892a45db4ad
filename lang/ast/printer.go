package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/cassette/lang/heap"
)

// Print renders node back to source text. It is not guaranteed to reproduce
// the original bytes (whitespace and comments are not part of the tree,
// per the package doc), but re-parsing the output must yield a structurally
// equal tree (spec.md §8, testable property 1).
func Print(h *heap.Heap, node heap.Value) string {
	var sb strings.Builder
	print1(h, node, &sb)
	return sb.String()
}

func print1(h *heap.Heap, node heap.Value, sb *strings.Builder) {
	tag, ok := TagOf(h, node)
	if !ok {
		fmt.Fprintf(sb, "<bad-node>")
		return
	}
	switch tag {
	case TagChunk, TagBlock:
		items := ListItems(h, Field(h, node, 1))
		for i, it := range items {
			if i > 0 {
				sb.WriteByte('\n')
			}
			print1(h, it, sb)
		}

	case TagLet:
		sb.WriteString("let ")
		print1(h, Field(h, node, 1), sb)
		sb.WriteString(" = ")
		print1(h, Field(h, node, 2), sb)

	case TagSet:
		sb.WriteString("set ")
		print1(h, Field(h, node, 1), sb)
		sb.WriteString(" = ")
		print1(h, Field(h, node, 2), sb)

	case TagDef:
		sb.WriteString("def ")
		print1(h, Field(h, node, 1), sb)
		printParams(h, Field(h, node, 2), sb)
		sb.WriteString(" do\n")
		print1(h, Field(h, node, 3), sb)
		sb.WriteString("\nend")

	case TagImport:
		sb.WriteString("import ")
		sb.WriteString(strconv.Quote(h.GoString(Field(h, node, 1))))
		if as := Field(h, node, 2); !as.IsNil() {
			sb.WriteString(" as ")
			print1(h, as, sb)
		} else {
			sb.WriteString(" as *")
		}

	case TagModuleDecl:
		sb.WriteString("module ")
		names := ListItems(h, Field(h, node, 1))
		for i, n := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			print1(h, n, sb)
		}

	case TagExprStmt:
		print1(h, Field(h, node, 1), sb)

	case TagIdent:
		sb.WriteString(h.Syms.MustName(Field(h, node, 1).AsSymbolHash()))

	case TagInt:
		sb.WriteString(strconv.FormatInt(int64(Field(h, node, 1).AsInt()), 10))

	case TagFloat:
		s := strconv.FormatFloat(Field(h, node, 1).AsFloat(), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0" // keep an integral float from re-parsing as an int literal
		}
		sb.WriteString(s)

	case TagString:
		sb.WriteString(strconv.Quote(h.GoString(Field(h, node, 1))))

	case TagSymbolLit:
		sb.WriteByte(':')
		sb.WriteString(h.Syms.MustName(Field(h, node, 1).AsSymbolHash()))

	case TagNilLit:
		sb.WriteString("nil")

	case TagBoolLit:
		if Field(h, node, 1).IsTruthy() {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}

	case TagList:
		sb.WriteByte('[')
		printItems(h, Field(h, node, 1), sb)
		sb.WriteByte(']')

	case TagTupleLit:
		// "(x)" would re-parse as a parenthesized expression, so a one-element
		// tuple prints in its #[x] form
		if items := ListItems(h, Field(h, node, 1)); len(items) == 1 {
			sb.WriteString("#[")
			print1(h, items[0], sb)
			sb.WriteByte(']')
			break
		}
		sb.WriteByte('(')
		printItems(h, Field(h, node, 1), sb)
		sb.WriteByte(')')

	case TagMapLit:
		sb.WriteByte('{')
		pairs := ListItems(h, Field(h, node, 1))
		for i := 0; i < len(pairs); i += 2 {
			if i > 0 {
				sb.WriteString(", ")
			}
			print1(h, pairs[i], sb)
			sb.WriteString(": ")
			print1(h, pairs[i+1], sb)
		}
		sb.WriteByte('}')

	case TagLambda:
		printParams(h, Field(h, node, 1), sb)
		sb.WriteString(" -> ")
		print1(h, Field(h, node, 2), sb)

	case TagCall:
		print1(h, Field(h, node, 1), sb)
		sb.WriteByte('(')
		printItems(h, Field(h, node, 2), sb)
		sb.WriteByte(')')

	case TagIndex:
		print1(h, Field(h, node, 1), sb)
		sb.WriteByte('[')
		print1(h, Field(h, node, 2), sb)
		sb.WriteByte(']')

	case TagDot:
		print1(h, Field(h, node, 1), sb)
		sb.WriteByte('.')
		sb.WriteString(h.Syms.MustName(Field(h, node, 2).AsSymbolHash()))

	case TagUnary:
		sb.WriteString(h.Syms.MustName(Field(h, node, 1).AsSymbolHash()))
		sb.WriteByte(' ')
		print1(h, Field(h, node, 2), sb)

	case TagBinary:
		sb.WriteByte('(')
		print1(h, Field(h, node, 2), sb)
		sb.WriteByte(' ')
		sb.WriteString(h.Syms.MustName(Field(h, node, 1).AsSymbolHash()))
		sb.WriteByte(' ')
		print1(h, Field(h, node, 3), sb)
		sb.WriteByte(')')

	case TagAnd:
		sb.WriteByte('(')
		print1(h, Field(h, node, 1), sb)
		sb.WriteString(" and ")
		print1(h, Field(h, node, 2), sb)
		sb.WriteByte(')')

	case TagOr:
		sb.WriteByte('(')
		print1(h, Field(h, node, 1), sb)
		sb.WriteString(" or ")
		print1(h, Field(h, node, 2), sb)
		sb.WriteByte(')')

	case TagIf:
		sb.WriteString("if ")
		print1(h, Field(h, node, 1), sb)
		sb.WriteString(" do\n")
		print1(h, Field(h, node, 2), sb)
		if els := Field(h, node, 3); !els.IsNil() {
			sb.WriteString("\nelse\n")
			print1(h, els, sb)
		}
		sb.WriteString("\nend")

	case TagCond:
		sb.WriteString("cond\n")
		clauses := ListItems(h, Field(h, node, 1))
		for _, c := range clauses {
			print1(h, h.Head(c), sb)
			sb.WriteString(" -> ")
			print1(h, h.Tail(c), sb)
			sb.WriteByte('\n')
		}
		if els := Field(h, node, 2); !els.IsNil() {
			sb.WriteString("else ")
			print1(h, els, sb)
			sb.WriteByte('\n')
		}
		sb.WriteString("end")

	case TagDo:
		sb.WriteString("do\n")
		print1(h, Field(h, node, 1), sb)
		sb.WriteString("\nend")

	default:
		fmt.Fprintf(sb, "<%s>", tag)
	}
}

func printItems(h *heap.Heap, list heap.Value, sb *strings.Builder) {
	items := ListItems(h, list)
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		print1(h, it, sb)
	}
}

func printParams(h *heap.Heap, list heap.Value, sb *strings.Builder) {
	sb.WriteByte('(')
	printItems(h, list, sb)
	sb.WriteByte(')')
}
