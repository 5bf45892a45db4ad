package asm

import (
	"fmt"
	"io"

	"github.com/mna/cassette/lang/heap"
)

// Disassemble writes a human-readable listing of c's code to w, one
// instruction per line, prefixed with its byte offset: the `-d` trace mode
// spec.md §6.1 calls for (and internal/maincmd's Compile/Run commands share
// this single rendering, rather than each re-deriving it).
//
// A LOOKUP's two byte arguments print as depth/slot and a CONST's index is
// annotated with the constant's value; LAMBDA takes its operands from the
// stack and prints bare. This is annotation for a human reader, not
// something the VM itself relies on.
func Disassemble(w io.Writer, h *heap.Heap, c *Chunk) error {
	pc := int32(0)
	for pc < int32(len(c.Code)) {
		op := Op(c.Code[pc])
		width := op.ArgWidth()
		switch {
		case op == JUMP || op == BRANCH || op == LINK:
			off := int32(uint32(c.Code[pc+1]) | uint32(c.Code[pc+2])<<8 | uint32(c.Code[pc+3])<<16 | uint32(c.Code[pc+4])<<24)
			if _, err := fmt.Fprintf(w, "%6d  %-8s %+d\n", pc, op, off); err != nil {
				return err
			}
		case op == LOOKUP:
			depth := int32(c.Code[pc+1])
			slot := int32(c.Code[pc+2])
			if _, err := fmt.Fprintf(w, "%6d  %-8s %d %d\n", pc, op, depth, slot); err != nil {
				return err
			}
		case width == 1:
			arg := int32(c.Code[pc+1])
			if op == CONST && arg >= 0 && int(arg) < len(c.Constants) {
				if _, err := fmt.Fprintf(w, "%6d  %-8s %d  ; %s\n", pc, op, arg, describeConst(h, c.Constants[arg])); err != nil {
					return err
				}
			} else if _, err := fmt.Fprintf(w, "%6d  %-8s %d\n", pc, op, arg); err != nil {
				return err
			}
		default:
			if _, err := fmt.Fprintf(w, "%6d  %s\n", pc, op); err != nil {
				return err
			}
		}
		pc += 1 + int32(width)
	}
	return nil
}

func describeConst(h *heap.Heap, v heap.Value) string {
	switch v.Kind() {
	case heap.KInt:
		return fmt.Sprintf("%d", v.AsInt())
	case heap.KFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case heap.KSymbol:
		if name, ok := h.Syms.Name(v.AsSymbolHash()); ok {
			return name
		}
		return "<symbol>"
	case heap.KObject:
		if h.IsBinary(v) {
			return fmt.Sprintf("%q", h.GoString(v))
		}
		return "<object>"
	default:
		return "<value>"
	}
}
