package maincmd

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mna/mainer"

	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/primitive"
	"github.com/mna/cassette/lang/report"
	"github.com/mna/cassette/lang/vm"
)

// Run compiles (or loads a pre-compiled .tape chunk for) the project named
// by args and executes it, printing the result of the entry file's last
// top-level statement, or the error report on failure (spec.md §6.1, §6.3,
// §7). -s seeds the process-wide random source for reproducibility; -d
// prints the assembled bytecode listing before running it.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if c.flags["seed"] {
		rand.Seed(c.Seed)
	} else {
		rand.Seed(time.Now().UnixNano())
	}

	entryPath := args[0]
	entrySrc, entryCloser, err := readFile(entryPath)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", entryPath, err)
		return err
	}
	defer entryCloser()

	envCfg, err := loadEnvConfig()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	loaded, modules, closeAll, err := gatherProject(args[1:], envCfg.StdlibDir)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	defer closeAll()
	_ = loaded

	h := heap.New()
	prims := primitive.Build(primitive.NewOSGateway())

	var vmach *vm.VM
	if asm.LooksLikeChunk(entrySrc) {
		chunk, cerr := asm.ReadChunk(bytes.NewReader(entrySrc), h)
		if cerr != nil {
			fmt.Fprintln(stdio.Stderr, cerr)
			return cerr
		}
		vmach = vm.New(h, chunk, prims, make([]heap.Value, len(modules)))
	} else {
		vmach, err = vm.LoadProject(h, prims, entryPath, entrySrc, modules)
		if err != nil {
			report.Print(stdio.Stderr, entryPath, entrySrc, err)
			return err
		}
	}

	if c.Disassemble {
		if err := asm.Disassemble(stdio.Stdout, h, vmach.Chunk); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}

	vmach.Run()
	if rerr := vmach.Err(); rerr != nil {
		report.Print(stdio.Stderr, entryPath, entrySrc, rerr)
		return rerr
	}

	result := vmach.Peek()
	if rerr := vmach.Err(); rerr != nil {
		// an empty-program entry file leaves nothing on the stack; Peek's own
		// StackError in that case is not a real failure, just "no result".
		fmt.Fprintln(stdio.Stdout, "nil")
		return nil
	}
	fmt.Fprintln(stdio.Stdout, formatValue(h, result))
	return nil
}

// formatValue renders v for the run command's final result line (spec.md
// §6.3: "the result of a file is the value of its last top-level
// statement"). There is no general-purpose value printer elsewhere in this
// implementation (report.go only ever prints source text, never a runtime
// Value), so this is the one place a heap.Value needs a human-readable
// rendering; it stays local to the CLI rather than growing into a
// lang/heap-wide feature no other component needs.
func formatValue(h *heap.Heap, v heap.Value) string {
	switch v.Kind() {
	case heap.KInt:
		return fmt.Sprintf("%d", v.AsInt())
	case heap.KFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case heap.KSymbol:
		if name, ok := h.Syms.Name(v.AsSymbolHash()); ok {
			if name == "true" || name == "false" {
				return name
			}
			return ":" + name
		}
		return "<symbol>"
	case heap.KPair:
		if v.IsNil() {
			return "nil"
		}
		return "(" + formatValue(h, h.Head(v)) + " . " + formatValue(h, h.Tail(v)) + ")"
	case heap.KObject:
		switch {
		case h.IsBinary(v):
			return fmt.Sprintf("%q", h.GoString(v))
		case h.IsTuple(v):
			n := h.TupleLen(v)
			parts := make([]string, n)
			for i := 0; i < n; i++ {
				parts[i] = formatValue(h, h.TupleGet(v, i))
			}
			return "#[" + joinComma(parts) + "]"
		case h.IsMap(v):
			keys := h.MapKeys(v)
			parts := make([]string, len(keys))
			for i, k := range keys {
				val, _ := h.MapGet(v, k)
				parts[i] = formatValue(h, k) + ": " + formatValue(h, val)
			}
			return "{" + joinComma(parts) + "}"
		case h.IsClosure(v):
			return "<closure>"
		case h.IsPrimitive(v):
			return "<primitive>"
		default:
			return "<object>"
		}
	default:
		return "<value>"
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
